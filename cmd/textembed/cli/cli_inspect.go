// cli_inspect.go - Inspect Command
// Hauptfunktionen: InspectHandler
package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/7blacky7/textembed/fs/ggml"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect MODEL",
		Short: "Show checkpoint metadata and tensors",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}
}

// InspectHandler - Zeigt KV-Metadaten und Tensor-Tabelle eines Checkpoints
func InspectHandler(cmd *cobra.Command, args []string) error {
	f, err := os.Open(resolveModel(args[0]))
	if err != nil {
		return err
	}
	defer f.Close()

	meta, err := ggml.Decode(f)
	if err != nil {
		return err
	}

	kv := meta.KV()
	fmt.Printf("architecture: %s\n\n", kv.Architecture())

	var kvData [][]string
	for _, key := range slices.Sorted(kv.Keys()) {
		value := fmt.Sprintf("%v", kv.Value(key))
		if len(value) > 60 {
			value = value[:57] + "..."
		}
		kvData = append(kvData, []string{key, value})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"KEY", "VALUE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(kvData)
	table.Render()

	var tensorData [][]string
	for _, t := range meta.Tensors().Items() {
		shape := make([]string, len(t.Shape))
		for i, n := range t.Shape {
			shape[i] = fmt.Sprintf("%d", n)
		}
		tensorData = append(tensorData, []string{t.Name, t.Type(), "[" + strings.Join(shape, ", ") + "]"})
	}

	fmt.Println()
	table = tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"TENSOR", "TYPE", "SHAPE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(tensorData)
	table.Render()

	return nil
}
