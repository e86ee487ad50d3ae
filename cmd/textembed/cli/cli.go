// cli.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/7blacky7/textembed/envconfig"
)

// resolveModel - Loest einen Model-Namen gegen das Model-Verzeichnis auf
// Existierende Pfade werden unveraendert uebernommen
func resolveModel(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(envconfig.Models(), name)
}

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-28s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "textembed",
		Short:         "Batched inference for BERT-family encoders",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	inspectCmd := newInspectCmd()
	embedCmd := newEmbedCmd()
	predictCmd := newPredictCmd()

	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{embedCmd, predictCmd} {
		appendEnvDocs(cmd, []envconfig.EnvVar{
			envVars["TEXTEMBED_DEBUG"],
			envVars["TEXTEMBED_FLASH_ATTENTION"],
			envVars["TEXTEMBED_MODELS"],
			envVars["TEXTEMBED_NUM_THREADS"],
		})
	}

	rootCmd.AddCommand(
		inspectCmd,
		embedCmd,
		predictCmd,
	)

	return rootCmd
}
