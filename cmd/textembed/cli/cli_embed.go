// cli_embed.go - Embed und Predict Commands
// Hauptfunktionen: EmbedHandler, PredictHandler, parseRequests
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7blacky7/textembed/engine"
	"github.com/7blacky7/textembed/model"
	"github.com/7blacky7/textembed/model/input"
)

func newEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed MODEL IDS...",
		Short: "Embed tokenized requests, e.g. textembed embed model.gguf 101,2023,102",
		Args:  cobra.MinimumNArgs(2),
		RunE:  EmbedHandler,
	}

	cmd.Flags().String("precision", "float32", "Compute precision (float32 or float16)")
	cmd.Flags().Bool("raw", false, "Return per-token vectors instead of pooled vectors")
	return cmd
}

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict MODEL IDS...",
		Short: "Classify tokenized requests",
		Args:  cobra.MinimumNArgs(2),
		RunE:  PredictHandler,
	}

	cmd.Flags().String("precision", "float32", "Compute precision (float32 or float16)")
	return cmd
}

// parseRequests - Parst kommaseparierte Token-ID-Listen, eine pro Argument
func parseRequests(args []string) ([][]int32, error) {
	requests := make([][]int32, 0, len(args))
	for _, arg := range args {
		var tokens []int32
		for _, field := range strings.Split(arg, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(field), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid token id %q: %w", field, err)
			}
			tokens = append(tokens, int32(id))
		}
		requests = append(requests, tokens)
	}
	return requests, nil
}

// EmbedHandler - Laedt das Model und gibt Embeddings als JSON aus
func EmbedHandler(cmd *cobra.Command, args []string) error {
	precision, _ := cmd.Flags().GetString("precision")
	rawOutput, _ := cmd.Flags().GetBool("raw")

	requests, err := parseRequests(args[1:])
	if err != nil {
		return err
	}

	var raw []bool
	if rawOutput {
		raw = make([]bool, len(requests))
		for i := range raw {
			raw[i] = true
		}
	}

	batch, err := input.Pack(requests, raw)
	if err != nil {
		return err
	}

	e, err := engine.New(resolveModel(args[0]), precision, model.KindEmbedding)
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := e.Embed(batch)
	if err != nil {
		return err
	}

	output := make([]any, len(requests))
	for r := range requests {
		if rawOutput {
			output[r] = results[r].Tokens
		} else {
			output[r] = results[r].Pooled
		}
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(output)
}

// PredictHandler - Laedt das Model und gibt Klassen-Logits als JSON aus
func PredictHandler(cmd *cobra.Command, args []string) error {
	precision, _ := cmd.Flags().GetString("precision")

	requests, err := parseRequests(args[1:])
	if err != nil {
		return err
	}

	batch, err := input.Pack(requests, nil)
	if err != nil {
		return err
	}

	e, err := engine.New(resolveModel(args[0]), precision, model.KindClassifier)
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := e.Predict(batch)
	if err != nil {
		return err
	}

	output := make([][]float32, len(requests))
	for r := range requests {
		output[r] = results[r]
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(output)
}
