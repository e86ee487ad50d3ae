// main.go - Einstiegspunkt des textembed CLI
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/7blacky7/textembed/cmd/textembed/cli"
	"github.com/7blacky7/textembed/envconfig"
	"github.com/7blacky7/textembed/logutil"
)

func main() {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	if err := cli.NewCLI().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
