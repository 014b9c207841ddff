package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"blueprint-api/internal/config"
	"blueprint-api/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "blueprint-api",
	Short:         "Turns product ideas into structured specifications",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Read()
		slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
