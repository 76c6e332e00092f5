// Affärsplan - guided business plan builder server
package main

import (
	"log/slog"
	"os"

	"github.com/chgenberg/frejfund-site/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "affarsplan",
	Short: "Guided business plan builder",
	Long: `Affarsplan serves the guided business plan builder: staged questions,
generated plan text, SWOT, manifest and logo, business analysis, saved
sessions and PDF reports.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if err := godotenv.Load(); err != nil {
			slog.Info("No .env file found, using environment variables")
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return nil, err
	}
	return cfg, nil
}
