package main

import (
	"fmt"
	"log/slog"

	"github.com/chgenberg/frejfund-site/internal/persistence"
	"github.com/chgenberg/frejfund-site/internal/report"
	"github.com/chgenberg/frejfund-site/internal/session"
	"github.com/spf13/cobra"
)

var reportOutDir string

var reportCmd = &cobra.Command{
	Use:   "report <user-id> [handle]",
	Short: "Render a PDF from a saved session",
	Long: `Render a PDF from a saved session without starting the server.
The handle defaults to the visitor's latest save. Generated artifacts are not
part of saved sessions, so the report holds the answers and plan text only.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		userID := args[0]
		handle := persistence.LatestHandle
		if len(args) == 2 {
			handle = args[1]
		}

		saves := persistence.New(cfg.DataDir, slog.Default())
		rec, ok := saves.Load(userID, handle)
		if !ok {
			return fmt.Errorf("no readable save %s for %s", handle, userID)
		}

		store := session.NewStore()
		if _, err := persistence.Restore(store, rec); err != nil {
			return fmt.Errorf("restore %s: %w", handle, err)
		}

		dir := cfg.ReportDir
		if reportOutDir != "" {
			dir = reportOutDir
		}
		path, doc, err := report.New(report.Options{OutputDir: dir}).Assemble(cmd.Context(), userID, store)
		if err != nil {
			return fmt.Errorf("assemble report: %w", err)
		}
		fmt.Printf("Wrote %s (%d bytes, sections: %v)\n", path, len(doc.PDF), doc.Sections)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportOutDir, "out", "", "Output directory (default: REPORT_DIR)")
}
