package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/chgenberg/frejfund-site/internal/persistence"
	"github.com/spf13/cobra"
)

var savesJSON bool

var savesCmd = &cobra.Command{
	Use:   "saves <user-id>",
	Short: "List saved sessions of a visitor, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		handles, err := persistence.New(cfg.DataDir, slog.Default()).ListSaves(args[0])
		if err != nil {
			return fmt.Errorf("list saves: %w", err)
		}

		if savesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(handles)
		}
		if len(handles) == 0 {
			fmt.Println("No saved sessions.")
			return nil
		}
		for _, h := range handles {
			fmt.Println(h)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(savesCmd)
	savesCmd.Flags().BoolVar(&savesJSON, "json", false, "Output as JSON")
}
