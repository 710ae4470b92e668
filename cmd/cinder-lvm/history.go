package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/cinder-lvm/internal/journal"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent reconcile runs",
	Long: `Show reconcile runs recorded in the run journal, newest first.

The journal path comes from the journal key of the options file or the
--journal flag.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Journal == "" {
			return fmt.Errorf("no run journal configured; set journal in %s or pass --journal", configPath)
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return fmt.Errorf("failed to open run journal: %w", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				log.WithError(closeErr).Warn("Failed to close run journal")
			}
		}()

		log.WithField("journal", j.Path()).Debug("Reading run journal")
		entries, err := j.List(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		out, err := formatter.FormatHistory(entries)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show (0 for all)")
	addOutputFlag(historyCmd, "output format (table, yaml, json)")
}
