package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hexflood/switchboard/internal/config"
	"github.com/hexflood/switchboard/internal/journal"
)

func newLogCmd() *cobra.Command {
	var (
		configPath string
		lines      int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent handler outcomes",
		Long:  "Displays the newest entries from the outcome journal: which handler took each update and whether it succeeded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd, configPath, lines)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to config file")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of recent entries to show")
	return cmd
}

func runLog(cmd *cobra.Command, configPath string, lines int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	jnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}

	entries, err := jnl.Recent(lines)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No journal entries found.")
		return nil
	}

	// Reverse for chronological display.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	for _, e := range entries {
		printEntry(out, e)
	}
	return nil
}

func printEntry(out io.Writer, e journal.Entry) {
	ts := e.CreatedAt.Format("2006-01-02 15:04:05")
	if e.Status == "failed" {
		fmt.Fprintf(out, "%s  update=%d chat=%d %s FAILED: %s\n", ts, e.UpdateID, e.ChatID, e.Handler, e.Error)
		return
	}
	fmt.Fprintf(out, "%s  update=%d chat=%d %s %s\n", ts, e.UpdateID, e.ChatID, e.Handler, e.Status)
}
