package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgeline/forgeline/internal/config"
	"github.com/forgeline/forgeline/internal/pipeline"
	"github.com/forgeline/forgeline/internal/state"
)

var (
	historyLimit   int
	historySession string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent generation runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Show runs for one session only")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dbPath := cfg.Paths.DBPath
	if dbPath == "" {
		dbPath = state.DefaultPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	var runs []state.Run
	if historySession != "" {
		runs, err = db.RunsForSession(ctx, historySession)
	} else {
		runs, err = db.RecentRuns(ctx, historyLimit)
	}
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		color.Yellow("No runs recorded.")
		return nil
	}
	for _, r := range runs {
		line := color.GreenString
		switch r.Outcome {
		case pipeline.OutcomePartialFailure:
			line = color.RedString
		case pipeline.OutcomeClarification:
			line = color.YellowString
		}
		cmd.Printf("%s  %s  %s  %d/%d done",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.SessionID,
			line(r.Outcome),
			r.DoneCount, r.ComponentCount)
		if r.FailedCount > 0 || r.BlockedCount > 0 {
			cmd.Printf("  (%d failed, %d blocked)", r.FailedCount, r.BlockedCount)
		}
		cmd.Println()
	}
	return nil
}
