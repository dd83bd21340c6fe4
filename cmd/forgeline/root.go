package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeline/forgeline/internal/assemble"
	"github.com/forgeline/forgeline/internal/config"
	"github.com/forgeline/forgeline/internal/llm"
	"github.com/forgeline/forgeline/internal/pipeline"
	"github.com/forgeline/forgeline/internal/planner"
	"github.com/forgeline/forgeline/internal/scheduler"
	"github.com/forgeline/forgeline/internal/session"
	"github.com/forgeline/forgeline/internal/state"
	"github.com/forgeline/forgeline/internal/synth"
)

var rootCmd = &cobra.Command{
	Use:   "forgeline",
	Short: "Multi-agent UI component generator",
	Long: `Forgeline turns natural-language instructions into a working set of
front-end component files.

A planning model converses with you until the requirements are clear, then
produces a component plan with explicit dependencies. Forgeline validates the
dependency graph, synthesizes each component concurrently in dependency
order, and assembles the results into a project directory.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// buildPipeline wires the full stack from configuration. The returned cleanup
// closes the run-history database.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *assemble.Assembler, func(), error) {
	clientCfg := llm.ClientConfig{
		Model:         cfg.Models.Planner,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		clientCfg.APIKey = key
	}

	client, err := llm.NewClient(clientCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating API client: %w", err)
	}

	cleanup := func() {}
	var recorder pipeline.Recorder
	dbPath := cfg.Paths.DBPath
	if dbPath == "" {
		dbPath = state.DefaultPath()
	}
	if db, err := state.Open(dbPath); err != nil {
		// Run history is best-effort; generation works without it.
		log.Printf("[forgeline] run history disabled: %v", err)
	} else {
		recorder = db
		cleanup = func() { db.Close() }
	}

	pl := pipeline.New(
		planner.New(client, cfg.Models.Planner, cfg.Pipeline.PlanAttempts),
		synth.New(client, cfg.Models.Synthesizer),
		session.NewStore(),
		scheduler.Config{
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
			MaxAttempts:    cfg.Pipeline.MaxAttempts,
			RetryBackoff:   cfg.Pipeline.RetryBackoff,
		},
		recorder,
	)
	assembler := assemble.New(cfg.Paths.ScaffoldDir, cfg.Paths.OutputDir)
	return pl, assembler, cleanup, nil
}
