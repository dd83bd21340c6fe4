package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgeline/forgeline/internal/assemble"
	"github.com/forgeline/forgeline/internal/config"
	"github.com/forgeline/forgeline/internal/pipeline"
)

var (
	generateOutputDir string
	generateScaffold  string
)

var generateCmd = &cobra.Command{
	Use:   "generate [instructions]",
	Short: "Generate a component set from natural-language instructions",
	Long: `Generate runs one interactive planning conversation and then
synthesizes every planned component.

When the planner needs more detail it prints a question; answer on stdin to
continue the conversation. Once a plan is acquired, components are generated
concurrently and written to the output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutputDir, "output", "o", "", "Output directory (overrides config)")
	generateCmd.Flags().StringVar(&generateScaffold, "scaffold", "", "Scaffold directory to seed the project (overrides config)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if generateOutputDir != "" {
		cfg.Paths.OutputDir = generateOutputDir
	}
	if generateScaffold != "" {
		cfg.Paths.ScaffoldDir = generateScaffold
	}

	pl, assembler, cleanup, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	instructions := strings.Join(args, " ")
	sessionID := ""
	reader := bufio.NewReader(os.Stdin)

	for {
		result, err := pl.Submit(ctx, sessionID, instructions)
		if err != nil {
			return err
		}
		sessionID = result.SessionID

		if result.Question != "" {
			color.Yellow("? %s", result.Question)
			fmt.Print("> ")
			answer, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading answer: %w", err)
			}
			instructions = strings.TrimSpace(answer)
			if instructions == "" {
				return fmt.Errorf("aborted: empty answer")
			}
			continue
		}

		return reportResult(ctx, assembler, result)
	}
}

// reportResult prints the round's outcome and, when files were generated,
// materializes them on disk.
func reportResult(ctx context.Context, assembler *assemble.Assembler, result *pipeline.Result) error {
	if result.Failure != nil {
		color.Red("Generation incomplete: %d done, %d failed, %d blocked",
			len(result.Failure.Done), len(result.Failure.Failed), len(result.Failure.Blocked))
		for _, f := range result.Failure.Failed {
			color.Red("  ✗ %s (%s after %d attempts): %s", f.ComponentID, f.Kind, f.Attempts, f.Error)
		}
		for _, id := range result.Failure.Blocked {
			color.Yellow("  ○ %s blocked", id)
		}
		if len(result.Failure.Done) == 0 {
			return fmt.Errorf("no components generated")
		}

		dir, err := assembler.Materialize(ctx, result.SessionID, result.Plan, result.Failure.Done)
		if err != nil {
			return err
		}
		color.Yellow("Partial project written to %s", dir)
		return fmt.Errorf("generation incomplete")
	}

	dir, err := assembler.Materialize(ctx, result.SessionID, result.Plan, result.Manifest)
	if err != nil {
		return err
	}
	for _, id := range result.Manifest.IDs() {
		color.Green("  ✓ %s → %s", id, result.Plan.Component(id).FilePath)
	}
	color.Green("Generated %d components in %s", len(result.Manifest), dir)
	return nil
}
