// Package synth turns a single component spec into source text via the
// synthesis model.
package synth

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/forgeline/forgeline/internal/llm"
	"github.com/forgeline/forgeline/internal/scheduler"
	"github.com/forgeline/forgeline/pkg/models"
)

// DefaultMaxTokens bounds a single synthesis response. Component files are
// small; anything larger is almost certainly runaway output.
const DefaultMaxTokens int64 = 8192

// Generator implements scheduler.Synthesizer against an llm.Completer.
type Generator struct {
	completer llm.Completer
	model     string
	maxTokens int64
}

// New creates a Generator using the given model for synthesis calls.
func New(completer llm.Completer, model string) *Generator {
	return &Generator{
		completer: completer,
		model:     model,
		maxTokens: DefaultMaxTokens,
	}
}

// Synthesize requests the implementation of one component. Each call is
// self-contained: the request carries the component spec and its
// dependencies' declared interfaces, never any other generated source, so
// calls for independent components can run in any order.
func (g *Generator) Synthesize(ctx context.Context, spec models.ComponentSpec, deps []scheduler.DependencySummary) (string, error) {
	prompt := buildPrompt(spec, deps)

	log.Printf("[synth] requesting %s (%d dependencies)", spec.ID, len(deps))
	raw, err := g.completer.Complete(ctx, llm.Request{
		Model:     g.model,
		System:    systemPrompt,
		MaxTokens: g.maxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("synthesize %s: %w", spec.ID, err)
	}
	return raw, nil
}

// buildPrompt renders the component spec and its dependency contracts into
// the synthesis request body.
func buildPrompt(spec models.ComponentSpec, deps []scheduler.DependencySummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Implement the file %s.\n\n", spec.FilePath)
	fmt.Fprintf(&b, "Component: %s\n", spec.ID)
	if spec.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", spec.Description)
	}

	if len(spec.ExportedSymbols) > 0 {
		b.WriteString("\nThis file must export:\n")
		for _, sym := range spec.ExportedSymbols {
			writeSymbol(&b, sym)
		}
	}

	if len(deps) > 0 {
		b.WriteString("\nYou may import from these project files, which expose exactly the following:\n")
		for _, dep := range deps {
			fmt.Fprintf(&b, "\n%s (%s):\n", dep.ID, dep.FilePath)
			for _, sym := range dep.ExportedSymbols {
				writeSymbol(&b, sym)
			}
		}
	}

	b.WriteString("\nRespond with the complete file contents and nothing else.")
	return b.String()
}

func writeSymbol(b *strings.Builder, sym models.ExportedSymbol) {
	if sym.Signature != "" {
		fmt.Fprintf(b, "- %s: %s\n", sym.Name, sym.Signature)
	} else {
		fmt.Fprintf(b, "- %s\n", sym.Name)
	}
}

// systemPrompt sets the synthesis persona. Output discipline matters more
// than style: the response must be code only.
const systemPrompt = `You are a senior front-end engineer implementing a single file of a React + TypeScript project.

Rules:
- Write the complete contents of the requested file.
- Export exactly the symbols listed for this file.
- Import dependencies only from the project files listed, using the symbols they declare.
- Use idiomatic, modern React with TypeScript and Tailwind CSS classes for styling.
- Output ONLY the file contents. No explanation, no markdown fences.`
