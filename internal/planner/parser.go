package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgeline/forgeline/pkg/models"
)

// planEnvelope is the wire shape of a plan response.
type planEnvelope struct {
	Components []componentEnvelope `json:"components"`
}

type componentEnvelope struct {
	ID              string           `json:"id"`
	FilePath        string           `json:"file_path"`
	Description     string           `json:"description"`
	ExportedSymbols []symbolEnvelope `json:"exported_symbols"`
	DependencyIDs   []string         `json:"dependency_ids"`
}

type symbolEnvelope struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// ParseResponse classifies a raw planner response as either a clarification
// question or a plan. Text without a JSON object is a clarification. Text
// containing a JSON object must parse into a structurally valid plan;
// anything else is a schema violation the caller retries.
func ParseResponse(raw string) (*models.PlanningResult, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	// Plans are instructed to be bare JSON, but models occasionally wrap
	// them in a fence or prose. Locate the outermost object.
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		// Plain text with no JSON object: a clarification question.
		return models.ClarificationNeeded(text), nil
	}

	var env planEnvelope
	if err := json.Unmarshal([]byte(text[start:end+1]), &env); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}

	plan := &models.Plan{
		Components: make([]models.ComponentSpec, 0, len(env.Components)),
	}
	for _, c := range env.Components {
		spec := models.ComponentSpec{
			ID:            c.ID,
			FilePath:      c.FilePath,
			Description:   c.Description,
			DependencyIDs: c.DependencyIDs,
		}
		for _, sym := range c.ExportedSymbols {
			spec.ExportedSymbols = append(spec.ExportedSymbols, models.ExportedSymbol{
				Name:      sym.Name,
				Signature: sym.Signature,
			})
		}
		plan.Components = append(plan.Components, spec)
	}

	// Structurally invalid output counts as a parse failure.
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	return models.Ready(plan), nil
}
