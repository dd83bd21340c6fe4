// Package planner acquires component plans from the planning capability and
// manages the conversational state machine around clarification rounds.
package planner

import (
	"context"
	"fmt"
	"log"

	"github.com/forgeline/forgeline/internal/llm"
	"github.com/forgeline/forgeline/internal/session"
	"github.com/forgeline/forgeline/pkg/models"
)

// DefaultMaxAttempts is the corrective-retry budget for unparsable plans.
const DefaultMaxAttempts = 3

// PlanningError indicates the planning capability's output could not be
// parsed into a valid PlanningResult within the retry budget.
type PlanningError struct {
	// Attempts is the number of attempts made.
	Attempts int
	// Err is the parse or validation failure from the final attempt.
	Err error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *PlanningError) Unwrap() error {
	return e.Err
}

// Planner drives planning rounds against the planning capability.
type Planner struct {
	completer   llm.Completer
	model       string
	maxAttempts int
}

// New creates a Planner. maxAttempts <= 0 uses DefaultMaxAttempts.
func New(completer llm.Completer, model string, maxAttempts int) *Planner {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Planner{
		completer:   completer,
		model:       model,
		maxAttempts: maxAttempts,
	}
}

// Plan runs one planning round for the session: it sends the instructions
// with the session history and returns either a clarification question or a
// validated plan. Unparsable or structurally invalid plan output is retried
// with a corrective schema-violation message appended to the request context;
// once the budget is exhausted Plan fails with PlanningError.
//
// The caller must hold the session lock for the duration of the round.
func (p *Planner) Plan(ctx context.Context, sess *session.Session, instructions string) (*models.PlanningResult, error) {
	sess.BeginRound()
	sess.AppendUser(instructions)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		raw, err := p.completer.Complete(ctx, llm.Request{
			Model:    p.model,
			System:   systemPrompt,
			Messages: sess.History(),
		})
		if err != nil {
			return nil, fmt.Errorf("planning call: %w", err)
		}

		result, parseErr := ParseResponse(raw)
		if parseErr != nil {
			lastErr = parseErr
			log.Printf("[planner] session %s: attempt %d/%d rejected: %v", sess.ID, attempt, p.maxAttempts, parseErr)
			sess.AppendAssistant(raw)
			sess.AppendUser(schemaViolationMessage(parseErr))
			continue
		}

		sess.AppendAssistant(raw)
		if result.IsReady() {
			result.Plan.SessionID = sess.ID
		}
		sess.SetResult(result)
		return result, nil
	}

	return nil, &PlanningError{Attempts: p.maxAttempts, Err: lastErr}
}

// schemaViolationMessage builds the corrective message appended after a
// rejected plan attempt.
func schemaViolationMessage(err error) string {
	return fmt.Sprintf(
		"Your previous response was not a valid plan: %v.\n"+
			"Respond with ONLY the JSON plan object matching the documented schema, no surrounding prose.",
		err)
}

// systemPrompt instructs the planning model to either ask a clarifying
// question in plain text or emit only the JSON plan object.
const systemPrompt = `You are an expert front-end architect. Your goal is to gather requirements for a web application and then produce a detailed component generation plan.

1. Analyze the request carefully.
2. If the request is vague or missing critical details (purpose, features, style), ask clarifying questions as PLAIN TEXT. Do not produce a plan yet.
3. Once you have enough information, output ONLY a valid JSON object with this structure:

{
  "components": [
    {
      "id": "stats-card",
      "file_path": "src/components/StatsCard.tsx",
      "description": "Displays a statistic with a trend indicator",
      "exported_symbols": [
        {"name": "StatsCard", "signature": "interface StatsCardProps { title: string; value: string }"}
      ],
      "dependency_ids": ["card"]
    }
  ]
}

Rules:
- Every component needs a unique "id" and a "file_path".
- "dependency_ids" may only reference ids of other components in the same plan.
- Dependencies must not form cycles.
- When emitting the plan, output the JSON object and nothing else.`
