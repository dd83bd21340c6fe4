package models

// PlanningResult is the outcome of one planning round: either the planning
// capability needs a clarification from the caller, or it produced a plan.
// Exactly one arm is populated.
type PlanningResult struct {
	// Question is the clarification question, set when the planner needs
	// more information before it can produce a plan.
	Question string `json:"question,omitempty"`
	// Plan is the acquired component plan, set when planning succeeded.
	Plan *Plan `json:"plan,omitempty"`
}

// ClarificationNeeded builds the clarification arm of the variant.
func ClarificationNeeded(question string) *PlanningResult {
	return &PlanningResult{Question: question}
}

// Ready builds the plan arm of the variant.
func Ready(plan *Plan) *PlanningResult {
	return &PlanningResult{Plan: plan}
}

// IsReady reports whether the result carries a plan.
func (r *PlanningResult) IsReady() bool {
	return r.Plan != nil
}
