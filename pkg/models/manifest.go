package models

import "sort"

// Manifest maps component IDs to sanitized, ready-to-write source text.
type Manifest map[string]string

// IDs returns the component IDs in the manifest, sorted.
func (m Manifest) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FailureKind classifies why a component failed.
type FailureKind string

const (
	// FailureImplementation means the synthesis call exhausted its retry budget.
	FailureImplementation FailureKind = "implementation"
	// FailureSanitization means synthesis output was empty after sanitization
	// on every attempt.
	FailureSanitization FailureKind = "sanitization"
)

// ComponentFailure records a single component's terminal failure.
type ComponentFailure struct {
	// ComponentID identifies the failed component.
	ComponentID string `json:"component_id"`
	// Kind classifies the failure.
	Kind FailureKind `json:"kind"`
	// Attempts is the number of synthesis attempts made.
	Attempts int `json:"attempts"`
	// Error is the message from the final attempt.
	Error string `json:"error"`
}
