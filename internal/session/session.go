// Package session provides the process-wide in-memory session store.
// Sessions are volatile: created on the first instruction of a conversation
// and discarded on explicit reset or process exit.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/forgeline/forgeline/internal/llm"
	"github.com/forgeline/forgeline/pkg/models"
)

// Phase is the planning state of a session.
type Phase string

const (
	// PhaseInit is the state before any instructions arrive.
	PhaseInit Phase = "init"
	// PhaseAwaitingPlan means instructions were sent and a plan is expected.
	PhaseAwaitingPlan Phase = "awaiting_plan"
	// PhaseAwaitingClarification means the planner asked the caller a question.
	PhaseAwaitingClarification Phase = "awaiting_clarification"
	// PhaseAcquired means a plan was acquired for the current round.
	PhaseAcquired Phase = "plan_acquired"
)

// Session tracks the conversational state of one generation conversation:
// the instruction history, the planner phase, and the last planning result.
// All access goes through methods; the embedded mutex also serializes
// planner and scheduler activity for the same session, so concurrent rounds
// on one session never interleave.
type Session struct {
	// ID is the unique session identifier.
	ID string

	mu         sync.Mutex
	phase      Phase
	history    []llm.Message
	lastResult *models.PlanningResult
}

// Lock takes the session-wide lock for the duration of a pipeline round.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session-wide lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Phase returns the current planner phase. Caller must hold the lock.
func (s *Session) Phase() Phase {
	return s.phase
}

// BeginRound transitions the session into PhaseAwaitingPlan for a new round
// of instructions. Re-planning on an already-acquired session discards the
// previous round's result. Caller must hold the lock.
func (s *Session) BeginRound() {
	if s.phase == PhaseAcquired {
		s.lastResult = nil
	}
	s.phase = PhaseAwaitingPlan
}

// SetResult records the planning result and advances the phase: a question
// moves the session to PhaseAwaitingClarification, a plan to PhaseAcquired.
// Caller must hold the lock.
func (s *Session) SetResult(result *models.PlanningResult) {
	s.lastResult = result
	if result.IsReady() {
		s.phase = PhaseAcquired
	} else {
		s.phase = PhaseAwaitingClarification
	}
}

// LastResult returns the most recent planning result, or nil.
// Caller must hold the lock.
func (s *Session) LastResult() *models.PlanningResult {
	return s.lastResult
}

// AppendUser records a user turn in the instruction history.
// Caller must hold the lock.
func (s *Session) AppendUser(content string) {
	s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: content})
}

// AppendAssistant records a model turn in the instruction history.
// Caller must hold the lock.
func (s *Session) AppendAssistant(content string) {
	s.history = append(s.history, llm.Message{Role: llm.RoleAssistant, Content: content})
}

// History returns a copy of the conversation history.
// Caller must hold the lock.
func (s *Session) History() []llm.Message {
	return append([]llm.Message(nil), s.history...)
}

// Store is the process-wide session map. Distinct sessions proceed
// independently; the store lock only guards the map itself.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session with the given ID, creating it if absent.
// An empty ID allocates a fresh session with a generated UUID.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	if s, ok := st.sessions[id]; ok {
		return s
	}

	s := &Session{ID: id, phase: PhaseInit}
	st.sessions[id] = s
	return s
}

// Get returns the session with the given ID, if it exists.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Clear removes the session with the given ID. Returns true if it existed.
func (st *Store) Clear(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
