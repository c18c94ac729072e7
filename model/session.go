package model

import (
	"fmt"
	"sync"
)

// Wizard steps, in fixed order.
const (
	StepTransportation = 1
	StepFoodDiet       = 2
	StepHomeEnergy     = 3
	StepConsumerGoods  = 4
	StepFoodInvoice    = 5
	StepResults        = 6

	StepCount = 6
)

// Phase is where a session sits inside the current step.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAsking
	PhaseStepDone
	PhaseAwaitingInvoice
	PhaseResults
)

// CacheSlot memoizes one expensive external result per calculation cycle.
// Once filled it stays filled, failure text included, until an explicit
// Reset. This is what keeps re-renders from re-calling the model service.
type CacheSlot struct {
	text   string
	filled bool
}

// ComputeOnce returns the cached text, or runs compute exactly once and
// caches whatever comes back. A compute error is cached too, as a
// user-facing message, so retry only happens on explicit invalidation.
func (c *CacheSlot) ComputeOnce(compute func() (string, error)) string {
	if c.filled {
		return c.text
	}
	text, err := compute()
	if err != nil {
		text = fmt.Sprintf("An error occurred: %s. Use Recalculate to try again.", err)
	}
	c.text = text
	c.filled = true
	return c.text
}

func (c *CacheSlot) Get() (string, bool) { return c.text, c.filled }
func (c *CacheSlot) Filled() bool        { return c.filled }

func (c *CacheSlot) Reset() {
	c.text = ""
	c.filled = false
}

// Session is the whole per-chat wizard state: cursor, answers, the two
// memoized reports and the in-step position. One chat, one session.
type Session struct {
	ChatID int64

	Step        int
	Phase       Phase
	QuestionIdx int // catalog index of the question being asked, -1 before the first

	Answers *Answers

	InvoiceReport CacheSlot
	FinalReport   CacheSlot

	mu sync.Mutex
}

func NewSession(chatID int64) *Session {
	return &Session{
		ChatID:      chatID,
		Step:        StepTransportation,
		Phase:       PhaseIdle,
		QuestionIdx: -1,
		Answers:     NewAnswers(),
	}
}

// Lock serializes update handling for this session; the wizard processes
// one user action at a time.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Advance moves the cursor forward. The results step is the ceiling;
// there is no step beyond it to advance into.
func (s *Session) Advance() {
	if s.Step < StepCount {
		s.Step++
	}
}

// Retreat moves the cursor back, never below the first step.
func (s *Session) Retreat() {
	if s.Step > 1 {
		s.Step--
	}
}

// Reset returns the session to a blank step 1: cursor, answers and both
// report caches are all cleared.
func (s *Session) Reset() {
	s.Step = StepTransportation
	s.Phase = PhaseIdle
	s.QuestionIdx = -1
	s.Answers.Reset()
	s.InvoiceReport.Reset()
	s.FinalReport.Reset()
}

// SessionManager is the per-chat session registry. Sessions never share
// answers or caches; isolation is per chat, not process-wide.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[int64]*Session)}
}

// GetOrCreate returns the chat's session, creating a fresh one on first
// contact.
func (m *SessionManager) GetOrCreate(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		s = NewSession(chatID)
		m.sessions[chatID] = s
	}
	return s
}

// Lookup returns the chat's session if one exists.
func (m *SessionManager) Lookup(chatID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return nil, ErrSessionDoesNotExist
	}
	return s, nil
}
