// Package governor enforces the two usage budgets of the pipeline: a
// session-wide inference call counter and a per-(kind, side) retry cap. It
// is an explicitly constructed object passed into the pipeline, never an
// ambient singleton, so atomicity and lifecycle are testable.
package governor

import (
	"fmt"
	"sync"

	"kycgate/internal/document"
)

// Level is the usage warning band for the session call counter.
type Level string

const (
	LevelGreen   Level = "green"
	LevelYellow  Level = "yellow"
	LevelRed     Level = "red"
	LevelBlocked Level = "blocked"
)

const (
	warningThreshold  = 50
	criticalThreshold = 80
	dailyLimit        = 100

	maxFieldAttempts = 2
)

// FieldStatus reports retry bookkeeping for one (kind, side).
type FieldStatus struct {
	Attempts    int  `json:"attempts"`
	MaxAttempts int  `json:"max_attempts"`
	Remaining   int  `json:"remaining"`
	CanRetry    bool `json:"can_retry"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	TotalCalls int                    `json:"total_calls"`
	Remaining  int                    `json:"remaining"`
	Level      Level                  `json:"level"`
	PerField   map[string]FieldStatus `json:"per_field"`
}

// Governor guards both budgets behind one coarse mutex: the operations are
// O(1) and rare relative to the network latency they bracket.
type Governor struct {
	mu            sync.Mutex
	totalCalls    int
	fieldAttempts map[string]int
}

func New() *Governor {
	return &Governor{fieldAttempts: map[string]int{}}
}

func levelFor(totalCalls int) Level {
	switch {
	case totalCalls >= dailyLimit:
		return LevelBlocked
	case totalCalls >= criticalThreshold:
		return LevelRed
	case totalCalls >= warningThreshold:
		return LevelYellow
	default:
		return LevelGreen
	}
}

// RecordCall charges one inference call. It fails once the session limit is
// reached; the message always carries the exact remaining numbers.
func (g *Governor) RecordCall() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if levelFor(g.totalCalls) == LevelBlocked {
		return false, "API limit reached. Please try again tomorrow."
	}

	g.totalCalls++
	remaining := dailyLimit - g.totalCalls

	switch levelFor(g.totalCalls) {
	case LevelRed, LevelBlocked:
		return true, fmt.Sprintf("Warning: %d API calls remaining today", remaining)
	case LevelYellow:
		return true, fmt.Sprintf("Note: %d API calls remaining", remaining)
	default:
		return true, ""
	}
}

// CanCall reports whether any inference budget remains.
func (g *Governor) CanCall() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return levelFor(g.totalCalls) != LevelBlocked
}

func (g *Governor) Level() Level {
	g.mu.Lock()
	defer g.mu.Unlock()
	return levelFor(g.totalCalls)
}

func (g *Governor) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalCalls
}

func fieldKey(kind document.Kind, side document.Side) string {
	return fmt.Sprintf("%s_%s", kind, side)
}

// CanRetryField reports whether another analysis attempt is allowed for the
// given (kind, side), and how many attempts remain.
func (g *Governor) CanRetryField(kind document.Kind, side document.Side) (bool, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	attempts := g.fieldAttempts[fieldKey(kind, side)]
	remaining := maxFieldAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	return attempts < maxFieldAttempts, remaining
}

// RecordFieldAttempt charges one analysis attempt against the retry budget.
func (g *Governor) RecordFieldAttempt(kind document.Kind, side document.Side) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := fieldKey(kind, side)
	attempts := g.fieldAttempts[key]
	if attempts >= maxFieldAttempts {
		return false, fmt.Sprintf("Maximum retries (%d) reached for this document. Please contact support.", maxFieldAttempts)
	}

	g.fieldAttempts[key] = attempts + 1
	switch maxFieldAttempts - (attempts + 1) {
	case 0:
		return true, "This was your last attempt for this document."
	case 1:
		return true, "1 retry remaining for this document."
	default:
		return true, ""
	}
}

// FieldStatusFor reports the retry state of one (kind, side).
func (g *Governor) FieldStatusFor(kind document.Kind, side document.Side) FieldStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	attempts := g.fieldAttempts[fieldKey(kind, side)]
	remaining := maxFieldAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	return FieldStatus{
		Attempts:    attempts,
		MaxAttempts: maxFieldAttempts,
		Remaining:   remaining,
		CanRetry:    attempts < maxFieldAttempts,
	}
}

// ResetField clears the retry counter for one (kind, side). Admin use.
func (g *Governor) ResetField(kind document.Kind, side document.Side) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.fieldAttempts, fieldKey(kind, side))
}

// ResetAll clears every counter. Admin use.
func (g *Governor) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.totalCalls = 0
	g.fieldAttempts = map[string]int{}
}

// Snapshot copies all counters for reporting.
func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	perField := make(map[string]FieldStatus, len(g.fieldAttempts))
	for key, attempts := range g.fieldAttempts {
		remaining := maxFieldAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		perField[key] = FieldStatus{
			Attempts:    attempts,
			MaxAttempts: maxFieldAttempts,
			Remaining:   remaining,
			CanRetry:    attempts < maxFieldAttempts,
		}
	}

	remaining := dailyLimit - g.totalCalls
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		TotalCalls: g.totalCalls,
		Remaining:  remaining,
		Level:      levelFor(g.totalCalls),
		PerField:   perField,
	}
}
