// Package mock provides a deterministic, in-memory Advisor used for tests
// and wired by the CLI whatever llm.enabled says (with llm.enabled=false
// the classifier never consults it): scripted responses, no network I/O,
// fully interface-compliant.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/juanre/mail-flow/internal/classify/advisor"
)

// Advisor is a scripted fake: each call consumes the next configured
// Decision (or returns Err if set), recording every call for assertions.
type Advisor struct {
	mu sync.Mutex

	decisions []advisor.Decision
	err       error
	calls     []Call
	feedback  []Feedback
}

// Call records the arguments of one Classify invocation.
type Call struct {
	Text      string
	Meta      map[string]any
	Workflows []string
	Opts      advisor.Options
}

// Feedback records one Feedback invocation.
type Feedback struct {
	DecisionID, Label, Reason string
}

// New creates a mock Advisor that returns decisions in order, looping the
// last one once exhausted.
func New(decisions ...advisor.Decision) *Advisor {
	return &Advisor{decisions: decisions}
}

// WithError makes every subsequent Classify call fail with err.
func (a *Advisor) WithError(err error) *Advisor {
	a.err = err
	return a
}

// Classify implements advisor.Advisor.
func (a *Advisor) Classify(ctx context.Context, text string, meta map[string]any, workflows []string, opts advisor.Options) (advisor.Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Text: text, Meta: meta, Workflows: workflows, Opts: opts})

	if a.err != nil {
		return advisor.Decision{}, fmt.Errorf("mock advisor: %w", a.err)
	}
	if len(a.decisions) == 0 {
		return advisor.Decision{ID: uuid.NewString(), Confidence: 0}, nil
	}

	idx := len(a.calls) - 1
	if idx >= len(a.decisions) {
		idx = len(a.decisions) - 1
	}
	d := a.decisions[idx]
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return d, nil
}

// Feedback implements advisor.Advisor.
func (a *Advisor) Feedback(ctx context.Context, decisionID, label, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feedback = append(a.feedback, Feedback{decisionID, label, reason})
	return nil
}

// Calls returns all recorded Classify calls, for test assertions.
func (a *Advisor) Calls() []Call { return append([]Call(nil), a.calls...) }

// FeedbackCalls returns all recorded Feedback calls.
func (a *Advisor) FeedbackCalls() []Feedback { return append([]Feedback(nil), a.feedback...) }
