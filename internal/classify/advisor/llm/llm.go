// Package llm implements advisor.Advisor over any langchaingo-compatible
// chat model: it builds a structured classification prompt, asks for a JSON
// decision, and parses the response. The concrete provider (Bedrock,
// OpenAI, a local Ollama model, ...) is whatever llms.Model the caller
// configures; this package only owns the prompt/parse contract.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/juanre/mail-flow/internal/classify/advisor"
)

// Advisor wraps a langchaingo llms.Model as a classify/advisor.Advisor.
type Advisor struct {
	model       llms.Model
	maxTextRune int
}

// Config configures an Advisor.
type Config struct {
	Model llms.Model
	// MaxTextRunes truncates the document text embedded in the prompt;
	// defaults to 4000.
	MaxTextRunes int
}

// New creates an Advisor backed by cfg.Model.
func New(cfg Config) *Advisor {
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = 4000
	}
	return &Advisor{model: cfg.Model, maxTextRune: cfg.MaxTextRunes}
}

var _ advisor.Advisor = (*Advisor)(nil)

type decisionJSON struct {
	Label      string              `json:"label"`
	Confidence float64             `json:"confidence"`
	Candidates []advisor.Candidate `json:"candidates"`
	Evidence   string              `json:"evidence"`
}

// Classify implements advisor.Advisor.
func (a *Advisor) Classify(ctx context.Context, text string, meta map[string]any, workflows []string, opts advisor.Options) (advisor.Decision, error) {
	if !opts.AllowLLM {
		return advisor.Decision{}, fmt.Errorf("llm advisor: called with AllowLLM=false")
	}

	runes := []rune(text)
	if len(runes) > a.maxTextRune {
		runes = runes[:a.maxTextRune]
	}

	maxCandidates := opts.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 3
	}

	prompt := buildPrompt(string(runes), meta, workflows, maxCandidates)

	raw, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt,
		llms.WithTemperature(0),
		llms.WithJSONMode(),
	)
	if err != nil {
		return advisor.Decision{}, fmt.Errorf("llm advisor: generate: %w", err)
	}

	var dj decisionJSON
	if err := json.Unmarshal([]byte(extractJSON(raw)), &dj); err != nil {
		return advisor.Decision{}, fmt.Errorf("llm advisor: parse response: %w", err)
	}

	if len(dj.Candidates) > maxCandidates {
		dj.Candidates = dj.Candidates[:maxCandidates]
	}

	return advisor.Decision{
		ID:           uuid.NewString(),
		Label:        dj.Label,
		Confidence:   dj.Confidence,
		Candidates:   dj.Candidates,
		Evidence:     dj.Evidence,
		AdvisorsUsed: []string{"llm"},
	}, nil
}

// Feedback implements advisor.Advisor. Most langchaingo-compatible
// providers have no fine-tuning feedback endpoint reachable through
// llms.Model, so this only records the call was accepted.
func (a *Advisor) Feedback(ctx context.Context, decisionID, label, reason string) error {
	return nil
}

func buildPrompt(text string, meta map[string]any, workflows []string, maxCandidates int) string {
	var b strings.Builder
	b.WriteString("You are classifying an archived document into exactly one workflow name, or none.\n")
	b.WriteString("Respond with a single JSON object: {\"label\": string, \"confidence\": number between 0 and 1, ")
	b.WriteString("\"candidates\": [{\"label\": string, \"confidence\": number}], \"evidence\": string}.\n")
	b.WriteString("Use label \"\" if no workflow applies.\n\n")
	fmt.Fprintf(&b, "Candidate workflows: %s\n", strings.Join(workflows, ", "))
	fmt.Fprintf(&b, "Return at most %d candidates.\n\n", maxCandidates)
	if len(meta) > 0 {
		b.WriteString("Metadata:\n")
		for k, v := range meta {
			fmt.Fprintf(&b, "  %s: %v\n", k, v)
		}
		b.WriteString("\n")
	}
	b.WriteString("Document text:\n")
	b.WriteString(text)
	return b.String()
}

// extractJSON trims any leading/trailing prose a model adds around the
// JSON object, keeping only the outermost braces.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
