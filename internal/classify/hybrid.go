// Package classify implements a confidence-gated composition of the
// similarity engine and the LLM advisor, with feedback recording back into
// the training set.
package classify

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/classify/advisor"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/similarity"
)

// Method tags how a classification decision was produced.
type Method string

const (
	MethodSimilarity         Method = "similarity"
	MethodHybrid             Method = "hybrid"
	MethodLLM                Method = "llm"
	MethodSimilarityFallback Method = "similarity_fallback"
)

// Default confidence bands.
const (
	HighConfidence     = 0.85
	MediumConfidence   = 0.50
	DefaultSkipLLM     = 0.98
)

// CriteriaStore is the training-example persistence the classifier reads
// from and writes feedback to; implemented by the pipeline's on-disk store
// so this package stays storage-agnostic.
type CriteriaStore interface {
	All() ([]similarity.CriteriaInstance, error)
	CountNonSkip() (int, error)
	Add(similarity.CriteriaInstance) error
}

// Config configures a Classifier.
type Config struct {
	HighThreshold        float64
	MediumThreshold      float64
	SkipLLMThreshold     float64
	MinTrainingExamples  int
	TrustLLMThreshold    float64
	AllowLLM             bool
	Logger               hclog.Logger
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		HighThreshold:       HighConfidence,
		MediumThreshold:     MediumConfidence,
		SkipLLMThreshold:    DefaultSkipLLM,
		MinTrainingExamples: 5,
		TrustLLMThreshold:   0.6,
		AllowLLM:            true,
	}
}

// Stats are in-memory counters incremented on every Classify call.
type Stats struct {
	mu             sync.Mutex
	SimilarityOnly int
	LLMOnly        int
	LLMAssisted    int
}

func (s *Stats) record(method Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch method {
	case MethodSimilarity, MethodSimilarityFallback:
		s.SimilarityOnly++
	case MethodLLM:
		s.LLMOnly++
	case MethodHybrid:
		s.LLMAssisted++
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{SimilarityOnly: s.SimilarityOnly, LLMOnly: s.LLMOnly, LLMAssisted: s.LLMAssisted}
}

// Result is the outcome of one Classify call.
type Result struct {
	WorkflowName   string // "" (with Skip=true) means no archive write
	Skip           bool
	Confidence     float64
	Method         Method
	LLMSuggestion  *advisor.Decision
	SimilarityTop  []similarity.Ranked
}

// Classifier composes the similarity engine and the LLM advisor.
type Classifier struct {
	cfg     Config
	engine  *similarity.Engine
	advisor advisor.Advisor
	store   CriteriaStore
	stats   Stats
	logger  hclog.Logger
}

// New creates a Classifier. advisor may be nil if cfg.AllowLLM is false.
func New(cfg Config, engine *similarity.Engine, adv advisor.Advisor, store CriteriaStore) *Classifier {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Classifier{cfg: cfg, engine: engine, advisor: adv, store: store, logger: cfg.Logger.Named("hybrid-classifier")}
}

// Stats returns the current in-memory stat counters.
func (c *Classifier) Stats() Stats { return c.stats.Snapshot() }

// Classify runs the confidence-gated composition of similarity and LLM.
// it carries both the normalized Features the similarity engine scores
// against and the raw Body/BodyHTML the LLM advisor reads when consulted.
func (c *Classifier) Classify(ctx context.Context, it *feature.Item, workflowFilter []string) (Result, error) {
	criteria, err := c.store.All()
	if err != nil {
		return Result{}, err
	}

	nonSkipCount, err := c.store.CountNonSkip()
	if err != nil {
		return Result{}, err
	}

	ranked, rankErr := c.engine.RankWorkflows(it.Features, criteria, 5)
	if rankErr != nil {
		ranked = nil
	}

	gateDisabled := nonSkipCount < c.cfg.MinTrainingExamples

	if gateDisabled {
		if c.cfg.AllowLLM && c.advisor != nil {
			return c.classifyWithLLM(ctx, it, workflowFilter, ranked, MethodLLM)
		}
		return similarityResult(ranked, MethodSimilarity, &c.stats), nil
	}

	if len(ranked) == 0 {
		if c.cfg.AllowLLM && c.advisor != nil {
			return c.classifyWithLLM(ctx, it, workflowFilter, ranked, MethodLLM)
		}
		return similarityResult(ranked, MethodSimilarity, &c.stats), nil
	}

	top := ranked[0]

	if top.Score >= c.cfg.SkipLLMThreshold {
		return similarityResult(ranked, MethodSimilarity, &c.stats), nil
	}

	if top.Score >= c.cfg.HighThreshold {
		return similarityResult(ranked, MethodSimilarity, &c.stats), nil
	}

	if top.Score >= c.cfg.MediumThreshold {
		if !c.cfg.AllowLLM || c.advisor == nil {
			return similarityResult(ranked, MethodSimilarity, &c.stats), nil
		}
		decision, err := c.callAdvisor(ctx, it, workflowFilter)
		if err != nil {
			c.logger.Warn("advisor call failed during assist; keeping similarity winner", "error", err)
			return similarityResult(ranked, MethodSimilarity, &c.stats), nil
		}
		res := similarityResult(ranked, MethodHybrid, &c.stats)
		res.LLMSuggestion = &decision
		return res, nil
	}

	// s* < MEDIUM: LLM is primary if enabled, else similarity ranking stands.
	if c.cfg.AllowLLM && c.advisor != nil {
		return c.classifyWithLLM(ctx, it, workflowFilter, ranked, MethodLLM)
	}
	return similarityResult(ranked, MethodSimilarity, &c.stats), nil
}

// ClassifyAsync mirrors Classify but runs on its own goroutine, giving
// callers an explicit async entry point. Classify itself already accepts
// ctx and performs no blocking unless the advisor call does.
func (c *Classifier) ClassifyAsync(ctx context.Context, it *feature.Item, workflowFilter []string) <-chan asyncResult {
	out := make(chan asyncResult, 1)
	go func() {
		res, err := c.Classify(ctx, it, workflowFilter)
		out <- asyncResult{Result: res, Err: err}
		close(out)
	}()
	return out
}

type asyncResult struct {
	Result Result
	Err    error
}

func (c *Classifier) classifyWithLLM(ctx context.Context, it *feature.Item, workflowFilter []string, ranked []similarity.Ranked, method Method) (Result, error) {
	decision, err := c.callAdvisor(ctx, it, workflowFilter)
	if err != nil {
		c.logger.Warn("advisor failed; falling back to similarity ranking", "error", err)
		return similarityResult(ranked, MethodSimilarityFallback, &c.stats), nil
	}

	res := Result{
		Confidence:    decision.Confidence,
		Method:        method,
		LLMSuggestion: &decision,
		SimilarityTop: ranked,
	}
	if decision.Confidence >= c.cfg.TrustLLMThreshold && decision.Label != "" {
		res.WorkflowName = decision.Label
	} else {
		res.Skip = true
	}
	c.stats.record(method)
	return res, nil
}

func (c *Classifier) callAdvisor(ctx context.Context, it *feature.Item, workflowFilter []string) (advisor.Decision, error) {
	f := it.Features
	meta := map[string]any{
		"from_domain":     f.FromDomain,
		"to":              f.To,
		"has_pdf":         f.HasPDF,
		"num_attachments": f.NumAttachments,
		"subject":         it.Origin["subject"],
	}
	text := it.Body
	if text == "" {
		text = it.BodyHTML
	}
	return c.advisor.Classify(ctx, text, meta, workflowFilter, advisor.Options{
		AllowLLM:       c.cfg.AllowLLM,
		MaxCandidates:  5,
		WorkflowFilter: workflowFilter,
	})
}

// RecordFeedback appends a user-confirmed (or negative/"_skip") training
// example and, when an advisor is configured, relays the correction so the
// advisor can learn from it too.
func (c *Classifier) RecordFeedback(ctx context.Context, emailID string, f feature.Features, workflowName string, decisionID, reason string) error {
	ci := similarity.CriteriaInstance{
		EmailID:       emailID,
		WorkflowName:  workflowName,
		Features:      f,
		UserConfirmed: true,
	}
	if err := c.store.Add(ci); err != nil {
		return err
	}
	if c.advisor != nil && decisionID != "" {
		return c.advisor.Feedback(ctx, decisionID, workflowName, reason)
	}
	return nil
}

func similarityResult(ranked []similarity.Ranked, method Method, stats *Stats) Result {
	stats.record(method)
	if len(ranked) == 0 {
		return Result{Skip: true, Method: method, SimilarityTop: ranked}
	}
	top := ranked[0]
	if top.WorkflowName == similarity.SkipWorkflow {
		return Result{Skip: true, Confidence: top.Score, Method: method, SimilarityTop: ranked}
	}
	return Result{
		WorkflowName:  top.WorkflowName,
		Confidence:    top.Score,
		Method:        method,
		SimilarityTop: ranked,
	}
}
