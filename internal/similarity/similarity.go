// Package similarity implements a fast, local pre-filter that scores
// workflows against recorded training examples using a weighted Jaccard
// composite, with no time decay.
package similarity

import (
	"fmt"
	"sort"
	"time"

	"github.com/juanre/mail-flow/internal/feature"
)

// SkipWorkflow is the special negative-training label.
const SkipWorkflow = "_skip"

// Weights are the per-feature weights composing the similarity score. Must
// sum to 1 ± 0.01; Normalize rescales if not.
type Weights struct {
	FromDomain        float64
	SubjectSimilarity float64
	HasPDF            float64
	BodyKeywords      float64
	ToAddress         float64
}

// DefaultWeights returns the default per-feature weights.
func DefaultWeights() Weights {
	return Weights{
		FromDomain:        0.30,
		SubjectSimilarity: 0.25,
		HasPDF:            0.20,
		BodyKeywords:      0.15,
		ToAddress:         0.10,
	}
}

func (w Weights) sum() float64 {
	return w.FromDomain + w.SubjectSimilarity + w.HasPDF + w.BodyKeywords + w.ToAddress
}

// Normalize rescales w so its components sum to 1.0, used when config load
// finds weights off by more than the ±0.01 tolerance.
func (w Weights) Normalize() Weights {
	s := w.sum()
	if s <= 0 {
		return DefaultWeights()
	}
	return Weights{
		FromDomain:        w.FromDomain / s,
		SubjectSimilarity: w.SubjectSimilarity / s,
		HasPDF:            w.HasPDF / s,
		BodyKeywords:      w.BodyKeywords / s,
		ToAddress:         w.ToAddress / s,
	}
}

// Valid reports whether w sums to 1 within ±0.01.
func (w Weights) Valid() bool {
	s := w.sum()
	return s >= 0.99 && s <= 1.01
}

// CriteriaInstance is a labelled training example.
type CriteriaInstance struct {
	EmailID         string
	WorkflowName    string
	Timestamp       time.Time
	Features        feature.Features
	UserConfirmed   bool
	ConfidenceScore *float64
}

// Match pairs a score with the training example that produced it.
type Match struct {
	Score     float64
	Example   CriteriaInstance
}

// Ranked is one workflow's aggregate similarity result.
type Ranked struct {
	WorkflowName  string
	Score         float64 // max score over all examples for this workflow
	BestExamples  []CriteriaInstance // up to 3 best matching examples
}

// Engine scores and ranks workflows by similarity.
type Engine struct {
	weights Weights
}

// New creates an Engine, normalizing weights if they don't sum to 1±0.01.
func New(w Weights) *Engine {
	if !w.Valid() {
		w = w.Normalize()
	}
	return &Engine{weights: w}
}

// Score computes the weighted composite score between a query's features
// and one training example.
func (e *Engine) Score(query feature.Features, ex feature.Features) float64 {
	var score float64

	if query.FromDomain != "" && query.FromDomain == ex.FromDomain {
		score += e.weights.FromDomain
	}
	score += e.weights.SubjectSimilarity * jaccard(query.SubjectTokens, ex.SubjectTokens)
	if query.HasPDF == ex.HasPDF {
		score += e.weights.HasPDF
	}
	score += e.weights.BodyKeywords * jaccard(query.BodyTokens, ex.BodyTokens)
	if query.To != "" && query.To == ex.To {
		score += e.weights.ToAddress
	}

	return score
}

// RankWorkflows groups criteria by workflow_name and returns the topN
// workflows by descending max score, each with up to three best matching
// examples. The special "_skip" workflow is scored like any other,
// enabling negative training.
func (e *Engine) RankWorkflows(query feature.Features, criteria []CriteriaInstance, topN int) ([]Ranked, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("similarity: topN must be positive, got %d", topN)
	}

	byWorkflow := map[string][]Match{}
	for _, c := range criteria {
		s := e.Score(query, c.Features)
		byWorkflow[c.WorkflowName] = append(byWorkflow[c.WorkflowName], Match{Score: s, Example: c})
	}

	ranked := make([]Ranked, 0, len(byWorkflow))
	for name, matches := range byWorkflow {
		sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
		best := matches[0].Score
		n := 3
		if len(matches) < n {
			n = len(matches)
		}
		examples := make([]CriteriaInstance, n)
		for i := 0; i < n; i++ {
			examples[i] = matches[i].Example
		}
		ranked = append(ranked, Ranked{WorkflowName: name, Score: best, BestExamples: examples})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].WorkflowName < ranked[j].WorkflowName
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

// jaccard computes the Jaccard similarity |A∩B| / |A∪B| of two token sets.
// Two empty sets score 0 (no information); disjoint sets also score 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
