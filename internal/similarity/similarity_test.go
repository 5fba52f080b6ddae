package similarity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanre/mail-flow/internal/feature"
)

func tokenSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func TestWeightsNormalizeAndValid(t *testing.T) {
	t.Run("default weights are already valid", func(t *testing.T) {
		assert.True(t, DefaultWeights().Valid())
	})

	t.Run("off-tolerance weights are invalid", func(t *testing.T) {
		w := Weights{FromDomain: 0.5, SubjectSimilarity: 0.5, HasPDF: 0.5}
		assert.False(t, w.Valid())
	})

	t.Run("normalize rescales to sum 1", func(t *testing.T) {
		w := Weights{FromDomain: 1, SubjectSimilarity: 1, HasPDF: 1, BodyKeywords: 1, ToAddress: 1}
		n := w.Normalize()
		assert.InDelta(t, 1.0, n.FromDomain+n.SubjectSimilarity+n.HasPDF+n.BodyKeywords+n.ToAddress, 0.0001)
		assert.True(t, n.Valid())
	})

	t.Run("normalize falls back to defaults when the sum is non-positive", func(t *testing.T) {
		w := Weights{}
		assert.Equal(t, DefaultWeights(), w.Normalize())
	})

	t.Run("New normalizes invalid weights instead of rejecting them", func(t *testing.T) {
		e := New(Weights{FromDomain: 1})
		assert.True(t, e.weights.Valid())
	})
}

func TestEngineScoreIdentity(t *testing.T) {
	e := New(DefaultWeights())

	t.Run("identical features score the maximum composite", func(t *testing.T) {
		f := feature.Features{
			FromDomain:    "acme.com",
			SubjectTokens: tokenSet("invoice", "march"),
			BodyTokens:    tokenSet("payment", "due"),
			HasPDF:        true,
			To:            "ap@acme.com",
		}
		score := e.Score(f, f)
		assert.InDelta(t, 1.0, score, 0.0001)
	})

	t.Run("completely disjoint features score the HasPDF-equality floor only", func(t *testing.T) {
		a := feature.Features{
			FromDomain:    "acme.com",
			SubjectTokens: tokenSet("invoice"),
			BodyTokens:    tokenSet("payment"),
			HasPDF:        true,
			To:            "ap@acme.com",
		}
		b := feature.Features{
			FromDomain:    "other.com",
			SubjectTokens: tokenSet("meeting"),
			BodyTokens:    tokenSet("calendar"),
			HasPDF:        true,
			To:            "sales@other.com",
		}
		score := e.Score(a, b)
		assert.InDelta(t, e.weights.HasPDF, score, 0.0001)
	})

	t.Run("empty query features score zero against anything", func(t *testing.T) {
		var empty feature.Features
		other := feature.Features{FromDomain: "acme.com", HasPDF: true}
		// empty.HasPDF == false == other.HasPDF is false here (other has true), so score is 0.
		score := e.Score(empty, other)
		assert.Equal(t, 0.0, score)
	})
}

func TestEngineScoreMonotonicity(t *testing.T) {
	e := New(DefaultWeights())
	query := feature.Features{
		FromDomain:    "acme.com",
		SubjectTokens: tokenSet("invoice", "march", "payment"),
		BodyTokens:    tokenSet("due", "balance", "remit"),
		HasPDF:        true,
		To:            "ap@acme.com",
	}

	t.Run("adding one matching signal never lowers the score", func(t *testing.T) {
		partial := feature.Features{
			SubjectTokens: tokenSet("invoice"),
			BodyTokens:    map[string]struct{}{},
		}
		plusDomain := partial
		plusDomain.FromDomain = "acme.com"

		assert.GreaterOrEqual(t, e.Score(query, plusDomain), e.Score(query, partial))
	})

	t.Run("a superset of matching subject tokens scores at least as high", func(t *testing.T) {
		fewer := feature.Features{SubjectTokens: tokenSet("invoice")}
		more := feature.Features{SubjectTokens: tokenSet("invoice", "march")}
		assert.GreaterOrEqual(t, e.Score(query, more), e.Score(query, fewer))
	})
}

func TestRankWorkflows(t *testing.T) {
	e := New(DefaultWeights())
	query := feature.Features{FromDomain: "acme.com", SubjectTokens: tokenSet("invoice")}

	t.Run("rejects a non-positive topN", func(t *testing.T) {
		_, err := e.RankWorkflows(query, nil, 0)
		assert.Error(t, err)
	})

	t.Run("groups by workflow and keeps the best-scoring examples first", func(t *testing.T) {
		criteria := []CriteriaInstance{
			{WorkflowName: "invoices", Features: feature.Features{FromDomain: "acme.com", SubjectTokens: tokenSet("invoice")}, Timestamp: time.Now()},
			{WorkflowName: "invoices", Features: feature.Features{SubjectTokens: tokenSet("invoice")}},
			{WorkflowName: "receipts", Features: feature.Features{}},
		}
		ranked, err := e.RankWorkflows(query, criteria, 5)
		require.NoError(t, err)
		require.NotEmpty(t, ranked)
		assert.Equal(t, "invoices", ranked[0].WorkflowName)
		assert.GreaterOrEqual(t, ranked[0].Score, ranked[len(ranked)-1].Score)
	})

	t.Run("truncates to topN, breaking score ties by workflow name", func(t *testing.T) {
		criteria := []CriteriaInstance{
			{WorkflowName: "b-flow", Features: feature.Features{}},
			{WorkflowName: "a-flow", Features: feature.Features{}},
			{WorkflowName: "c-flow", Features: feature.Features{}},
		}
		ranked, err := e.RankWorkflows(feature.Features{}, criteria, 2)
		require.NoError(t, err)
		require.Len(t, ranked, 2)
		assert.Equal(t, "a-flow", ranked[0].WorkflowName)
		assert.Equal(t, "b-flow", ranked[1].WorkflowName)
	})

	t.Run("caps BestExamples at three per workflow", func(t *testing.T) {
		criteria := make([]CriteriaInstance, 5)
		for i := range criteria {
			criteria[i] = CriteriaInstance{WorkflowName: "invoices", Features: feature.Features{}}
		}
		ranked, err := e.RankWorkflows(feature.Features{}, criteria, 5)
		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.Len(t, ranked[0].BestExamples, 3)
	})

	t.Run("the _skip label scores and ranks like any other workflow", func(t *testing.T) {
		criteria := []CriteriaInstance{
			{WorkflowName: SkipWorkflow, Features: query},
		}
		ranked, err := e.RankWorkflows(query, criteria, 5)
		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.Equal(t, SkipWorkflow, ranked[0].WorkflowName)
	})
}
