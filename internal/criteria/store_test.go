package criteria

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/similarity"
)

func TestAddPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criteria.json")

	s1, err := Load(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s1.Add(similarity.CriteriaInstance{
		EmailID: "1", WorkflowName: "invoices", Features: feature.Features{FromDomain: "acme.com"},
	}))
	require.NoError(t, s1.Add(similarity.CriteriaInstance{
		EmailID: "2", WorkflowName: similarity.SkipWorkflow,
	}))

	s2, err := Load(Config{Path: path})
	require.NoError(t, err)
	all, err := s2.All()
	require.NoError(t, err)
	require.Len(t, all, 2)

	n, err := s2.CountNonSkip()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestIsReferenced(t *testing.T) {
	s, err := Load(Config{Path: filepath.Join(t.TempDir(), "criteria.json")})
	require.NoError(t, err)
	require.NoError(t, s.Add(similarity.CriteriaInstance{EmailID: "1", WorkflowName: "invoices"}))

	ref, err := s.IsReferenced("invoices")
	require.NoError(t, err)
	require.True(t, ref)

	ref, err = s.IsReferenced("unused")
	require.NoError(t, err)
	require.False(t, ref)
}
