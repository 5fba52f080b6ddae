package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juanre/mail-flow/internal/archive"
	"github.com/juanre/mail-flow/internal/classify"
	"github.com/juanre/mail-flow/internal/criteria"
	"github.com/juanre/mail-flow/internal/dedup"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/renderer/mock"
	"github.com/juanre/mail-flow/internal/similarity"
	"github.com/juanre/mail-flow/internal/workflow"
)

// fakeAdapter replays a fixed list of items, recording acks for assertions.
type fakeAdapter struct {
	items []*SourceItem
	pos   int
	acks  map[string]AckResult
}

func (f *fakeAdapter) Next(ctx context.Context) (*SourceItem, bool, error) {
	if f.pos >= len(f.items) {
		return nil, false, nil
	}
	item := f.items[f.pos]
	f.pos++
	return item, true, nil
}

func (f *fakeAdapter) Ack(ctx context.Context, id string, result AckResult) error {
	if f.acks == nil {
		f.acks = map[string]AckResult{}
	}
	f.acks[id] = result
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *dedup.Tracker) {
	t.Helper()
	dir := t.TempDir()

	wfRegistry, err := workflow.Load(workflow.Config{Path: filepath.Join(dir, "workflows.json")})
	require.NoError(t, err)
	require.NoError(t, wfRegistry.Add(&workflow.Workflow{
		Name: "invoices", Entity: "acme", Doctype: "invoice",
	}))

	store, err := criteria.Load(criteria.Config{Path: filepath.Join(dir, "criteria.json")})
	require.NoError(t, err)
	require.NoError(t, store.Add(similarity.CriteriaInstance{
		EmailID: "seed-1", WorkflowName: "invoices",
		Features: feature.Features{FromDomain: "acme.com", HasPDF: true},
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Add(similarity.CriteriaInstance{
			EmailID: "seed-pad", WorkflowName: "invoices",
			Features: feature.Features{FromDomain: "acme.com", HasPDF: true},
		}))
	}

	engine := similarity.New(similarity.DefaultWeights())
	classifierCfg := classify.DefaultConfig()
	classifierCfg.AllowLLM = false
	clf := classify.New(classifierCfg, engine, nil, store)

	dd, err := dedup.Open(filepath.Join(dir, "dedup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dd.Close() })

	writer := archive.New(archive.Config{BasePath: filepath.Join(dir, "archive")}, mock.New())

	extractor := feature.New(feature.Config{})

	o := New(Config{
		Extractor:  extractor,
		Dedup:      dd,
		Classifier: clf,
		Workflows:  wfRegistry,
		Archiver:   writer,
	})
	return o, dd
}

func rawItem(id string) *SourceItem {
	return &SourceItem{
		ID: id,
		Raw: feature.RawItem{
			Source:   "other",
			RawBytes: []byte("Acme Corp quarterly invoice PDF attached"),
			Origin: map[string]any{
				"from":    "billing@acme.com",
				"subject": "Acme Corp quarterly invoice",
				"date":    "2025-03-01T00:00:00Z",
			},
			Attachments: []feature.Attachment{{Filename: "invoice.pdf", Mime: "application/pdf", IsPDF: true}},
		},
	}
}

func TestRunBatchArchivesAndMarksProcessed(t *testing.T) {
	o, dd := newTestOrchestrator(t)
	adapter := &fakeAdapter{items: []*SourceItem{rawItem("item-1")}}

	summary, err := o.RunBatch(context.Background(), adapter, Mode{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, summary.Archived)
	require.Equal(t, AckArchived, adapter.acks["item-1"])

	processed, err := dd.IsProcessed(adapter.items[0].Raw.RawBytes, "")
	require.NoError(t, err)
	require.True(t, processed)
}

func TestRunBatchSkipsAlreadyProcessed(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	item := rawItem("item-1")

	summary, err := o.RunBatch(context.Background(), &fakeAdapter{items: []*SourceItem{item}}, Mode{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Archived)

	summary, err = o.RunBatch(context.Background(), &fakeAdapter{items: []*SourceItem{item}}, Mode{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, 0, summary.Archived)
}

func TestRunBatchDryRunWritesNothing(t *testing.T) {
	o, dd := newTestOrchestrator(t)
	item := rawItem("item-1")

	summary, err := o.RunBatch(context.Background(), &fakeAdapter{items: []*SourceItem{item}}, Mode{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Skipped)

	processed, err := dd.IsProcessed(item.Raw.RawBytes, "")
	require.NoError(t, err)
	require.False(t, processed, "dry_run must not mark the dedup tracker")
}

func TestRunBatchTrainOnlyRecordsCriteriaNotArchive(t *testing.T) {
	o, dd := newTestOrchestrator(t)
	item := rawItem("item-1")

	summary, err := o.RunBatch(context.Background(), &fakeAdapter{items: []*SourceItem{item}}, Mode{TrainOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Skipped)

	processed, err := dd.IsProcessed(item.Raw.RawBytes, "")
	require.NoError(t, err)
	require.False(t, processed, "train_only must not mark the dedup tracker")
}
