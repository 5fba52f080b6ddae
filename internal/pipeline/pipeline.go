// Package pipeline binds a SourceAdapter to feature extraction, dedup,
// classification, and archiving, with batch-level retry/backoff and the
// dry_run/train_only/replay execution modes.
package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/archive"
	"github.com/juanre/mail-flow/internal/classify"
	"github.com/juanre/mail-flow/internal/dedup"
	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/index"
	"github.com/juanre/mail-flow/internal/similarity"
	"github.com/juanre/mail-flow/internal/workflow"
)

// MaxConsecutiveTransient aborts a batch once this many transient errors in
// a row have been observed.
const MaxConsecutiveTransient = 3

// AckResult tells a SourceAdapter what became of an item it yielded, so it
// can relabel or otherwise acknowledge upstream (e.g. a Gmail message).
type AckResult string

const (
	AckArchived AckResult = "archived"
	AckSkipped  AckResult = "skipped"
	AckError    AckResult = "error"
)

// SourceItem is one record pulled from a SourceAdapter. ReplayWorkflow is
// only consulted when Mode.Replay is set: it supplies a previously recorded
// decision so the item can be re-archived without re-classifying.
type SourceItem struct {
	ID             string
	Raw            feature.RawItem
	ReplayWorkflow string
}

// SourceAdapter is the iterator-like contract every ingest source
// implements: Next yields the next item (ok=false once exhausted), Ack
// reports back what happened to it.
type SourceAdapter interface {
	Next(ctx context.Context) (item *SourceItem, ok bool, err error)
	Ack(ctx context.Context, id string, result AckResult) error
}

// Mode selects which steps of the pipeline run for this batch.
type Mode struct {
	DryRun    bool // classify only; no archive write, no dedup mark, no feedback
	TrainOnly bool // classify and record feedback; no archive write
	Replay    bool // skip classification, re-archive using SourceItem.ReplayWorkflow
	Force     bool // bypass the already-processed dedup check and re-archive
}

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Extractor      *feature.Extractor
	Dedup          *dedup.Tracker
	Classifier     *classify.Classifier
	Workflows      *workflow.Registry
	Archiver       *archive.Writer
	Index          *index.Index // optional; nil skips the indexing step
	WorkflowFilter []string
	Logger         hclog.Logger
}

// Orchestrator runs one item at a time through Extracted -> DedupChecked ->
// Classified -> Archived -> Indexed -> MarkedProcessed.
type Orchestrator struct {
	cfg    Config
	logger hclog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger.Named("pipeline")}
}

// Status is the terminal state of one item.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome is the result of running one item through the pipeline.
type Outcome struct {
	ItemID     string
	Status     Status
	Reason     string // "already_processed", "no_workflow", "dry_run", "train_only", ""
	DocumentID string
	Err        error
	Retryable  bool
}

// BatchSummary tallies a RunBatch call.
type BatchSummary struct {
	Processed int
	Archived  int
	Skipped   int
	Errored   int
	Aborted   bool
	AbortErr  error
}

// RunBatch drains adapter, running each item through the pipeline.
// Permanent per-item errors are counted and the batch continues; transient
// errors increment a consecutive counter and sleep with exponential
// backoff, aborting once MaxConsecutiveTransient is reached.
func (o *Orchestrator) RunBatch(ctx context.Context, adapter SourceAdapter, mode Mode) (BatchSummary, error) {
	var summary BatchSummary

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	consecutiveTransient := 0

	for {
		item, ok, err := adapter.Next(ctx)
		if err != nil {
			return summary, errs.New(errs.IOError, "run-batch-next", err)
		}
		if !ok {
			return summary, nil
		}

		outcome := o.processOne(ctx, item, mode)
		summary.Processed++

		switch outcome.Status {
		case StatusOK:
			summary.Archived++
			consecutiveTransient = 0
			bo.Reset()
			_ = adapter.Ack(ctx, item.ID, AckArchived)
		case StatusSkipped:
			summary.Skipped++
			consecutiveTransient = 0
			bo.Reset()
			_ = adapter.Ack(ctx, item.ID, AckSkipped)
		case StatusError:
			summary.Errored++
			_ = adapter.Ack(ctx, item.ID, AckError)
			if !outcome.Retryable {
				consecutiveTransient = 0
				bo.Reset()
				continue
			}
			consecutiveTransient++
			if consecutiveTransient >= MaxConsecutiveTransient {
				summary.Aborted = true
				summary.AbortErr = outcome.Err
				return summary, nil
			}
			sleepFor := bo.NextBackOff()
			o.logger.Warn("transient error, backing off", "item", item.ID, "sleep", sleepFor, "consecutive", consecutiveTransient)
			select {
			case <-time.After(sleepFor):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}
	}
}

func (o *Orchestrator) processOne(ctx context.Context, item *SourceItem, mode Mode) Outcome {
	it, err := o.cfg.Extractor.Extract(item.Raw)
	if err != nil {
		return errOutcome(item.ID, err)
	}

	alreadyProcessed, err := o.cfg.Dedup.IsProcessed(item.Raw.RawBytes, it.MessageID())
	if err != nil {
		return errOutcome(item.ID, err)
	}
	if alreadyProcessed && !mode.Replay && !mode.Force {
		return Outcome{ItemID: item.ID, Status: StatusSkipped, Reason: "already_processed"}
	}

	var workflowName string
	var confidence float64

	if mode.Replay && item.ReplayWorkflow != "" {
		workflowName = item.ReplayWorkflow
	} else {
		result, err := o.cfg.Classifier.Classify(ctx, it, o.cfg.WorkflowFilter)
		if err != nil {
			return errOutcome(item.ID, err)
		}
		if result.Skip || result.WorkflowName == "" {
			if !mode.DryRun {
				if fbErr := o.cfg.Classifier.RecordFeedback(ctx, item.ID, it.Features, similarity.SkipWorkflow, "", "no_workflow_match"); fbErr != nil {
					o.logger.Warn("failed to record skip feedback", "item", item.ID, "error", fbErr)
				}
			}
			return Outcome{ItemID: item.ID, Status: StatusSkipped, Reason: "no_workflow"}
		}
		workflowName = result.WorkflowName
		confidence = result.Confidence
	}

	wf, err := o.cfg.Workflows.Get(workflowName)
	if err != nil {
		return errOutcome(item.ID, err)
	}

	if mode.DryRun {
		return Outcome{ItemID: item.ID, Status: StatusSkipped, Reason: "dry_run"}
	}

	if mode.TrainOnly {
		if fbErr := o.cfg.Classifier.RecordFeedback(ctx, item.ID, it.Features, wf.Name, "", "train_only"); fbErr != nil {
			return errOutcome(item.ID, fbErr)
		}
		return Outcome{ItemID: item.ID, Status: StatusSkipped, Reason: "train_only"}
	}

	writeResult, err := o.cfg.Archiver.Write(ctx, archive.Request{
		Item:       it,
		Workflow:   wf,
		Category:   wf.Name,
		Confidence: &confidence,
	})
	if err != nil {
		return errOutcome(item.ID, err)
	}

	if o.cfg.Index != nil {
		if idxErr := o.indexResult(writeResult, wf, it, confidence); idxErr != nil {
			o.logger.Warn("archive succeeded but indexing failed", "document_id", writeResult.DocumentID.String(), "error", idxErr)
		}
	}

	if err := o.cfg.Dedup.MarkProcessed(item.Raw.RawBytes, it.MessageID(), wf.Name); err != nil {
		return errOutcome(item.ID, err)
	}

	if fbErr := o.cfg.Classifier.RecordFeedback(ctx, item.ID, it.Features, wf.Name, "", "archived"); fbErr != nil {
		o.logger.Warn("failed to record archive feedback", "item", item.ID, "error", fbErr)
	}

	return Outcome{ItemID: item.ID, Status: StatusOK, DocumentID: writeResult.DocumentID.String()}
}

func (o *Orchestrator) indexResult(wr *archive.Result, wf *workflow.Workflow, it *feature.Item, confidence float64) error {
	size, err := fileSize(wr.ContentPath)
	if err != nil {
		o.logger.Warn("could not stat archived content for indexing", "path", wr.ContentPath, "error", err)
	}

	subject, _ := it.Origin["subject"].(string)
	from, _ := it.Origin["from"].(string)
	originJSON, jErr := json.Marshal(it.Origin)
	if jErr != nil {
		o.logger.Warn("could not marshal origin for indexing", "error", jErr)
		originJSON = []byte("{}")
	}

	row := index.DocumentRow{
		DocumentID:    wr.DocumentID.String(),
		Entity:        wf.Entity,
		Date:          wr.DocumentID.CreatedAt().Format("2006-01-02"),
		Filename:      filepath.Base(wr.ContentPath),
		RelPath:       wr.ContentPath,
		Hash:          wr.DocumentID.Hash(),
		Size:          size,
		Type:          wf.Doctype,
		Source:        it.Source,
		Workflow:      wf.Name,
		Confidence:    &confidence,
		EmailSubject:  subject,
		EmailFrom:     from,
		SearchContent: it.Body,
		OriginJSON:    string(originJSON),
	}
	return o.cfg.Index.UpsertDocument(row)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func errOutcome(itemID string, err error) Outcome {
	return Outcome{
		ItemID:    itemID,
		Status:    StatusError,
		Err:       err,
		Retryable: errs.IsRetryable(err),
	}
}
