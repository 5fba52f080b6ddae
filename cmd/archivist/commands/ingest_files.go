package commands

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/juanre/mail-flow/internal/adapters/localfiles"
	"github.com/juanre/mail-flow/internal/pipeline"
)

// IngestFilesCommand walks a directory of standalone files, classifying
// and archiving each one (subject to --dry-run/--train-only/--replay).
type IngestFilesCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *IngestFilesCommand) Help() string {
	return "Usage: archivist ingest files <dir> [--base PATH] [--dry-run|--train-only|--replay]\n" +
		"    [--workflows w1,w2] [--min-confidence F] [--trust-llm F]\n" +
		"    [--after YYYY-MM-DD] [--before YYYY-MM-DD] [--max N] [--force]\n\n" +
		"Archive every file under <dir>."
}

func (c *IngestFilesCommand) Synopsis() string { return "Archive files from a directory" }

func (c *IngestFilesCommand) Run(args []string) int {
	var base, workflowsFlag, after, before string
	var dryRun, trainOnly, replay, force bool
	var max int
	var minConfidence, trustLLM float64
	fs := flag.NewFlagSet("ingest files", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	fs.BoolVar(&dryRun, "dry-run", false, "classify only, do not archive")
	fs.BoolVar(&trainOnly, "train-only", false, "classify and record feedback, do not archive")
	fs.BoolVar(&replay, "replay", false, "skip classification, re-archive using the recorded workflow")
	fs.StringVar(&workflowsFlag, "workflows", "", "comma-separated workflow names to restrict classification to")
	fs.Float64Var(&minConfidence, "min-confidence", 0, "override the similarity high-confidence threshold")
	fs.Float64Var(&trustLLM, "trust-llm", 0, "override the confidence above which an LLM suggestion is trusted")
	fs.StringVar(&after, "after", "", "only files modified after this date (YYYY-MM-DD)")
	fs.StringVar(&before, "before", "", "only files modified before this date (YYYY-MM-DD)")
	fs.IntVar(&max, "max", 0, "maximum number of files to ingest")
	fs.BoolVar(&force, "force", false, "bypass the dedup check and re-archive even if already processed")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	if fs.NArg() != 1 {
		c.UI.Error("expected exactly one <dir> argument")
		return ExitInputError
	}
	dir := fs.Arg(0)
	base = defaultBase(base)

	var afterT, beforeT time.Time
	if after != "" {
		t, err := time.Parse("2006-01-02", after)
		if err != nil {
			c.UI.Error("invalid --after date: " + err.Error())
			return ExitInputError
		}
		afterT = t
	}
	if before != "" {
		t, err := time.Parse("2006-01-02", before)
		if err != nil {
			c.UI.Error("invalid --before date: " + err.Error())
			return ExitInputError
		}
		beforeT = t
	}

	opts := appOptions{WorkflowFilter: splitCSVFlag(workflowsFlag)}
	if minConfidence > 0 {
		opts.MinConfidence = &minConfidence
	}
	if trustLLM > 0 {
		opts.TrustLLM = &trustLLM
	}

	a, err := buildApp(base, c.Logger, opts)
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	defer a.Close()

	adapter := localfiles.New(localfiles.Config{Dir: dir, After: afterT, Before: beforeT, Max: max})

	mode := pipeline.Mode{DryRun: dryRun, TrainOnly: trainOnly, Replay: replay, Force: force}
	summary, err := a.Orchestrator.RunBatch(context.Background(), adapter, mode)
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	if summary.Aborted {
		c.UI.Error("batch aborted: " + summary.AbortErr.Error())
		return exitCodeFor(summary.AbortErr)
	}
	c.UI.Output(summaryLine(summary))
	if summary.Errored > 0 {
		return ExitWorkflowError
	}
	return ExitOK
}

func splitCSVFlag(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
