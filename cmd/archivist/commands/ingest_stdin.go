package commands

import (
	"context"
	"flag"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/juanre/mail-flow/internal/adapters/stdin"
	"github.com/juanre/mail-flow/internal/pipeline"
)

// IngestStdinCommand classifies and archives a single item read from
// standard input.
type IngestStdinCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *IngestStdinCommand) Help() string {
	return "Usage: archivist ingest stdin [--base PATH] [--dry-run]\n\n" +
		"Read one item from stdin, classify it, and archive it."
}

func (c *IngestStdinCommand) Synopsis() string { return "Archive one item read from stdin" }

func (c *IngestStdinCommand) Run(args []string) int {
	var base string
	var dryRun bool
	fs := flag.NewFlagSet("ingest stdin", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	fs.BoolVar(&dryRun, "dry-run", false, "classify only, do not archive")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	base = defaultBase(base)

	a, err := buildApp(base, c.Logger, appOptions{})
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	defer a.Close()

	adapter := stdin.New(c.UI.(*cli.BasicUi).Reader)

	summary, err := a.Orchestrator.RunBatch(context.Background(), adapter, pipeline.Mode{DryRun: dryRun})
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
