package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"golang.org/x/oauth2"

	"github.com/juanre/mail-flow/internal/adapters/gmail"
	"github.com/juanre/mail-flow/internal/pipeline"
)

// IngestGmailCommand pulls matching messages from Gmail via the REST API,
// classifying and archiving each one.
type IngestGmailCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *IngestGmailCommand) Help() string {
	return "Usage: archivist ingest gmail [--base PATH] [--query Q] [--label L]\n" +
		"    [--processed-label L] [--max N] [--remove-from-inbox]\n\n" +
		"Requires GMAIL_OAUTH_TOKEN in the environment (a bearer access token)."
}

func (c *IngestGmailCommand) Synopsis() string { return "Archive messages from Gmail" }

func (c *IngestGmailCommand) Run(args []string) int {
	var base, query, label, processedLabel string
	var max int
	var removeFromInbox bool
	fs := flag.NewFlagSet("ingest gmail", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	fs.StringVar(&query, "query", "", "Gmail search query")
	fs.StringVar(&label, "label", "", "restrict to messages carrying this label")
	fs.StringVar(&processedLabel, "processed-label", "", "label to add once a message is archived")
	fs.IntVar(&max, "max", 0, "maximum number of messages to list")
	fs.BoolVar(&removeFromInbox, "remove-from-inbox", false, "remove INBOX label once archived")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	base = defaultBase(base)

	token := os.Getenv("GMAIL_OAUTH_TOKEN")
	if token == "" {
		c.UI.Error("GMAIL_OAUTH_TOKEN is not set")
		return ExitConfigError
	}

	a, err := buildApp(base, c.Logger, appOptions{})
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	defer a.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	adapter := gmail.New(gmail.Config{
		TokenSource:     ts,
		Query:           query,
		Label:           label,
		ProcessedLabel:  processedLabel,
		Max:             max,
		RemoveFromInbox: removeFromInbox,
	})

	if max > 0 {
		c.UI.Output(fmt.Sprintf("estimated cost for up to %d messages: $%.4f", max, pipeline.EstimateCost(max)))
	}

	summary, err := a.Orchestrator.RunBatch(context.Background(), adapter, pipeline.Mode{})
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
