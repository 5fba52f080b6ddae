package commands

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/juanre/mail-flow/internal/index"
)

// SearchCommand runs a full-text-or-filter query against the global index.
type SearchCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *SearchCommand) Help() string {
	return "Usage: archivist search [QUERY] [--base PATH] [--entity E] [--source S]\n" +
		"    [--workflow W] [--category C] [--limit N]\n\n" +
		"Search the global index; QUERY is an optional full-text query string."
}

func (c *SearchCommand) Synopsis() string { return "Search the archive index" }

func (c *SearchCommand) Run(args []string) int {
	var base, entity, source, workflow, category string
	var limit int
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	fs.StringVar(&entity, "entity", "", "filter by entity")
	fs.StringVar(&source, "source", "", "filter by source")
	fs.StringVar(&workflow, "workflow", "", "filter by workflow")
	fs.StringVar(&category, "category", "", "filter by category")
	fs.IntVar(&limit, "limit", 20, "maximum number of results")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	query := ""
	if fs.NArg() > 0 {
		query = fs.Arg(0)
	}
	base = defaultBase(base)

	ix, err := index.New(index.Config{
		DBPath:   filepath.Join(base, "indexes", "metadata.db"),
		BleveDir: filepath.Join(base, "indexes", "full.bleve"),
		Logger:   c.Logger,
	})
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	defer ix.Close()

	results, err := ix.Search(context.Background(), query, index.Filter{
		Entity:   entity,
		Source:   source,
		Workflow: workflow,
		Category: category,
	}, limit)
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}

	if len(results) == 0 {
		c.UI.Output("no matches")
		return ExitOK
	}
	for _, r := range results {
		c.UI.Output(fmt.Sprintf("%s  %-10s  %-20s  %s", r.Date, r.Entity, r.Filename, r.DocumentID))
	}
	return ExitOK
}
