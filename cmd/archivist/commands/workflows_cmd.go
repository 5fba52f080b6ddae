package commands

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/juanre/mail-flow/internal/criteria"
	"github.com/juanre/mail-flow/internal/workflow"
)

func openRegistry(base string, logger hclog.Logger) (*workflow.Registry, error) {
	return workflow.Load(workflow.Config{Path: filepath.Join(base, "workflows.json"), Logger: logger})
}

func openCriteriaStore(base string, logger hclog.Logger) (*criteria.Store, error) {
	return criteria.Load(criteria.Config{Path: filepath.Join(base, "criteria.json"), Logger: logger})
}

// WorkflowsListCommand prints every registered workflow.
type WorkflowsListCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *WorkflowsListCommand) Help() string {
	return "Usage: archivist workflows list [--base PATH]"
}

func (c *WorkflowsListCommand) Synopsis() string { return "List registered workflows" }

func (c *WorkflowsListCommand) Run(args []string) int {
	var base string
	fs := flag.NewFlagSet("workflows list", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	base = defaultBase(base)

	registry, err := openRegistry(base, c.Logger)
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	for _, wf := range registry.List() {
		c.UI.Output(fmt.Sprintf("%-20s  %s/%s  %s", wf.Name, wf.Entity, wf.Doctype, wf.Description))
	}
	return ExitOK
}

// WorkflowsAddCommand registers a new workflow from flags.
type WorkflowsAddCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *WorkflowsAddCommand) Help() string {
	return "Usage: archivist workflows add [--base PATH] --name N --entity E --doctype D\n" +
		"    [--description TEXT] [--llmemory]"
}

func (c *WorkflowsAddCommand) Synopsis() string { return "Register a new workflow" }

func (c *WorkflowsAddCommand) Run(args []string) int {
	var base, name, entity, doctype, description string
	var llmemory bool
	fs := flag.NewFlagSet("workflows add", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	fs.StringVar(&name, "name", "", "workflow name")
	fs.StringVar(&entity, "entity", "", "entity this workflow archives under")
	fs.StringVar(&doctype, "doctype", "", "document type this workflow archives under")
	fs.StringVar(&description, "description", "", "human-readable description")
	fs.BoolVar(&llmemory, "llmemory", false, "enable semantic indexing for matched documents")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	base = defaultBase(base)

	registry, err := openRegistry(base, c.Logger)
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}

	wf := &workflow.Workflow{
		Name:        name,
		Description: description,
		Entity:      entity,
		Doctype:     doctype,
		Handling: workflow.Handling{
			Archive: workflow.ArchiveHandling{Entity: entity, Doctype: doctype},
			Index:   workflow.IndexHandling{LLMemory: llmemory},
		},
	}
	if err := registry.Add(wf); err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}

	c.UI.Output("added workflow " + name)
	return ExitOK
}

// WorkflowsDeleteCommand removes a workflow, refusing if training examples
// still reference it.
type WorkflowsDeleteCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *WorkflowsDeleteCommand) Help() string {
	return "Usage: archivist workflows delete [--base PATH] NAME"
}

func (c *WorkflowsDeleteCommand) Synopsis() string { return "Delete an unreferenced workflow" }

func (c *WorkflowsDeleteCommand) Run(args []string) int {
	var base string
	fs := flag.NewFlagSet("workflows delete", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	if fs.NArg() != 1 {
		c.UI.Error("expected exactly one NAME argument")
		return ExitInputError
	}
	name := fs.Arg(0)
	base = defaultBase(base)

	registry, err := openRegistry(base, c.Logger)
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	critStore, err := openCriteriaStore(base, c.Logger)
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}

	if err := registry.DeleteIfUnreferenced(name, critStore.IsReferenced); err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}

	c.UI.Output("deleted workflow " + name)
	return ExitOK
}
