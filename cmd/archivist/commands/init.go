package commands

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/juanre/mail-flow/internal/config"
	"github.com/juanre/mail-flow/internal/workflow"
)

// InitCommand writes a default config.hcl and seeds the built-in workflow
// templates, without touching either if they already exist (unless
// --reset is given).
type InitCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *InitCommand) Help() string {
	return "Usage: archivist init [--base PATH] [--reset]\n\n" +
		"Create config.hcl and seed default workflow templates under PATH\n" +
		"(defaults to the current directory)."
}

func (c *InitCommand) Synopsis() string { return "Create config and seed default workflows" }

func (c *InitCommand) Run(args []string) int {
	var base string
	var reset bool
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	fs.BoolVar(&reset, "reset", false, "overwrite an existing config.hcl with defaults")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	base = defaultBase(base)
	archivePath := filepath.Join(base, "archive")

	cfgPath := filepath.Join(base, "config.hcl")
	if reset {
		if err := config.WriteDefault(cfgPath, archivePath); err != nil {
			c.UI.Error(err.Error())
			return exitCodeFor(err)
		}
	} else {
		cfg, err := config.Load(cfgPath, archivePath)
		if err != nil {
			c.UI.Error(err.Error())
			return exitCodeFor(err)
		}
		if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) {
			if err := config.WriteDefault(cfgPath, cfg.Archive.BasePath); err != nil {
				c.UI.Error(err.Error())
				return exitCodeFor(err)
			}
		}
	}

	registry, err := workflow.Load(workflow.Config{Path: filepath.Join(base, "workflows.json"), Logger: c.Logger})
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	if err := registry.SeedDefaults(); err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}

	c.UI.Output("initialized " + base)
	return ExitOK
}
