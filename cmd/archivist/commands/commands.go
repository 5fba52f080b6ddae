// Package commands implements the archivist CLI subcommands on top of
// mitchellh/cli.
package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/juanre/mail-flow/internal/config"
	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/pipeline"
)

// Exit codes per the documented CLI contract.
const (
	ExitOK            = 0
	ExitInputError    = 1
	ExitWorkflowError = 2
	ExitUnexpected    = 3
	ExitConfigError   = 4
	ExitNotFound      = 5
)

// Version is the archivist build version, set via -ldflags in release
// builds.
var Version = "dev"

// Main runs the CLI with the given os.Args and returns the process exit
// code.
func Main(args []string) int {
	cliName := "archivist"
	if len(args) > 0 {
		cliName = filepath.Base(args[0])
	}

	logger := hclog.New(&hclog.LoggerOptions{Name: cliName})
	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	c := &cli.CLI{
		Name:     cliName,
		Args:     args[1:],
		Version:  Version,
		Commands: commandFactories(ui, logger),
	}

	exitCode, err := c.Run()
	if err != nil {
		ui.Error(err.Error())
		return ExitUnexpected
	}
	return exitCode
}

func commandFactories(ui cli.Ui, logger hclog.Logger) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"init": func() (cli.Command, error) { return &InitCommand{UI: ui, Logger: logger}, nil },

		"ingest stdin": func() (cli.Command, error) { return &IngestStdinCommand{UI: ui, Logger: logger}, nil },
		"ingest files": func() (cli.Command, error) { return &IngestFilesCommand{UI: ui, Logger: logger}, nil },
		"ingest gmail": func() (cli.Command, error) { return &IngestGmailCommand{UI: ui, Logger: logger}, nil },

		"index":  func() (cli.Command, error) { return &IndexCommand{UI: ui, Logger: logger}, nil },
		"search": func() (cli.Command, error) { return &SearchCommand{UI: ui, Logger: logger}, nil },

		"export expenses": func() (cli.Command, error) { return &ExportExpensesCommand{UI: ui, Logger: logger}, nil },
		"export xero":     func() (cli.Command, error) { return &ExportXeroCommand{UI: ui, Logger: logger}, nil },

		"workflows list":   func() (cli.Command, error) { return &WorkflowsListCommand{UI: ui, Logger: logger}, nil },
		"workflows add":    func() (cli.Command, error) { return &WorkflowsAddCommand{UI: ui, Logger: logger}, nil },
		"workflows delete": func() (cli.Command, error) { return &WorkflowsDeleteCommand{UI: ui, Logger: logger}, nil },
	}
}

// exitCodeFor maps an errs.Kind to the documented CLI exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	kind, ok := errs.Of(err)
	if !ok {
		return ExitUnexpected
	}
	switch kind {
	case errs.InputParseError, errs.InputTooLarge, errs.SchemaValidationErr:
		return ExitInputError
	case errs.WorkflowNotFound:
		return ExitNotFound
	case errs.WorkflowConfigError:
		return ExitConfigError
	case errs.IOError, errs.LockTimeout, errs.DataIntegrityError, errs.PathSecurityError,
		errs.CollisionError, errs.AdvisorError, errs.RendererError, errs.Transient:
		return ExitWorkflowError
	default:
		return ExitUnexpected
	}
}

func defaultBase(flagBase string) string {
	if flagBase != "" {
		return flagBase
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func loadConfigOrDefault(base string, logger hclog.Logger) *config.Config {
	cfgPath := filepath.Join(base, "config.hcl")
	cfg, err := config.Load(cfgPath, filepath.Join(base, "archive"))
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		return config.Default(filepath.Join(base, "archive"))
	}
	return cfg
}

func summaryLine(s pipeline.BatchSummary) string {
	return fmt.Sprintf("processed=%d archived=%d skipped=%d errored=%d",
		s.Processed, s.Archived, s.Skipped, s.Errored)
}
