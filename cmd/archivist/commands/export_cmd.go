package commands

import (
	"flag"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/juanre/mail-flow/internal/export"
)

// ExportExpensesCommand writes a plain expenses CSV walking the archive's
// sidecars for accounting.expense blocks.
type ExportExpensesCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *ExportExpensesCommand) Help() string {
	return "Usage: archivist export expenses [--base PATH] [--entity E] OUT.csv"
}

func (c *ExportExpensesCommand) Synopsis() string { return "Export expenses to CSV" }

func (c *ExportExpensesCommand) Run(args []string) int {
	return runExport(c.UI, c.Logger, args, export.WriteExpensesCSV)
}

// ExportXeroCommand writes a Xero-import-shaped CSV of expenses.
type ExportXeroCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *ExportXeroCommand) Help() string {
	return "Usage: archivist export xero [--base PATH] [--entity E] OUT.csv"
}

func (c *ExportXeroCommand) Synopsis() string { return "Export expenses as a Xero import CSV" }

func (c *ExportXeroCommand) Run(args []string) int {
	return runExport(c.UI, c.Logger, args, export.WriteXeroCSV)
}

func runExport(ui cli.Ui, logger hclog.Logger, args []string, write func(w io.Writer, rows []export.ExpenseRow) error) int {
	var base, entity string
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.StringVar(&base, "base", "", "base directory (default: current directory)")
	fs.StringVar(&entity, "entity", "", "restrict export to this entity")
	if err := fs.Parse(args); err != nil {
		return ExitInputError
	}
	if fs.NArg() != 1 {
		ui.Error("expected exactly one OUT.csv argument")
		return ExitInputError
	}
	outPath := fs.Arg(0)
	base = defaultBase(base)

	cfg := loadConfigOrDefault(base, logger)

	rows, err := export.WalkExpenses(cfg.Archive.BasePath, entity, logger)
	if err != nil {
		ui.Error(err.Error())
		return exitCodeFor(err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		ui.Error(err.Error())
		return ExitWorkflowError
	}
	defer f.Close()

	if err := write(f, rows); err != nil {
		ui.Error(err.Error())
		return exitCodeFor(err)
	}

	ui.Output("wrote " + outPath)
	return ExitOK
}
