package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ledenev737/BuhWise/internal/spreadsheet"
)

type exportCmd struct {
	app  *App
	file string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write every operation to an XLSX workbook" }
func (*exportCmd) Usage() string {
	return `buhwise export -f <file.xlsx>
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Workbook to write.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		return c.app.usageError("-f is required")
	}

	return c.app.run(ctx, func(svc *Services) error {
		ops, err := svc.Ledger.GetOperations(ctx)
		if err != nil {
			return err
		}

		out, err := os.Create(c.file)
		if err != nil {
			return err
		}
		if err := spreadsheet.Export(out, ops); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}

		fmt.Fprintf(c.app.Out, "Exported %d operations to %s\n", len(ops), c.file)
		return nil
	})
}

type importCmd struct {
	app  *App
	file string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace every operation with those of an XLSX workbook" }
func (*importCmd) Usage() string {
	return `buhwise import -f <file.xlsx>

  Replaces the whole ledger, history included, with the workbook's
  operations and recomputes balances and rates. Nothing changes if any row
  is invalid.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Workbook to read.")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		return c.app.usageError("-f is required")
	}

	in, err := os.Open(c.file)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	ops, err := spreadsheet.Import(in)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	return c.app.run(ctx, func(svc *Services) error {
		if err := svc.Ledger.ReplaceAllOperations(ctx, ops); err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Imported %d operations from %s\n", len(ops), c.file)
		return nil
	})
}
