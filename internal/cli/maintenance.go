package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type rebuildCmd struct {
	app *App
}

func (*rebuildCmd) Name() string     { return "rebuild" }
func (*rebuildCmd) Synopsis() string { return "recompute balances and rates from the operation log" }
func (*rebuildCmd) Usage() string {
	return `buhwise rebuild
`
}

func (*rebuildCmd) SetFlags(*flag.FlagSet) {}

func (c *rebuildCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(svc *Services) error {
		if err := svc.Ledger.RebuildProjections(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.app.Out, "Projections rebuilt")
		return nil
	})
}

type reconcileCmd struct {
	app *App
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "compare stored balances with the operation log" }
func (*reconcileCmd) Usage() string {
	return `buhwise reconcile

  Exits with a failure status when any stored balance disagrees with a
  replay of the log. Run "buhwise rebuild" to repair.
`
}

func (*reconcileCmd) SetFlags(*flag.FlagSet) {}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(svc *Services) error {
		mismatches, err := svc.Ledger.ReconcileBalances(ctx)
		if err != nil {
			return err
		}
		if len(mismatches) == 0 {
			fmt.Fprintln(c.app.Out, "Balances are consistent")
			return nil
		}

		w := c.app.table()
		row(w, "CURRENCY", "STORED", "COMPUTED")
		for _, m := range mismatches {
			row(w, m.Currency, m.Stored.String(), m.Computed.String())
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return fmt.Errorf("%d balance(s) disagree with the log", len(mismatches))
	})
}
