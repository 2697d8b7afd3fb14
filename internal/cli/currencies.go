package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type currenciesCmd struct {
	app    *App
	active bool
}

func (*currenciesCmd) Name() string     { return "currencies" }
func (*currenciesCmd) Synopsis() string { return "list registered currencies" }
func (*currenciesCmd) Usage() string {
	return `buhwise currencies [-active]
`
}

func (c *currenciesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.active, "active", false, "Only list active currencies.")
}

func (c *currenciesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(svc *Services) error {
		currencies, err := svc.Ledger.ListCurrencies(ctx, c.active)
		if err != nil {
			return err
		}

		w := c.app.table()
		row(w, "CODE", "NAME", "ACTIVE")
		for _, cur := range currencies {
			active := "yes"
			if !cur.IsActive {
				active = "no"
			}
			row(w, cur.Code, cur.Name, active)
		}
		return w.Flush()
	})
}

type addCurrencyCmd struct {
	app      *App
	code     string
	name     string
	inactive bool
}

func (*addCurrencyCmd) Name() string     { return "add-currency" }
func (*addCurrencyCmd) Synopsis() string { return "register a currency or update its name and flag" }
func (*addCurrencyCmd) Usage() string {
	return `buhwise add-currency -code <code> [-name <name>] [-inactive]

  The name defaults to the code. Running it again for an existing code
  updates the name and active flag.
`
}

func (c *addCurrencyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.code, "code", "", "Currency code, e.g. GEL.")
	f.StringVar(&c.name, "name", "", "Display name.")
	f.BoolVar(&c.inactive, "inactive", false, "Register the currency as inactive.")
}

func (c *addCurrencyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.code == "" {
		return c.app.usageError("-code is required")
	}
	name := c.name
	if name == "" {
		name = c.code
	}

	return c.app.run(ctx, func(svc *Services) error {
		cur, err := svc.Ledger.AddCurrency(ctx, c.code, name, !c.inactive)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Saved currency %s (%s)\n", cur.Code, cur.Name)
		return nil
	})
}
