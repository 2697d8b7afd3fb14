package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
)

type fxCmd struct {
	app  *App
	from string
	to   string
	mode string
}

func (*fxCmd) Name() string     { return "fx" }
func (*fxCmd) Synopsis() string { return "show or set how a currency pair's rate is displayed" }
func (*fxCmd) Usage() string {
	return `buhwise fx -from <currency> -to <currency> [-mode <Direct|Inverted>]

  Without -mode, prints the pair's display mode and last exchange rate in
  both forms. Direct shows target units per source unit, Inverted the reverse.
`
}

func (c *fxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Source currency of the pair.")
	f.StringVar(&c.to, "to", "", "Target currency of the pair.")
	f.StringVar(&c.mode, "mode", "", "New display mode.")
}

func (c *fxCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" || c.to == "" {
		return c.app.usageError("-from and -to are required")
	}

	return c.app.run(ctx, func(svc *Services) error {
		if c.mode != "" {
			pref, err := svc.Fx.SetMode(ctx, c.from, c.to, fxdisplay.Mode(c.mode))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.app.Out, "%s/%s rates are shown %s\n", pref.From, pref.To, pref.Mode)
			return nil
		}

		suggestion, err := svc.Fx.Suggest(ctx, c.from, c.to)
		if errors.Is(err, fxdisplay.ErrNoRememberedRate) {
			mode, err := svc.Fx.GetMode(ctx, c.from, c.to)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.app.Out, "mode %s, no rate remembered\n", mode)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(c.app.Out, "mode %s, last rate %s (stored %s) on %s\n",
			suggestion.Mode,
			suggestion.DisplayRate.String(),
			suggestion.InternalRate.String(),
			suggestion.UpdatedAt.Format("2006-01-02"))
		return nil
	})
}
