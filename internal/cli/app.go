// Package cli implements the buhwise command line subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/ledenev737/BuhWise/internal/infra/store"
	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
	"github.com/ledenev737/BuhWise/pkg/config"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

// Services are the engines a command works with
type Services struct {
	Ledger *ledger.Service
	Fx     *fxdisplay.Service
	Close  func()
}

// App carries the shared state of every command
type App struct {
	Out  io.Writer
	Err  io.Writer
	Now  func() time.Time
	Open func(ctx context.Context) (*Services, error)
}

// NewApp returns an App that opens the configured store on demand
func NewApp(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		Out: os.Stdout,
		Err: os.Stderr,
		Now: time.Now,
		Open: func(ctx context.Context) (*Services, error) {
			s, err := store.Open(ctx, cfg, log)
			if err != nil {
				return nil, err
			}

			ledgerSvc := ledger.NewService(s.Ledger, log, ledger.WithRebuildOnDelete(cfg.RebuildOnDelete))
			if err := ledgerSvc.Bootstrap(ctx); err != nil {
				s.Close()
				return nil, err
			}

			return &Services{
				Ledger: ledgerSvc,
				Fx:     fxdisplay.NewService(s.FxDisplay, ledgerSvc),
				Close:  s.Close,
			}, nil
		},
	}
}

// Register adds every command to the commander
func Register(c *subcommands.Commander, app *App) {
	c.Register(&balancesCmd{app: app}, "ledger")
	c.Register(&operationsCmd{app: app}, "ledger")
	c.Register(&addCmd{app: app}, "ledger")
	c.Register(&deleteCmd{app: app}, "ledger")

	c.Register(&historyCmd{app: app}, "history")
	c.Register(&restoreCmd{app: app}, "history")

	c.Register(&currenciesCmd{app: app}, "currencies")
	c.Register(&addCurrencyCmd{app: app}, "currencies")
	c.Register(&fxCmd{app: app}, "currencies")

	c.Register(&importCmd{app: app}, "spreadsheet")
	c.Register(&exportCmd{app: app}, "spreadsheet")

	c.Register(&rebuildCmd{app: app}, "maintenance")
	c.Register(&reconcileCmd{app: app}, "maintenance")
}

// run opens the services for the duration of fn and reports its error
func (a *App) run(ctx context.Context, fn func(*Services) error) subcommands.ExitStatus {
	svc, err := a.Open(ctx)
	if err != nil {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer svc.Close()

	if err := fn(svc); err != nil {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// usageError prints a usage problem and returns ExitUsageError
func (a *App) usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
}

func row(w io.Writer, cells ...string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
