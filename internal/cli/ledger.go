package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
	"github.com/ledenev737/BuhWise/pkg/money"
)

type balancesCmd struct {
	app *App
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "show the balance of every currency" }
func (*balancesCmd) Usage() string {
	return `buhwise balances

  Prints every registered currency with its balance and cached rate to USD.
`
}

func (*balancesCmd) SetFlags(*flag.FlagSet) {}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(svc *Services) error {
		balances, err := svc.Ledger.GetBalances(ctx)
		if err != nil {
			return err
		}
		rates, err := svc.Ledger.GetRatesToUSD(ctx)
		if err != nil {
			return err
		}
		rateOf := make(map[string]decimal.Decimal, len(rates))
		for _, r := range rates {
			rateOf[r.Currency] = r.Rate
		}

		w := c.app.table()
		row(w, "CURRENCY", "BALANCE", "RATE TO USD")
		for _, b := range balances {
			rate := "-"
			if r, ok := rateOf[b.Currency]; ok && r.IsPositive() {
				rate = r.String()
			}
			row(w, b.Currency, money.Format(b.Amount, b.Currency), rate)
		}
		return w.Flush()
	})
}

type operationsCmd struct {
	app  *App
	head int
}

func (*operationsCmd) Name() string     { return "operations" }
func (*operationsCmd) Synopsis() string { return "list operations, newest first" }
func (*operationsCmd) Usage() string {
	return `buhwise operations [-head <n>]
`
}

func (c *operationsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.head, "head", 0, "Show only the first N operations.")
}

func (c *operationsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.head < 0 {
		return c.app.usageError("-head must not be negative")
	}

	return c.app.run(ctx, func(svc *Services) error {
		ops, err := svc.Ledger.GetOperations(ctx)
		if err != nil {
			return err
		}
		if c.head > 0 && len(ops) > c.head {
			ops = ops[:c.head]
		}

		w := c.app.table()
		row(w, "ID", "DATE", "TYPE", "FROM", "TO", "RATE", "FEE", "USD", "CATEGORY", "COMMENT")
		for _, op := range ops {
			fee := "-"
			if op.Commission != nil {
				fee = op.Commission.String()
			}
			row(w,
				strconv.FormatInt(op.ID, 10),
				op.Date.Format("2006-01-02"),
				string(op.Kind),
				op.SourceAmount.String()+" "+op.SourceCurrency,
				op.TargetAmount.String()+" "+op.TargetCurrency,
				op.Rate.String(),
				fee,
				op.USDEquivalent.StringFixed(2),
				orDash(op.ExpenseCategory),
				orDash(op.Comment),
			)
		}
		return w.Flush()
	})
}

type addCmd struct {
	app         *App
	kind        string
	date        string
	from        string
	amount      string
	to          string
	rate        string
	displayRate bool
	fee         string
	category    string
	comment     string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record an income, expense or exchange" }
func (*addCmd) Usage() string {
	return `buhwise add -t <income|expense|exchange> -c <currency> -a <amount> [-to <currency>] [-r <rate>] [-display] [-fee <amount>] [-d <date>] [-category <name>] [-comment <text>]

  Records a new operation. Exchanges need -to; when -r is omitted the last
  rate used for the pair is reused. With -display the rate is read in the
  pair's display form (see the fx display mode) and converted.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "t", "", "Operation type: income, expense or exchange.")
	f.StringVar(&c.date, "d", "", "Operation date (YYYY-MM-DD). Defaults to today.")
	f.StringVar(&c.from, "c", "", "Source currency.")
	f.StringVar(&c.amount, "a", "", "Source amount.")
	f.StringVar(&c.to, "to", "", "Target currency of an exchange.")
	f.StringVar(&c.rate, "r", "", "Rate: target units per source unit for an exchange, USD per unit otherwise.")
	f.BoolVar(&c.displayRate, "display", false, "Read -r in the pair's display form.")
	f.StringVar(&c.fee, "fee", "", "Exchange commission, in the target currency.")
	f.StringVar(&c.category, "category", "", "Expense category, required for an expense.")
	f.StringVar(&c.comment, "comment", "", "Free text comment of an expense.")
}

var kindByName = map[string]ledger.OperationKind{
	"income":   ledger.KindIncome,
	"expense":  ledger.KindExpense,
	"exchange": ledger.KindExchange,
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kind, ok := kindByName[strings.ToLower(strings.TrimSpace(c.kind))]
	if !ok {
		return c.app.usageError("-t must be income, expense or exchange")
	}

	date := c.app.Now().UTC().Truncate(24 * time.Hour)
	if c.date != "" {
		d, err := time.Parse("2006-01-02", c.date)
		if err != nil {
			return c.app.usageError("invalid -d %q: want YYYY-MM-DD", c.date)
		}
		date = d
	}

	amount, err := money.Parse(c.amount)
	if err != nil {
		return c.app.usageError("invalid -a: %v", err)
	}
	rate, err := money.ParseOptional(c.rate)
	if err != nil {
		return c.app.usageError("invalid -r: %v", err)
	}
	fee, err := money.ParseOptional(c.fee)
	if err != nil {
		return c.app.usageError("invalid -fee: %v", err)
	}

	draft := ledger.Draft{
		Date:           date,
		Kind:           kind,
		SourceCurrency: c.from,
		SourceAmount:   amount,
		TargetCurrency: c.to,
		Rate:           rate,
		Commission:     fee,
	}
	if c.category != "" {
		draft.ExpenseCategory = &c.category
	}
	if c.comment != "" {
		draft.Comment = &c.comment
	}

	return c.app.run(ctx, func(svc *Services) error {
		if kind == ledger.KindExchange {
			if err := c.resolveExchangeRate(ctx, svc.Fx, &draft); err != nil {
				return err
			}
		}

		op, err := svc.Ledger.CreateOperation(ctx, draft)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Recorded operation #%d: %s %s %s -> %s %s (rate %s)\n",
			op.ID, op.Kind,
			op.SourceAmount, op.SourceCurrency,
			op.TargetAmount, op.TargetCurrency,
			op.Rate)
		return nil
	})
}

// resolveExchangeRate converts a display-form rate, or falls back to the pair's last rate.
func (c *addCmd) resolveExchangeRate(ctx context.Context, fx *fxdisplay.Service, draft *ledger.Draft) error {
	if draft.Rate == nil {
		suggestion, err := fx.Suggest(ctx, draft.SourceCurrency, draft.TargetCurrency)
		if errors.Is(err, fxdisplay.ErrNoRememberedRate) {
			return fmt.Errorf("no rate given and none remembered for %s/%s", money.NormalizeCode(draft.SourceCurrency), money.NormalizeCode(draft.TargetCurrency))
		}
		if err != nil {
			return err
		}
		draft.Rate = &suggestion.InternalRate
		return nil
	}

	if c.displayRate {
		internal, err := fx.InternalRate(ctx, draft.SourceCurrency, draft.TargetCurrency, *draft.Rate)
		if err != nil {
			return err
		}
		draft.Rate = &internal
	}
	return nil
}

type deleteCmd struct {
	app    *App
	id     int64
	reason string
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete an operation and reverse its balance effect" }
func (*deleteCmd) Usage() string {
	return `buhwise delete -id <operation id> [-reason <text>]
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Operation to delete.")
	f.StringVar(&c.reason, "reason", "", "Why the operation is deleted; kept in the history.")
}

func (c *deleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		return c.app.usageError("-id is required")
	}

	return c.app.run(ctx, func(svc *Services) error {
		var reason *string
		if c.reason != "" {
			reason = &c.reason
		}
		if err := svc.Ledger.DeleteOperation(ctx, c.id, reason); err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Deleted operation #%d\n", c.id)
		return nil
	})
}
