package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"
)

type historyCmd struct {
	app         *App
	operationID int64
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show the change history" }
func (*historyCmd) Usage() string {
	return `buhwise history [-op <operation id>]

  Lists create, delete and restore events, newest first. The CHANGE column
  is the id to pass to "buhwise restore".
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.operationID, "op", 0, "Only show changes of this operation.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(svc *Services) error {
		var filter *int64
		if c.operationID > 0 {
			filter = &c.operationID
		}

		changes, err := svc.Ledger.GetOperationChanges(ctx, filter)
		if err != nil {
			return err
		}

		w := c.app.table()
		row(w, "CHANGE", "OPERATION", "ACTION", "TIMESTAMP", "REASON")
		for _, ch := range changes {
			opID := "-"
			if ch.OperationID != nil {
				opID = strconv.FormatInt(*ch.OperationID, 10)
			}
			row(w,
				strconv.FormatInt(ch.ID, 10),
				opID,
				string(ch.Action),
				ch.Timestamp.Local().Format("2006-01-02 15:04:05"),
				orDash(ch.Reason),
			)
		}
		return w.Flush()
	})
}

type restoreCmd struct {
	app      *App
	changeID int64
}

func (*restoreCmd) Name() string     { return "restore" }
func (*restoreCmd) Synopsis() string { return "restore a deleted operation from its delete change" }
func (*restoreCmd) Usage() string {
	return `buhwise restore -change <change id>

  Re-creates the operation captured by a Delete change under a new id.
`
}

func (c *restoreCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.changeID, "change", 0, "Delete change to restore from.")
}

func (c *restoreCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.changeID <= 0 {
		return c.app.usageError("-change is required")
	}

	return c.app.run(ctx, func(svc *Services) error {
		op, err := svc.Ledger.RestoreOperation(ctx, c.changeID)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Restored operation as #%d\n", op.ID)
		return nil
	})
}
