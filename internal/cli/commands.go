package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/model"
	"github.com/roach88/profilesync/internal/people"
)

// mutationOp performs one client operation from command arguments.
type mutationOp func(ctx context.Context, c *people.Client, args []string, cb model.Callback) (model.Request, error)

// mutationDef describes a command that issues a single profile mutation.
type mutationDef struct {
	use   string
	short string
	args  cobra.PositionalArgs
	run   mutationOp
}

var mutationCommands = []mutationDef{
	{
		use:   "set <name> <value>",
		short: "Set a profile property",
		args:  cobra.ExactArgs(2),
		run: func(ctx context.Context, c *people.Client, args []string, cb model.Callback) (model.Request, error) {
			return c.Set(ctx, args[0], parseValue(args[1]), cb)
		},
	},
	{
		use:   "set-once <name> <value>",
		short: "Set a profile property unless it already has a value",
		args:  cobra.ExactArgs(2),
		run: func(ctx context.Context, c *people.Client, args []string, cb model.Callback) (model.Request, error) {
			return c.SetOnce(ctx, args[0], parseValue(args[1]), cb)
		},
	},
	{
		use:   "unset <name>...",
		short: "Remove profile properties",
		args:  cobra.MinimumNArgs(1),
		run: func(ctx context.Context, c *people.Client, args []string, cb model.Callback) (model.Request, error) {
			return c.Unset(ctx, args, cb)
		},
	},
	{
		use:   "increment <name> [by]",
		short: "Add to a numeric profile property (default 1)",
		args:  cobra.RangeArgs(1, 2),
		run: func(ctx context.Context, c *people.Client, args []string, cb model.Callback) (model.Request, error) {
			if len(args) == 1 {
				return c.Increment(ctx, args[0], cb)
			}
			return c.IncrementBy(ctx, args[0], parseValue(args[1]), cb)
		},
	},
	{
		use:   "append <name> <value>",
		short: "Append a value to a list property",
		args:  cobra.ExactArgs(2),
		run: func(ctx context.Context, c *people.Client, args []string, cb model.Callback) (model.Request, error) {
			return c.Append(ctx, args[0], parseValue(args[1]), cb)
		},
	},
	{
		use:   "union <name> <value>...",
		short: "Add values to a list property, skipping ones already present",
		args:  cobra.MinimumNArgs(2),
		run: func(ctx context.Context, c *people.Client, args []string, cb model.Callback) (model.Request, error) {
			return c.Union(ctx, args[0], parseValues(args[1:]), cb)
		},
	},
	{
		use:   "charge <amount> [properties-json]",
		short: "Record a transaction on the profile",
		args:  cobra.RangeArgs(1, 2),
		run: func(ctx context.Context, c *people.Client, args []string, cb model.Callback) (model.Request, error) {
			var props map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &props); err != nil {
					return model.Request{}, NewExitError(ExitCommandError, fmt.Sprintf("properties must be a JSON object: %v", err))
				}
			}
			return c.TrackCharge(ctx, parseValue(args[0]), props, cb)
		},
	},
	{
		use:   "clear-charges",
		short: "Remove every recorded transaction",
		args:  cobra.NoArgs,
		run: func(ctx context.Context, c *people.Client, _ []string, cb model.Callback) (model.Request, error) {
			return c.ClearCharges(ctx, cb)
		},
	},
	{
		use:   "delete",
		short: "Delete the profile (requires --as)",
		args:  cobra.NoArgs,
		run: func(ctx context.Context, c *people.Client, _ []string, cb model.Callback) (model.Request, error) {
			return c.DeleteUser(ctx, cb)
		},
	},
}

func newMutationCommand(rootOpts *RootOptions, def mutationDef) *cobra.Command {
	return &cobra.Command{
		Use:           def.use,
		Short:         def.short,
		Args:          def.args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, rootOpts, def.run, args)
		},
	}
}

func runMutation(cmd *cobra.Command, opts *RootOptions, op mutationOp, args []string) error {
	a, err := openApp(cmd, opts, true)
	if err != nil {
		return err
	}

	cb, done := people.Await()
	req, opErr := op(cmd.Context(), a.client, args, cb)

	// Close drains the transport, so the callback has fired by now.
	closeErr := a.Close()

	if opErr != nil && req.Kind() == "" {
		if exitErr, ok := opErr.(*ExitError); ok {
			_ = a.out.Error(ErrCodeArgs, exitErr.Message, nil)
			return exitErr
		}
		return a.reportError(opErr)
	}

	res := <-done
	if err := a.out.Success(newResultView(req, res)); err != nil {
		return err
	}

	switch {
	case opErr != nil:
		a.logger.Warn("some properties were dropped", "error", opErr)
		return WrapExitError(ExitFailure, "some properties were dropped", opErr)
	case res.IsFailure():
		return WrapExitError(ExitFailure, "request failed", res.Err)
	case closeErr != nil:
		return WrapExitError(ExitCommandError, "failed to close pending store", closeErr)
	}
	return nil
}
