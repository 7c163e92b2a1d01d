// Command serabut is the operator-facing front end for the armed-MAC
// side table: arm a MAC for its next PXE boot, disarm it, or list what's
// currently armed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/tinkerbell/serabut/internal/armed"
)

func main() {
	if err := Execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// Execute parses args and runs the matching subcommand.
func Execute(ctx context.Context, args []string) error {
	rootFS := ff.NewFlagSet("serabut")
	dataDir := rootFS.String('d', "data-dir", "/var/lib/serabutd", "data directory holding armed.cfg")

	tablePath := func() string { return filepath.Join(*dataDir, armed.DefaultPath) }

	armFS := ff.NewFlagSet("arm").SetParent(rootFS)
	armCmd := &ff.Command{
		Name:  "arm",
		Usage: "serabut arm <mac>",
		Flags: armFS,
		Exec: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("arm requires exactly one mac address argument")
			}
			tbl, err := armed.Load(tablePath())
			if err != nil {
				return fmt.Errorf("loading armed table: %w", err)
			}
			newlyArmed, err := tbl.Arm(args[0])
			if err != nil {
				return err
			}
			if newlyArmed {
				fmt.Println("armed:", args[0])
			} else {
				fmt.Println("already armed:", args[0])
			}
			return nil
		},
	}

	disarmFS := ff.NewFlagSet("disarm").SetParent(rootFS)
	var forceVal bool
	if _, err := disarmFS.AddFlag(ff.FlagConfig{
		LongName: "force",
		Usage:    "disarm even if the mac was not armed",
		Value:    ffval.NewValueDefault(&forceVal, false),
	}); err != nil {
		panic(err)
	}
	force := &forceVal
	disarmCmd := &ff.Command{
		Name:  "disarm",
		Usage: "serabut disarm <mac> [--force]",
		Flags: disarmFS,
		Exec: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("disarm requires exactly one mac address argument")
			}
			tbl, err := armed.Load(tablePath())
			if err != nil {
				return fmt.Errorf("loading armed table: %w", err)
			}
			ok, err := tbl.Disarm(args[0], *force)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not armed", args[0])
			}
			fmt.Println("disarmed:", args[0])
			return nil
		},
	}

	listFS := ff.NewFlagSet("list").SetParent(rootFS)
	listCmd := &ff.Command{
		Name:  "list",
		Usage: "serabut list",
		Flags: listFS,
		Exec: func(context.Context, []string) error {
			tbl, err := armed.Load(tablePath())
			if err != nil {
				return fmt.Errorf("loading armed table: %w", err)
			}
			for _, mac := range tbl.List() {
				fmt.Println(mac)
			}
			return nil
		},
	}

	root := &ff.Command{
		Name:        "serabut",
		Usage:       "serabut [flags] <subcommand>",
		LongHelp:    "PXE boot management CLI: arm, disarm, and list the armed-MAC side table.",
		Flags:       rootFS,
		Subcommands: []*ff.Command{armCmd, disarmCmd, listCmd},
	}

	if err := root.ParseAndRun(ctx, args, ff.WithEnvVarPrefix("SERABUT")); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			return errors.New(ffhelp.Command(root).String())
		}
		return err
	}
	return nil
}
