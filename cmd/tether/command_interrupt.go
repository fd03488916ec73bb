package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/google/uuid"

	"tether/internal/client"
)

type InterruptCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewInterruptCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *InterruptCommand {
	return &InterruptCommand{
		stdout:     stdout,
		stderr:     stderr,
		newRuntime: newRuntime,
	}
}

func (c *InterruptCommand) Run(args []string) error {
	fs := flag.NewFlagSet("interrupt", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	turn := fs.String("turn", "", "target a specific turn id (defaults to the active turn)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("interrupt requires a thread id")
	}
	id := fs.Arg(0)

	ctx := context.Background()
	rt, err := c.newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ack, err := rt.gateway.Interrupt(ctx, id, client.InterruptRequest{
		TurnID:         *turn,
		ClientActionID: uuid.NewString(),
	})
	if err != nil {
		return err
	}
	switch {
	case ack.Deduped:
		fmt.Fprintln(c.stdout, "interrupt already pending")
	case ack.Retargeted:
		fmt.Fprintln(c.stdout, "interrupt retargeted to the active turn")
	case ack.Pending:
		fmt.Fprintln(c.stdout, "interrupt requested")
	default:
		fmt.Fprintln(c.stdout, "interrupt settled")
	}
	return nil
}
