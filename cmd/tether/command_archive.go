package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
)

type ArchiveCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewArchiveCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *ArchiveCommand {
	return &ArchiveCommand{
		stdout:     stdout,
		stderr:     stderr,
		newRuntime: newRuntime,
	}
}

func (c *ArchiveCommand) Run(args []string) error {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("archive requires a thread id")
	}
	id := fs.Arg(0)

	ctx := context.Background()
	rt, err := c.newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.gateway.ArchiveThread(ctx, id); err != nil {
		return err
	}
	if err := rt.cursors.Clear(ctx, id); err != nil {
		rt.log.Warn("cursor clear failed")
	}
	fmt.Fprintf(c.stdout, "archived %s\n", id)
	return nil
}
