package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
)

type NewCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewNewCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *NewCommand {
	return &NewCommand{
		stdout:     stdout,
		stderr:     stderr,
		newRuntime: newRuntime,
	}
}

func (c *NewCommand) Run(args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	cwd := fs.String("cwd", "", "working directory for the thread (defaults to the current directory)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cwd == "" {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}
		*cwd = dir
	}

	ctx := context.Background()
	rt, err := c.newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	summary, err := rt.gateway.CreateThread(ctx, *cwd)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, summary.ID)
	return nil
}
