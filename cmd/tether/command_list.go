package main

import (
	"context"
	"flag"
	"io"
)

type ListCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewListCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *ListCommand {
	return &ListCommand{
		stdout:     stdout,
		stderr:     stderr,
		newRuntime: newRuntime,
	}
}

func (c *ListCommand) Run(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := c.newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	threads, err := rt.gateway.ListThreads(ctx)
	if err != nil {
		return err
	}
	printThreads(c.stdout, threads)
	return nil
}
