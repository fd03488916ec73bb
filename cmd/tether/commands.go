package main

import (
	"io"
	"os"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:     stdout,
		stderr:     stderr,
		newRuntime: buildRuntime,
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"list":      NewListCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"new":       NewNewCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"archive":   NewArchiveCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"send":      NewSendCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"interrupt": NewInterruptCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"follow":    NewFollowCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"config":    NewConfigCommand(wiring.stdout, wiring.stderr),
	}
}
