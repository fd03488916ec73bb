package main

import (
	"fmt"
	"os"
)

const usageText = `tether keeps a local view of server-side threads in sync.

Usage:
  tether <command> [flags]

Commands:
  list       list threads
  new        create a thread
  archive    archive a thread
  send       send a message to a thread
  interrupt  interrupt the active turn of a thread
  follow     follow a thread and print its timeline
  config     print configuration (effective or defaults)
  help       show help

Flags:
  -h, --help   show help

Examples:
  tether list
  tether new --cwd .
  tether send th_123 "run the tests"
  tether send th_123 --file notes.md "see attached"
  tether interrupt th_123
  tether follow th_123
  tether config --defaults
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	commands := buildCommands(wiring)

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	}

	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	exitOnErr(args[0], runner.Run(args[1:]), wiring.stderr)
}
