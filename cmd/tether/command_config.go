package main

import (
	"flag"
	"fmt"
	"io"

	toml "github.com/pelletier/go-toml/v2"

	"tether/internal/config"
)

type ConfigCommand struct {
	stdout io.Writer
	stderr io.Writer
}

func NewConfigCommand(stdout, stderr io.Writer) *ConfigCommand {
	return &ConfigCommand{
		stdout: stdout,
		stderr: stderr,
	}
}

func (c *ConfigCommand) Run(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	defaults := fs.Bool("defaults", false, "print built-in defaults instead of the effective configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings := config.DefaultSettings()
	if !*defaults {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		settings = loaded
	}

	encoded, err := toml.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(c.stdout, string(encoded))
	return err
}
