package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"tether/internal/sync"
)

type FollowCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewFollowCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *FollowCommand {
	return &FollowCommand{
		stdout:     stdout,
		stderr:     stderr,
		newRuntime: newRuntime,
	}
}

func (c *FollowCommand) Run(args []string) error {
	fs := flag.NewFlagSet("follow", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	interval := fs.Duration("interval", 250*time.Millisecond, "render poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("follow requires a thread id")
	}
	id := fs.Arg(0)

	rt, err := c.newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	engine, err := sync.NewEngine(rt.engineOptions(id), rt.gateway, rt.stream, rt.cursors, rt.runs, rt.log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	renderer := newTimelineRenderer(c.stdout)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			renderer.Render(engine.State())
		}
	}
}

// timelineRenderer prints timeline rows as they appear. Snapshots replace
// the timeline wholesale, so a shrinking row count means a reprint.
type timelineRenderer struct {
	out     io.Writer
	printed int
	banner  string
}

func newTimelineRenderer(out io.Writer) *timelineRenderer {
	return &timelineRenderer{out: out}
}

func (r *timelineRenderer) Render(state sync.EngineState) {
	if len(state.Timeline) < r.printed {
		r.printed = 0
		fmt.Fprintln(r.out, "--- resynced ---")
	}
	for _, row := range state.Timeline[r.printed:] {
		r.printRow(row)
	}
	r.printed = len(state.Timeline)

	banner := state.OutOfCredit
	if banner == "" {
		banner = state.Staleness
	}
	if banner == "" {
		banner = state.Error
	}
	if banner != r.banner {
		r.banner = banner
		if banner != "" {
			fmt.Fprintf(r.out, "! %s\n", banner)
		}
	}
}

func (r *timelineRenderer) printRow(row sync.TimelineRow) {
	switch row.Kind {
	case sync.RowUserText:
		marker := ">"
		if row.Pending {
			marker = "?"
		}
		fmt.Fprintf(r.out, "%s %s\n", marker, row.Text)
	case sync.RowAttachment:
		if row.Attachment != nil {
			fmt.Fprintf(r.out, "+ attachment %s\n", row.Attachment.Filename)
		}
	case sync.RowAgentText:
		fmt.Fprintln(r.out, row.Text)
		if row.Final && row.FinalLabel != "" {
			fmt.Fprintf(r.out, "[%s]\n", row.FinalLabel)
		}
	case sync.RowPlan:
		for _, step := range row.PlanSteps {
			fmt.Fprintf(r.out, "  plan: %s\n", step.Title)
		}
	case sync.RowReasoning:
		fmt.Fprintf(r.out, "  (%s)\n", row.Text)
	case sync.RowCommand:
		if row.Command != nil {
			fmt.Fprintf(r.out, "  $ %s\n", row.Command.Command)
		}
	case sync.RowFileChanges:
		for _, change := range row.FileChanges {
			fmt.Fprintf(r.out, "  ~ %s\n", change.Path)
		}
	case sync.RowCompaction:
		fmt.Fprintln(r.out, "  (context compacted)")
	}
}
