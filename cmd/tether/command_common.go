package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"tether/internal/client"
	"tether/internal/config"
	"tether/internal/logging"
	"tether/internal/store"
	"tether/internal/sync"
	"tether/internal/types"
)

type runtimeFactory func() (*runtime, error)

// runtime bundles everything a command needs to talk to the server. Commands
// build it lazily so `tether config` works without a reachable server.
type runtime struct {
	settings config.Settings
	gateway  *client.Client
	stream   *client.StreamClient
	cursors  store.CursorStore
	runs     store.RunMarker
	log      logging.Logger
}

func buildRuntime() (*runtime, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	log := logging.New(os.Stderr, logging.ParseLevel(settings.LogLevel()))

	gateway, err := client.New(settings.BaseURL())
	if err != nil {
		return nil, err
	}
	stream, err := client.NewStreamClient(settings.StreamURL(), log)
	if err != nil {
		return nil, err
	}

	var cursors store.CursorStore
	var runs store.RunMarker
	switch settings.Store.Backend {
	case config.CursorBackendRedis:
		cursors, err = store.NewRedisCursorStore(settings.Store.RedisURL)
		if err != nil {
			return nil, err
		}
		runs, err = store.NewRedisRunMarker(settings.Store.RedisURL)
		if err != nil {
			cursors.Close()
			return nil, err
		}
	default:
		path := settings.Store.DBPath
		if path == "" {
			path, err = config.CursorDBPath()
			if err != nil {
				return nil, err
			}
		}
		cursors, err = store.NewBboltCursorStore(path)
		if err != nil {
			return nil, err
		}
		runs = store.NewMemoryRunMarker()
	}

	return &runtime{
		settings: settings,
		gateway:  gateway,
		stream:   stream,
		cursors:  cursors,
		runs:     runs,
		log:      log,
	}, nil
}

func (r *runtime) Close() {
	if r.cursors != nil {
		_ = r.cursors.Close()
	}
}

func (r *runtime) engineOptions(threadID string) sync.Options {
	s := r.settings.Sync
	opts := sync.Options{
		ThreadID:        threadID,
		RefreshInterval: time.Duration(s.RefreshIntervalSeconds) * time.Second,
		WatchdogTick:    time.Duration(s.WatchdogTickSeconds) * time.Second,
		StalenessAfter:  time.Duration(s.StalenessSeconds) * time.Second,
		DebounceShort:   time.Duration(s.DebounceShortMS) * time.Millisecond,
		DebounceLong:    time.Duration(s.DebounceLongMS) * time.Millisecond,
		RunMarkerTTL:    time.Duration(s.RunMarkerTTLSeconds) * time.Second,
	}
	if s.SteerEnabled != nil {
		opts.SteerEnabled = *s.SteerEnabled
	}
	return opts
}

func printThreads(output io.Writer, threads []types.ThreadSummary) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tACTIVE\tCWD\tTITLE")
	for _, thread := range threads {
		active := "-"
		if thread.Active {
			active = "yes"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", thread.ID, active, thread.Cwd, thread.Title)
	}
	_ = writer.Flush()
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}
