package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"engaged/internal/config"
	"engaged/internal/feed"
	"engaged/internal/host"
	"engaged/internal/logging"
	"engaged/internal/persist"
	"engaged/internal/tracker"
)

// cmdReplay applies a recorded JSONL envelope stream to a notebook and
// saves the resulting summary. Useful for reconstructing state from a
// captured session without a running daemon.
func cmdReplay() {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	fs.Parse(os.Args[2:])
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: engaged replay <notebook.ipynb> <events.jsonl>")
		os.Exit(1)
	}
	nbPath, evPath := fs.Arg(0), fs.Arg(1)

	log, err := logging.Init(config.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}

	nb, err := host.OpenNotebook(nbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open notebook: %v\n", err)
		os.Exit(1)
	}

	tr := tracker.New(tracker.Config{Quiet: 10 * time.Millisecond}, log)

	ready := make(chan struct{})
	close(ready)
	if err := tr.Attach(context.Background(), nb, ready, ready); err != nil {
		fmt.Fprintf(os.Stderr, "attach: %v\n", err)
		os.Exit(1)
	}

	// The stream may carry several documents; replay only this notebook's
	// envelopes, and treat every document reference as this file.
	err = feed.ReplayFile(evPath, func(env feed.Envelope) {
		switch env.Type {
		case feed.TypeKernel:
			tr.HandleRaw(nb.ID(), env.Msg)
		case feed.TypeFocus:
			tr.HandleFocus(nb.ID(), env.CellID, unitKind(env.CellType))
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}

	tr.Shutdown()

	runs, errs, activeMs, _ := tr.Summary(nb.ID())
	fmt.Printf("replayed %s into %s\n", evPath, nbPath)
	fmt.Printf("  runs: %d  errors: %d  active: %s\n",
		runs, errs, time.Duration(activeMs)*time.Millisecond)
}

// cmdRender prints a notebook's current summary block, if present.
func cmdRender() {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: engaged render <notebook.ipynb>")
		os.Exit(1)
	}

	nb, err := host.OpenNotebook(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open notebook: %v\n", err)
		os.Exit(1)
	}
	units, err := nb.Units()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read cells: %v\n", err)
		os.Exit(1)
	}

	for _, u := range units {
		if u.Kind == host.UnitMarkdown && u.Tagged(persist.SummaryTag) {
			fmt.Println(u.Source)
			return
		}
	}
	fmt.Fprintln(os.Stderr, "no summary block in notebook")
	os.Exit(1)
}

// cmdStatus shows the effective configuration and whether a daemon appears
// to be running.
func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("engaged status")
	fmt.Printf("  data dir:    %s\n", config.DataDir())
	fmt.Printf("  config:      %s\n", *configPath)
	fmt.Printf("  watch paths: %v\n", cfg.Watch.Paths)
	fmt.Printf("  quiet:       %s\n", cfg.Persist.Quiet())
	fmt.Printf("  event log:   enabled=%v cap=%d spool=%s\n",
		cfg.EventLog.Enabled, cfg.EventLog.Cap, cfg.EventLog.SpoolPath)

	if _, err := os.Stat(cfg.Feed.SocketPath); err == nil {
		fmt.Printf("  daemon:      socket present at %s\n", cfg.Feed.SocketPath)
	} else {
		fmt.Printf("  daemon:      not running (no socket at %s)\n", cfg.Feed.SocketPath)
	}
}
