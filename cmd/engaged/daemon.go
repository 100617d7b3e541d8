package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"engaged/internal/config"
	"engaged/internal/eventlog"
	"engaged/internal/feed"
	"engaged/internal/host"
	"engaged/internal/logging"
	"engaged/internal/tracker"
)

func defaultConfigPath() string {
	return filepath.Join(config.DataDir(), "engaged.toml")
}

func cmdDaemon() {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	watchDir := fs.String("watch", "", "notebook directory to watch (adds to config)")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *watchDir != "" {
		cfg.Watch.Paths = append(cfg.Watch.Paths, *watchDir)
	}
	if len(cfg.Watch.Paths) == 0 {
		fmt.Fprintln(os.Stderr, "no notebook directories to watch; set watch.paths or pass -watch")
		os.Exit(1)
	}

	log, err := logging.Init(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}

	var spool *eventlog.Spool
	if cfg.EventLog.Enabled {
		spool, err = eventlog.OpenSpool(cfg.EventLog.SpoolPath, cfg.EventLog.Cap)
		if err != nil {
			log.Error("event spool unavailable, continuing without it", "error", err)
			spool = nil
		}
	}

	tr := tracker.New(tracker.Config{
		Quiet:         cfg.Persist.Quiet(),
		PersistEvents: cfg.EventLog.Enabled,
		EventLogCap:   cfg.EventLog.Cap,
		Spool:         spool,
	}, log)

	d := &daemon{
		cfg:  cfg,
		log:  log.With("component", "daemon"),
		tr:   tr,
		docs: make(map[string]*docEntry),
	}

	if err := d.run(); err != nil {
		log.Error("daemon failed", "error", err)
		os.Exit(1)
	}

	tr.Shutdown()
	if spool != nil {
		spool.Close()
	}
}

// docEntry carries the per-document readiness signals the tracker's attach
// sequencing awaits.
type docEntry struct {
	contentReady chan struct{}
	sessionReady chan struct{}
	sessionOnce  sync.Once
}

type daemon struct {
	cfg *config.Config
	log *slog.Logger
	tr  *tracker.Tracker

	mu   sync.Mutex
	docs map[string]*docEntry
}

func (d *daemon) run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener := feed.NewListener(d.cfg.Feed.SocketPath, d.handleEnvelope, d.log)
	if err := listener.Start(); err != nil {
		return err
	}
	defer listener.Stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range d.cfg.Watch.Paths {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		d.scanExisting(ctx, dir)
	}

	d.log.Info("daemon running", "dirs", d.cfg.Watch.Paths, "socket", d.cfg.Feed.SocketPath)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("shutdown signal received")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if isNotebook(event.Name) {
				d.ensureDoc(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Warn("watcher error", "error", err)
		}
	}
}

// scanExisting attaches to notebooks already present under dir.
func (d *daemon) scanExisting(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		d.log.Warn("scan failed", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && isNotebook(entry.Name()) {
			d.ensureDoc(ctx, filepath.Join(dir, entry.Name()))
		}
	}
}

// ensureDoc starts the attach sequence for a notebook path, once.
func (d *daemon) ensureDoc(ctx context.Context, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	d.mu.Lock()
	if _, ok := d.docs[abs]; ok {
		d.mu.Unlock()
		return
	}
	entry := &docEntry{
		contentReady: make(chan struct{}),
		sessionReady: make(chan struct{}),
	}
	d.docs[abs] = entry
	d.mu.Unlock()

	go d.attachDoc(ctx, abs, entry)
}

// attachDoc opens the notebook and hands it to the tracker. The tracker
// blocks until both readiness signals fire; content ready fires here once
// the notebook parses, session ready fires on the plugin's hello.
func (d *daemon) attachDoc(ctx context.Context, path string, entry *docEntry) {
	nb, err := host.OpenNotebook(path)
	if err != nil {
		d.log.Warn("notebook not trackable", "path", path, "error", err)
		d.forget(path)
		return
	}
	close(entry.contentReady)

	if err := d.tr.Attach(ctx, nb, entry.contentReady, entry.sessionReady); err != nil {
		d.log.Debug("attach abandoned", "path", path, "error", err)
		d.forget(path)
	}
}

// forget drops the entry so a later lifecycle event can retry the attach.
func (d *daemon) forget(path string) {
	d.mu.Lock()
	delete(d.docs, path)
	d.mu.Unlock()
}

func (d *daemon) handleEnvelope(env feed.Envelope) {
	ctx := context.Background()
	switch env.Type {
	case feed.TypeHello:
		d.ensureDoc(ctx, env.Document)
		d.mu.Lock()
		entry := d.docs[envPath(env.Document)]
		d.mu.Unlock()
		if entry != nil {
			entry.sessionOnce.Do(func() { close(entry.sessionReady) })
		}

	case feed.TypeKernel:
		d.tr.HandleRaw(envPath(env.Document), env.Msg)

	case feed.TypeFocus:
		d.tr.HandleFocus(envPath(env.Document), env.CellID, unitKind(env.CellType))

	case feed.TypeBye:
		path := envPath(env.Document)
		d.tr.Detach(path)
		d.forget(path)
	}
}

func envPath(document string) string {
	abs, err := filepath.Abs(document)
	if err != nil {
		return document
	}
	return abs
}

func isNotebook(path string) bool {
	return strings.HasSuffix(path, ".ipynb") && !strings.HasSuffix(path, ".tmp")
}

func unitKind(cellType string) host.UnitKind {
	switch cellType {
	case "code":
		return host.UnitCode
	case "markdown":
		return host.UnitMarkdown
	default:
		return host.UnitRaw
	}
}
