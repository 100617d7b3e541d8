package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// Listener accepts editor-plugin connections on a unix socket and routes
// their envelopes to a handler. Multiple plugins may connect; each
// connection streams newline-delimited JSON envelopes.
type Listener struct {
	socketPath string
	handler    Handler
	log        *slog.Logger

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener creates a Listener for the given socket path.
func NewListener(socketPath string, handler Handler, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		socketPath: socketPath,
		handler:    handler,
		log:        log.With("component", "feed"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start binds the socket and begins accepting connections.
func (l *Listener) Start() error {
	if err := os.MkdirAll(filepath.Dir(l.socketPath), 0700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	// A stale socket from a crashed run blocks the bind.
	if err := os.Remove(l.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.socketPath, err)
	}
	l.ln = ln

	l.wg.Add(1)
	go l.acceptLoop()

	l.log.Info("feed listening", "socket", l.socketPath)
	return nil
}

// Stop closes the socket and waits for connection goroutines to drain.
func (l *Listener) Stop() error {
	l.cancel()
	var err error
	if l.ln != nil {
		err = l.ln.Close()
	}
	l.wg.Wait()
	os.Remove(l.socketPath)
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn("accept failed", "error", err)
			continue
		}

		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	go func() {
		<-l.ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			l.log.Debug("unparseable feed line dropped", "error", err)
			continue
		}
		if !env.Valid() {
			l.log.Debug("invalid envelope dropped", "type", env.Type)
			continue
		}
		l.handler(env)
	}
}
