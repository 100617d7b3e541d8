package feed

import (
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEnvelopeValid(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
		want bool
	}{
		{"hello", Envelope{Document: "d", Type: TypeHello}, true},
		{"kernel", Envelope{Document: "d", Type: TypeKernel}, true},
		{"focus", Envelope{Document: "d", Type: TypeFocus}, true},
		{"bye", Envelope{Document: "d", Type: TypeBye}, true},
		{"missing document", Envelope{Type: TypeHello}, false},
		{"unknown type", Envelope{Document: "d", Type: "nope"}, false},
		{"empty", Envelope{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.env.Valid(); got != tc.want {
				t.Errorf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReplay(t *testing.T) {
	input := strings.Join([]string{
		`{"document":"a","type":"hello"}`,
		``,
		`not json at all`,
		`{"document":"a","type":"kernel","msg":{"header":{"msg_type":"execute_input"},"cell_id":"c"}}`,
		`{"type":"kernel"}`,
		`{"document":"a","type":"bye"}`,
	}, "\n")

	var got []Envelope
	err := Replay(strings.NewReader(input), func(env Envelope) {
		got = append(got, env)
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 routed envelopes, got %d", len(got))
	}
	if got[0].Type != TypeHello || got[1].Type != TypeKernel || got[2].Type != TypeBye {
		t.Errorf("unexpected envelope order: %+v", got)
	}
	if len(got[1].Msg) == 0 {
		t.Error("kernel envelope must carry its raw message")
	}
}

func TestListenerRoutesEnvelopes(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "feed.sock")

	var mu sync.Mutex
	var got []Envelope
	l := NewListener(socket, func(env Envelope) {
		mu.Lock()
		got = append(got, env)
		mu.Unlock()
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := l.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer l.Stop()

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	lines := "{\"document\":\"d\",\"type\":\"hello\"}\ngarbage\n{\"document\":\"d\",\"type\":\"bye\"}\n"
	if _, err := conn.Write([]byte(lines)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 envelopes, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].Type != TypeHello || got[1].Type != TypeBye {
		t.Errorf("unexpected envelopes: %+v", got)
	}
}

func TestListenerReplacesStaleSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "feed.sock")

	l1 := NewListener(socket, func(Envelope) {}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l1.Start(); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	l1.Stop()

	l2 := NewListener(socket, func(Envelope) {}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l2.Start(); err != nil {
		t.Fatalf("restart over stale socket failed: %v", err)
	}
	l2.Stop()
}
