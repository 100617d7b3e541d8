package events

import (
	"encoding/json"
	"testing"
)

func TestNormalizeExecuteInput(t *testing.T) {
	raw := json.RawMessage(`{"header":{"msg_type":"execute_input"},"content":{"execution_count":5},"cell_id":"a"}`)

	ev, ok := Normalize(raw)
	if !ok {
		t.Fatal("expected message to normalize")
	}
	if ev.Kind != KindExecutionStarted {
		t.Errorf("expected KindExecutionStarted, got %v", ev.Kind)
	}
	if ev.UnitID != "a" || ev.Sequence != 5 {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestNormalizeError(t *testing.T) {
	raw := json.RawMessage(`{"header":{"msg_type":"error"},"content":{"ename":"ZeroDivisionError","execution_count":3},"cell_id":"b"}`)

	ev, ok := Normalize(raw)
	if !ok {
		t.Fatal("expected message to normalize")
	}
	if ev.Kind != KindExecutionFailed {
		t.Errorf("expected KindExecutionFailed, got %v", ev.Kind)
	}
	if ev.ErrorKind != "ZeroDivisionError" {
		t.Errorf("expected ename, got %q", ev.ErrorKind)
	}
}

func TestNormalizeErrorWithoutEname(t *testing.T) {
	raw := json.RawMessage(`{"header":{"msg_type":"error"},"content":{},"cell_id":"b"}`)

	ev, ok := Normalize(raw)
	if !ok {
		t.Fatal("expected message to normalize")
	}
	if ev.ErrorKind != "Error" {
		t.Errorf("expected fallback error kind, got %q", ev.ErrorKind)
	}
}

func TestNormalizeDropsNoise(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing header", `{"content":{"execution_count":1},"cell_id":"a"}`},
		{"missing cell id", `{"header":{"msg_type":"execute_input"},"content":{}}`},
		{"other kind", `{"header":{"msg_type":"status"},"content":{},"cell_id":"a"}`},
		{"not json", `{{{`},
		{"empty", ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Normalize(json.RawMessage(tc.raw)); ok {
				t.Error("malformed or uninteresting message must be dropped")
			}
		})
	}
}
