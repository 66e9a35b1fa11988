package emit

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)
	e.Emit(Event{RunID: "run-1", SnapshotID: "Foo:1", NodeID: "Foo", Phase: PhaseNodeSuccess})

	out := buf.String()
	if !strings.Contains(out, "node_success") || !strings.Contains(out, "Foo:1") {
		t.Fatalf("unexpected text output: %q", out)
	}
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)
	e.Emit(Event{RunID: "run-1", SnapshotID: "end:2", Phase: PhaseRunEnd})

	out := buf.String()
	if !strings.Contains(out, `"phase":"run_end"`) {
		t.Fatalf("unexpected json output: %q", out)
	}
}

func TestLogEmitterBatch(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)
	err := e.EmitBatch(nil, []Event{
		{NodeID: "A", Phase: PhaseNodeCreated},
		{NodeID: "A", Phase: PhaseNodeSuccess},
	})
	if err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
}
