package graphrun_test

import (
	"testing"
	"time"

	"github.com/ashbourne/graphrun"
)

func ptrDuration(d time.Duration) *time.Duration { return &d }

func TestVerifyHistoryAcceptsWellFormedHistory(t *testing.T) {
	history := []graphrun.Snapshot[graphrun.NoState, graphrun.NoDeps, int]{
		{ID: "Foo:1", Kind: graphrun.KindNode, Status: graphrun.StatusSuccess, Duration: ptrDuration(time.Millisecond)},
		{ID: "end:2", Kind: graphrun.KindEnd},
	}
	if err := graphrun.VerifyHistory(history); err != nil {
		t.Fatalf("VerifyHistory: %v", err)
	}
}

func TestVerifyHistoryRejectsNonTerminalNonLastNode(t *testing.T) {
	history := []graphrun.Snapshot[graphrun.NoState, graphrun.NoDeps, int]{
		{ID: "Foo:1", Kind: graphrun.KindNode, Status: graphrun.StatusCreated},
		{ID: "Bar:2", Kind: graphrun.KindNode, Status: graphrun.StatusSuccess},
	}
	if err := graphrun.VerifyHistory(history); err == nil {
		t.Fatal("expected an error for a non-terminal, non-last node snapshot")
	}
}

func TestVerifyHistoryRejectsNegativeDuration(t *testing.T) {
	history := []graphrun.Snapshot[graphrun.NoState, graphrun.NoDeps, int]{
		{ID: "Foo:1", Kind: graphrun.KindNode, Status: graphrun.StatusSuccess, Duration: ptrDuration(-time.Millisecond)},
	}
	if err := graphrun.VerifyHistory(history); err == nil {
		t.Fatal("expected an error for a negative duration")
	}
}

func TestVerifyHistoryRejectsEndNotLast(t *testing.T) {
	history := []graphrun.Snapshot[graphrun.NoState, graphrun.NoDeps, int]{
		{ID: "end:1", Kind: graphrun.KindEnd},
		{ID: "Foo:2", Kind: graphrun.KindNode, Status: graphrun.StatusSuccess},
	}
	if err := graphrun.VerifyHistory(history); err == nil {
		t.Fatal("expected an error for an end snapshot that is not last")
	}
}
