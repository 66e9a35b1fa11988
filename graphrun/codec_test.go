package graphrun_test

import (
	"context"
	"testing"

	"github.com/ashbourne/graphrun"
	"github.com/ashbourne/graphrun/persist"
)

func TestJSONLoadAssignsIDs(t *testing.T) {
	reg := graphrun.NewNodeRegistry[MyState, graphrun.NoDeps, int]()
	reg.Register("Foo", func() graphrun.Node[MyState, graphrun.NoDeps, int] { return &Foo{} })

	doc := []byte(`[{"kind":"node","node":{"node_id":"Foo"}},{"kind":"end","result":{"data":4}}]`)

	var alloc graphrun.IDAllocator
	history, err := graphrun.DecodeHistory[MyState, graphrun.NoDeps, int](doc, reg, &alloc)
	if err != nil {
		t.Fatalf("DecodeHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].ID != "Foo:1" {
		t.Errorf("history[0].ID = %q, want %q", history[0].ID, "Foo:1")
	}
	if history[1].ID != "end:2" {
		t.Errorf("history[1].ID = %q, want %q", history[1].ID, "end:2")
	}

	// A subsequent allocation on the same allocator continues past the
	// observed/assigned maximum rather than colliding.
	next := alloc.Next("Foo")
	if next != "Foo:3" {
		t.Errorf("next allocation = %q, want %q", next, "Foo:3")
	}
}

func TestJSONLoadContinuesAfterExistingIDs(t *testing.T) {
	reg := graphrun.NewNodeRegistry[MyState, graphrun.NoDeps, int]()
	reg.Register("Foo", func() graphrun.Node[MyState, graphrun.NoDeps, int] { return &Foo{} })

	doc := []byte(`[{"kind":"node","id":"Foo:5","node":{"node_id":"Foo"}},{"kind":"end","result":{"data":4}}]`)

	var alloc graphrun.IDAllocator
	history, err := graphrun.DecodeHistory[MyState, graphrun.NoDeps, int](doc, reg, &alloc)
	if err != nil {
		t.Fatalf("DecodeHistory: %v", err)
	}
	if history[0].ID != "Foo:5" {
		t.Errorf("history[0].ID = %q, want %q (explicit ID preserved)", history[0].ID, "Foo:5")
	}
	if history[1].ID != "end:6" {
		t.Errorf("history[1].ID = %q, want %q (continues after observed max)", history[1].ID, "end:6")
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	g, err := graphrun.NewGraph[MyState, graphrun.NoDeps, int]([]graphrun.NodeKind[MyState, graphrun.NoDeps, int]{
		graphrun.Declare[MyState, graphrun.NoDeps, int](&Foo{}, func() graphrun.Node[MyState, graphrun.NoDeps, int] { return &Foo{} }),
		graphrun.Declare[MyState, graphrun.NoDeps, int](&Bar{}, func() graphrun.Node[MyState, graphrun.NoDeps, int] { return &Bar{} }),
	})
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	engine := graphrun.NewEngine(g)
	store := persist.NewMemoryHistoryPersistence[MyState, graphrun.NoDeps, int]()
	store.SetTypes(g.Registry())

	state := MyState{X: 1, Y: ""}
	if _, err := engine.Run(context.Background(), &Foo{}, &state, graphrun.NoDeps{}, store); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dumped, err := store.DumpJSON("")
	if err != nil {
		t.Fatalf("DumpJSON: %v", err)
	}

	reloaded := persist.NewMemoryHistoryPersistence[MyState, graphrun.NoDeps, int]()
	reloaded.SetTypes(g.Registry())
	if err := reloaded.LoadJSON(dumped); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}

	original, err := store.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	roundTripped, err := reloaded.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(original) != len(roundTripped) {
		t.Fatalf("round-tripped history length = %d, want %d", len(roundTripped), len(original))
	}
	for i := range original {
		if original[i].ID != roundTripped[i].ID {
			t.Errorf("entry %d: ID = %q, want %q", i, roundTripped[i].ID, original[i].ID)
		}
		if original[i].Kind != roundTripped[i].Kind {
			t.Errorf("entry %d: Kind = %q, want %q", i, roundTripped[i].Kind, original[i].Kind)
		}
	}
}
