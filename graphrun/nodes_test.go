package graphrun_test

import (
	"context"
	"strconv"
	"strings"

	"github.com/ashbourne/graphrun"
)

// Float2String, String2Length, and Double form the three-node linear graph
// used by the linear and loopback scenarios: a float becomes its string
// form, the string becomes its length, and Double either finishes with
// double that length or, on exactly 7, loops back through a 21-character
// string.
type Float2String struct {
	Value float64
}

func (n *Float2String) ID() string { return "Float2String" }

func (n *Float2String) Run(_ context.Context, _ *graphrun.GraphRunContext[graphrun.NoState, graphrun.NoDeps]) (graphrun.Step[graphrun.NoState, graphrun.NoDeps, int], error) {
	return graphrun.NextNode[graphrun.NoState, graphrun.NoDeps, int](&String2Length{Value: strconv.FormatFloat(n.Value, 'g', -1, 64)}), nil
}

func (n *Float2String) DeepCopy() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] {
	cp := *n
	return &cp
}

func (n *Float2String) DeclaredReturns() []string { return []string{"String2Length"} }

type String2Length struct {
	Value string
}

func (n *String2Length) ID() string { return "String2Length" }

func (n *String2Length) Run(_ context.Context, _ *graphrun.GraphRunContext[graphrun.NoState, graphrun.NoDeps]) (graphrun.Step[graphrun.NoState, graphrun.NoDeps, int], error) {
	return graphrun.NextNode[graphrun.NoState, graphrun.NoDeps, int](&Double{Value: len(n.Value)}), nil
}

func (n *String2Length) DeepCopy() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] {
	cp := *n
	return &cp
}

func (n *String2Length) DeclaredReturns() []string { return []string{"Double"} }

type Double struct {
	Value int
}

func (n *Double) ID() string { return "Double" }

func (n *Double) Run(_ context.Context, _ *graphrun.GraphRunContext[graphrun.NoState, graphrun.NoDeps]) (graphrun.Step[graphrun.NoState, graphrun.NoDeps, int], error) {
	if n.Value == 7 {
		return graphrun.NextNode[graphrun.NoState, graphrun.NoDeps, int](&String2Length{Value: strings.Repeat("x", 21)}), nil
	}
	return graphrun.Finish[graphrun.NoState, graphrun.NoDeps, int](n.Value * 2), nil
}

func (n *Double) DeepCopy() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] {
	cp := *n
	return &cp
}

func (n *Double) DeclaredReturns() []string { return []string{"String2Length"} }

func linearGraph(t interface{ Fatalf(string, ...any) }) *graphrun.Graph[graphrun.NoState, graphrun.NoDeps, int] {
	g, err := graphrun.NewGraph[graphrun.NoState, graphrun.NoDeps, int]([]graphrun.NodeKind[graphrun.NoState, graphrun.NoDeps, int]{
		graphrun.Declare[graphrun.NoState, graphrun.NoDeps, int](&Float2String{}, func() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] { return &Float2String{} }),
		graphrun.Declare[graphrun.NoState, graphrun.NoDeps, int](&String2Length{}, func() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] { return &String2Length{} }),
		graphrun.Declare[graphrun.NoState, graphrun.NoDeps, int](&Double{}, func() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] { return &Double{} }),
	})
	if err != nil {
		t.Fatalf("building linear graph: %v", err)
	}
	return g
}

// MyState, Foo, and Bar exercise mutable state threaded across steps: Foo
// increments X, Bar appends to Y and ends with 2*X.
type MyState struct {
	X int
	Y string
}

type Foo struct{}

func (n *Foo) ID() string { return "Foo" }

func (n *Foo) Run(_ context.Context, rc *graphrun.GraphRunContext[MyState, graphrun.NoDeps]) (graphrun.Step[MyState, graphrun.NoDeps, int], error) {
	rc.State.X++
	return graphrun.NextNode[MyState, graphrun.NoDeps, int](&Bar{}), nil
}

func (n *Foo) DeepCopy() graphrun.Node[MyState, graphrun.NoDeps, int] {
	cp := *n
	return &cp
}

func (n *Foo) DeclaredReturns() []string { return []string{"Bar"} }

type Bar struct{}

func (n *Bar) ID() string { return "Bar" }

func (n *Bar) Run(_ context.Context, rc *graphrun.GraphRunContext[MyState, graphrun.NoDeps]) (graphrun.Step[MyState, graphrun.NoDeps, int], error) {
	rc.State.Y += "y"
	return graphrun.Finish[MyState, graphrun.NoDeps, int](2 * rc.State.X), nil
}

func (n *Bar) DeepCopy() graphrun.Node[MyState, graphrun.NoDeps, int] {
	cp := *n
	return &cp
}

func (n *Bar) DeclaredReturns() []string { return nil }

// Spam is an undeclared node used by the off-graph and node-exception
// runtime scenarios.
type Spam struct {
	Fail bool
}

func (n *Spam) ID() string { return "Spam" }

func (n *Spam) Run(_ context.Context, _ *graphrun.GraphRunContext[graphrun.NoState, graphrun.NoDeps]) (graphrun.Step[graphrun.NoState, graphrun.NoDeps, int], error) {
	if n.Fail {
		return graphrun.Step[graphrun.NoState, graphrun.NoDeps, int]{}, errTestError
	}
	return graphrun.Finish[graphrun.NoState, graphrun.NoDeps, int](0), nil
}

func (n *Spam) DeepCopy() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] {
	cp := *n
	return &cp
}

func (n *Spam) DeclaredReturns() []string { return nil }

// BarToSpam is a variant of Bar that illegally returns a Spam instance,
// which is never declared in the graphs it is used with.
type BarToSpam struct{}

func (n *BarToSpam) ID() string { return "Bar" }

func (n *BarToSpam) Run(_ context.Context, _ *graphrun.GraphRunContext[graphrun.NoState, graphrun.NoDeps]) (graphrun.Step[graphrun.NoState, graphrun.NoDeps, int], error) {
	return graphrun.NextNode[graphrun.NoState, graphrun.NoDeps, int](&Spam{}), nil
}

func (n *BarToSpam) DeepCopy() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] {
	cp := *n
	return &cp
}

func (n *BarToSpam) DeclaredReturns() []string { return nil }

type offGraphFoo struct{}

func (n *offGraphFoo) ID() string { return "Foo" }

func (n *offGraphFoo) Run(_ context.Context, _ *graphrun.GraphRunContext[graphrun.NoState, graphrun.NoDeps]) (graphrun.Step[graphrun.NoState, graphrun.NoDeps, int], error) {
	return graphrun.NextNode[graphrun.NoState, graphrun.NoDeps, int](&BarToSpam{}), nil
}

func (n *offGraphFoo) DeepCopy() graphrun.Node[graphrun.NoState, graphrun.NoDeps, int] {
	cp := *n
	return &cp
}

func (n *offGraphFoo) DeclaredReturns() []string { return []string{"Bar"} }

var errTestError = testError("test error")

type testError string

func (e testError) Error() string { return string(e) }
