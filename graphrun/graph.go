package graphrun

// NodeKind describes one declared node type in a Graph: its ID, the IDs it
// may return to (its declared closure), and a factory used to build the
// NodeRegistry's decode table.
type NodeKind[State, Deps, RunEnd any] struct {
	ID       string
	TypeName string
	Returns  []string
	Factory  func() Node[State, Deps, RunEnd]
}

// Declare builds a NodeKind from a zero-value instance of a node type,
// reading its ID, Go type name, and DeclaredReturns, and using factory to
// build later instances (for decoding and default-construction).
func Declare[State, Deps, RunEnd any](zero Node[State, Deps, RunEnd], factory func() Node[State, Deps, RunEnd]) NodeKind[State, Deps, RunEnd] {
	return NodeKind[State, Deps, RunEnd]{
		ID:       zero.ID(),
		TypeName: TypeName(zero),
		Returns:  zero.DeclaredReturns(),
		Factory:  factory,
	}
}

// Graph is a validated set of node types sharing State/Deps/RunEnd type
// parameters. Construct one with NewGraph; validation runs once, eagerly, at
// construction.
type Graph[State, Deps, RunEnd any] struct {
	name     string
	declared map[string]NodeKind[State, Deps, RunEnd]
	registry *NodeRegistry[State, Deps, RunEnd]
}

// GraphOption configures a Graph at construction.
type GraphOption func(*graphConfig)

type graphConfig struct {
	name string
}

// WithGraphName sets the graph's human name. Per §4.D, Go cannot bind the
// caller's local variable name the way the source's lazy-binding behavior
// does, so the name must be supplied explicitly; an unset name is "".
func WithGraphName(name string) GraphOption {
	return func(c *graphConfig) { c.name = name }
}

// NewGraph validates nodes and constructs a Graph. It returns a
// *GraphSetupError if any node ID is duplicated or any declared return is
// missing from the node set.
func NewGraph[State, Deps, RunEnd any](nodes []NodeKind[State, Deps, RunEnd], opts ...GraphOption) (*Graph[State, Deps, RunEnd], error) {
	cfg := graphConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	declared := make(map[string]NodeKind[State, Deps, RunEnd], len(nodes))
	for _, n := range nodes {
		if existing, exists := declared[n.ID]; exists {
			return nil, duplicateIDError(n.ID, existing.TypeName, n.TypeName)
		}
		declared[n.ID] = n
	}

	// Closure check: every declared return must be either End (returns that
	// are never listed, since DeclaredReturns only lists node IDs) or a
	// declared node ID.
	missing := make(map[string][]string)
	for _, n := range nodes {
		for _, ref := range n.Returns {
			if _, ok := declared[ref]; !ok {
				missing[ref] = append(missing[ref], n.ID)
			}
		}
	}
	if len(missing) > 0 {
		return nil, missingReferenceError(missing)
	}

	reg := NewNodeRegistry[State, Deps, RunEnd]()
	for _, n := range nodes {
		reg.Register(n.ID, n.Factory)
	}

	return &Graph[State, Deps, RunEnd]{name: cfg.name, declared: declared, registry: reg}, nil
}

// Name returns the graph's human name, or "" if none was set.
func (g *Graph[State, Deps, RunEnd]) Name() string { return g.name }

// Registry returns the node registry built from the declared node set, for
// use configuring a HistoryPersistence backend's codec.
func (g *Graph[State, Deps, RunEnd]) Registry() *NodeRegistry[State, Deps, RunEnd] {
	return g.registry
}

// Has reports whether id is one of the graph's declared node IDs.
func (g *Graph[State, Deps, RunEnd]) Has(id string) bool {
	_, ok := g.declared[id]
	return ok
}
