package graphrun

import (
	"encoding/json"
	"fmt"
)

// NodeRegistry maps a node ID to a decode function, built once at Graph
// construction from the declared node set. The full-history codec uses it to
// dispatch on the node_id discriminator when deserializing a node snapshot.
type NodeRegistry[State, Deps, RunEnd any] struct {
	factories map[string]func() Node[State, Deps, RunEnd]
}

// NewNodeRegistry returns an empty registry.
func NewNodeRegistry[State, Deps, RunEnd any]() *NodeRegistry[State, Deps, RunEnd] {
	return &NodeRegistry[State, Deps, RunEnd]{
		factories: make(map[string]func() Node[State, Deps, RunEnd]),
	}
}

// Register adds a decode factory for id. It panics if id was already
// registered, whatever the factory — a registration programmer error,
// distinct from the validator's duplicate-node-ID setup error, which governs
// two declared graph node *types* colliding rather than two decode-table
// entries.
func (r *NodeRegistry[State, Deps, RunEnd]) Register(id string, factory func() Node[State, Deps, RunEnd]) {
	if _, exists := r.factories[id]; exists {
		panic(fmt.Sprintf("graphrun: node id %q registered twice", id))
	}
	r.factories[id] = factory
}

// Has reports whether id has a registered factory.
func (r *NodeRegistry[State, Deps, RunEnd]) Has(id string) bool {
	_, ok := r.factories[id]
	return ok
}

// IDs returns the registered node IDs, in registration order is not
// preserved (map iteration); callers that need a stable order should sort.
func (r *NodeRegistry[State, Deps, RunEnd]) IDs() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}

// Decode dispatches raw (a node envelope carrying a node_id field) to the
// registered node type and unmarshals the remaining fields into it.
func (r *NodeRegistry[State, Deps, RunEnd]) Decode(raw json.RawMessage) (Node[State, Deps, RunEnd], error) {
	var envelope struct {
		NodeID string `json:"node_id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &CodecError{Message: "graphrun: decoding node envelope", Cause: err}
	}
	factory, ok := r.factories[envelope.NodeID]
	if !ok {
		return nil, &CodecError{Message: fmt.Sprintf("graphrun: unknown node_id %q during decode", envelope.NodeID)}
	}
	n := factory()
	if err := json.Unmarshal(raw, n); err != nil {
		return nil, &CodecError{Message: fmt.Sprintf("graphrun: decoding node %q payload", envelope.NodeID), Cause: err}
	}
	return n, nil
}

// Encode marshals n's payload fields plus a node_id discriminator into one
// JSON object, the wire format §6 describes.
func Encode[State, Deps, RunEnd any](n Node[State, Deps, RunEnd]) (json.RawMessage, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, &CodecError{Message: "graphrun: encoding node payload", Cause: err}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, &CodecError{Message: "graphrun: node payload did not marshal to a JSON object", Cause: err}
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	idRaw, err := json.Marshal(n.ID())
	if err != nil {
		return nil, err
	}
	fields["node_id"] = idRaw
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, &CodecError{Message: "graphrun: re-encoding node envelope", Cause: err}
	}
	return out, nil
}
