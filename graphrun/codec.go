package graphrun

import (
	"encoding/json"
	"time"
)

// wireSnapshot mirrors the §6 JSON schema for one snapshot, before the
// node/result fields are decoded against a NodeRegistry.
type wireSnapshot struct {
	Kind     Kind            `json:"kind"`
	State    json.RawMessage `json:"state,omitempty"`
	Node     json.RawMessage `json:"node,omitempty"`
	StartTS  *time.Time      `json:"start_ts,omitempty"`
	Duration *float64        `json:"duration,omitempty"`
	Status   Status          `json:"status,omitempty"`
	ID       string          `json:"id"`
	Result   json.RawMessage `json:"result,omitempty"`
	Ts       *time.Time      `json:"ts,omitempty"`
}

type wireResult struct {
	Data json.RawMessage `json:"data"`
}

// EncodeHistory renders history to the wire format in §6, encoding each
// node snapshot's node payload with Encode's node_id discriminator.
func EncodeHistory[State, Deps, RunEnd any](history []Snapshot[State, Deps, RunEnd], indent string) ([]byte, error) {
	wire := make([]wireSnapshot, 0, len(history))
	for _, snap := range history {
		w := wireSnapshot{Kind: snap.Kind, ID: snap.ID}
		if snap.State != nil {
			stateJSON, err := json.Marshal(snap.State)
			if err != nil {
				return nil, &CodecError{Message: "graphrun: encoding snapshot state", Cause: err}
			}
			w.State = stateJSON
		}
		switch snap.Kind {
		case KindNode:
			nodeJSON, err := Encode[State, Deps, RunEnd](snap.Node)
			if err != nil {
				return nil, err
			}
			w.Node = nodeJSON
			w.StartTS = snap.StartTS
			if snap.Duration != nil {
				secs := snap.Duration.Seconds()
				w.Duration = &secs
			}
			w.Status = snap.Status
		case KindEnd:
			dataJSON, err := json.Marshal(snap.Result.Data)
			if err != nil {
				return nil, &CodecError{Message: "graphrun: encoding end result", Cause: err}
			}
			resultJSON, err := json.Marshal(wireResult{Data: dataJSON})
			if err != nil {
				return nil, err
			}
			w.Result = resultJSON
			w.Ts = snap.Ts
		}
		wire = append(wire, w)
	}
	if indent != "" {
		return json.MarshalIndent(wire, "", indent)
	}
	return json.Marshal(wire)
}

// DecodeHistory parses the wire format in §6 back into snapshots, dispatching
// each node payload through reg. Every non-empty ID in the document is first
// passed to alloc.Observe; snapshots with an empty ID are then assigned new
// IDs from alloc, so they continue past every ID already in the document.
func DecodeHistory[State, Deps, RunEnd any](data []byte, reg *NodeRegistry[State, Deps, RunEnd], alloc *IDAllocator) ([]Snapshot[State, Deps, RunEnd], error) {
	var wire []wireSnapshot
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &CodecError{Message: "graphrun: decoding history document", Cause: err}
	}
	for _, w := range wire {
		if w.ID != "" {
			alloc.Observe(w.ID)
		}
	}
	out := make([]Snapshot[State, Deps, RunEnd], 0, len(wire))
	for _, w := range wire {
		snap := Snapshot[State, Deps, RunEnd]{Kind: w.Kind, ID: w.ID}
		if len(w.State) > 0 && string(w.State) != "null" {
			var state State
			if err := json.Unmarshal(w.State, &state); err != nil {
				return nil, &CodecError{Message: "graphrun: decoding snapshot state", Cause: err}
			}
			snap.State = &state
		}
		switch w.Kind {
		case KindNode:
			node, err := reg.Decode(w.Node)
			if err != nil {
				return nil, err
			}
			snap.Node = node
			snap.StartTS = w.StartTS
			if w.Duration != nil {
				d := time.Duration(*w.Duration * float64(time.Second))
				snap.Duration = &d
			}
			snap.Status = w.Status
			if snap.ID == "" {
				snap.ID = alloc.Next(node.ID())
			}
		case KindEnd:
			var result wireResult
			if len(w.Result) > 0 {
				if err := json.Unmarshal(w.Result, &result); err != nil {
					return nil, &CodecError{Message: "graphrun: decoding end result envelope", Cause: err}
				}
			}
			var data RunEnd
			if len(result.Data) > 0 && string(result.Data) != "null" {
				if err := json.Unmarshal(result.Data, &data); err != nil {
					return nil, &CodecError{Message: "graphrun: decoding end result data", Cause: err}
				}
			}
			snap.Result = &End[RunEnd]{Data: data}
			snap.Ts = w.Ts
			if snap.ID == "" {
				snap.ID = alloc.NextEnd()
			}
		}
		out = append(out, snap)
	}
	return out, nil
}
