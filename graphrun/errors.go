package graphrun

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors a caller is expected to compare against with errors.Is.
var (
	// ErrSnapshotNotFound is returned by RecordRun when the requested
	// snapshot ID has no matching node snapshot.
	ErrSnapshotNotFound = errors.New("graphrun: snapshot not found")

	// ErrNotNodeSnapshot is returned by RecordRun when the requested
	// snapshot ID refers to an end snapshot rather than a node snapshot.
	ErrNotNodeSnapshot = errors.New("graphrun: snapshot is not a node snapshot")

	// ErrCodecNotConfigured is returned by DumpJSON/LoadJSON when called
	// before SetTypes has supplied a node registry.
	ErrCodecNotConfigured = errors.New("graphrun: codec not configured, call SetTypes first")

	// ErrRecordingIDMismatch is returned by the latest-only backend's
	// RecordRun when the requested ID does not match the current snapshot.
	// Per the design notes, this is a programmer error and is never
	// reconciled implicitly.
	ErrRecordingIDMismatch = errors.New("graphrun: record_run id does not match current snapshot")

	// ErrMaxStepsExceeded is returned by Run when the configured WithMaxSteps
	// bound is reached before the graph returns an End.
	ErrMaxStepsExceeded = errors.New("graphrun: max steps exceeded")
)

// GraphSetupError reports a problem detected while constructing a Graph:
// a duplicate node ID, a missing node reference, or an inconsistent
// explicitly-declared type parameter. Setup errors are programmer errors —
// they abort graph construction rather than being retried.
type GraphSetupError struct {
	Message string
}

func (e *GraphSetupError) Error() string { return e.Message }

// missingReferenceError builds the exact diagnostic text for one or more
// missing node references, following the pluralization rules: a single
// referrer gets a plain sentence, multiple referrers for one missing node
// get an Oxford-comma list, and multiple distinct missing nodes get one line
// per node.
func missingReferenceError(missing map[string][]string) *GraphSetupError {
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sortStrings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		referrers := missing[name]
		sortStrings(referrers)
		lines = append(lines, fmt.Sprintf("`%s` is referenced by %s but not included in the graph.", name, joinOxford(referrers)))
	}
	return &GraphSetupError{Message: strings.Join(lines, "\n")}
}

// joinOxford joins names with commas and a final "and", using a backtick
// quote around each, matching the source's human-facing diagnostics.
func joinOxford(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " and " + quoted[1]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + ", and " + quoted[len(quoted)-1]
	}
}

func duplicateIDError(id string, typeA, typeB string) *GraphSetupError {
	return &GraphSetupError{
		Message: fmt.Sprintf("Node ID `%s` is not unique — found on %s, %s", id, typeA, typeB),
	}
}

func sortStrings(s []string) {
	// insertion sort: these lists are always small (number of nodes/referrers
	// in one graph), and avoiding an import of sort here keeps this file's
	// only dependency on strings/fmt/errors.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// GraphRuntimeError reports an illegal step observed by the engine during a
// run: a node returned from Run that is not in the graph's declared set, or
// (structurally, via a zero Step) a node that returned neither a next node
// nor an End.
type GraphRuntimeError struct {
	Message string
}

func (e *GraphRuntimeError) Error() string { return e.Message }

func notInGraphError(repr string) *GraphRuntimeError {
	return &GraphRuntimeError{Message: fmt.Sprintf("Node `%s` is not in the graph.", repr)}
}

func invalidReturnError(typeName string) *GraphRuntimeError {
	return &GraphRuntimeError{
		Message: fmt.Sprintf("Invalid node return type: `%s`. Expected `BaseNode` or `End`.", typeName),
	}
}

// NodeError wraps an error returned from a node's Run. The engine closes the
// recording region with it, attaching timing and error status, and then
// returns it to the caller of Run/Next wrapped in NodeError; Unwrap yields
// the original error. Panics are not recovered.
type NodeError struct {
	NodeID string
	Cause  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.NodeID, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }

// PersistenceError reports a lookup or type mismatch raised by RecordRun.
type PersistenceError struct {
	Message string
	Cause   error
}

func (e *PersistenceError) Error() string { return e.Message }

func (e *PersistenceError) Unwrap() error { return e.Cause }

// CodecError reports a missing type adapter used before SetTypes.
type CodecError struct {
	Message string
	Cause   error
}

func (e *CodecError) Error() string { return e.Message }

func (e *CodecError) Unwrap() error { return e.Cause }
