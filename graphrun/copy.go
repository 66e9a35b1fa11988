package graphrun

// DeepCopier is implemented by a State type that wants structural-clone
// control over how it is captured in a snapshot, mirroring the optional
// DeepCopy a node type always provides. If State does not implement it, a
// shallow struct copy is used — correct for value types with no nested
// reference fields, and documented as the fallback per the design notes'
// preference for an explicit structural clone over guessing at aliasing.
type DeepCopier[T any] interface {
	DeepCopyState() T
}

// CopyState clones *s if enabled, preferring a user-declared DeepCopyState,
// falling back to a shallow struct copy. A nil s is returned unchanged.
func CopyState[State any](s *State, enabled bool) *State {
	if s == nil || !enabled {
		return s
	}
	if dc, ok := any(*s).(DeepCopier[State]); ok {
		cloned := dc.DeepCopyState()
		return &cloned
	}
	cloned := *s
	return &cloned
}

// CopyNode clones n if enabled, via its required DeepCopy method.
func CopyNode[State, Deps, RunEnd any](n Node[State, Deps, RunEnd], enabled bool) Node[State, Deps, RunEnd] {
	if n == nil || !enabled {
		return n
	}
	return n.DeepCopy()
}
