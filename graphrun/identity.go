package graphrun

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// IDAllocator assigns snapshot IDs using the scheme "{node_id}:{seq}" /
// "end:{seq}", where seq is a per-persistence monotonic counter starting at
// 1. It is safe for concurrent use, matching the persistence backends'
// own internal locking granularity.
type IDAllocator struct {
	mu  sync.Mutex
	seq uint64
}

// Next allocates the next ID for a node snapshot with the given node ID.
func (a *IDAllocator) Next(nodeID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return fmt.Sprintf("%s:%d", nodeID, a.seq)
}

// NextEnd allocates the next ID for an end snapshot.
func (a *IDAllocator) NextEnd() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return fmt.Sprintf("end:%d", a.seq)
}

// Observe advances the allocator's counter so that subsequent allocations
// continue after the maximum sequence number embedded in existing, so
// loading a history document never collides with future appends.
func (a *IDAllocator) Observe(existingID string) {
	idx := strings.LastIndexByte(existingID, ':')
	if idx < 0 {
		return
	}
	seq, err := strconv.ParseUint(existingID[idx+1:], 10, 64)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq > a.seq {
		a.seq = seq
	}
}
