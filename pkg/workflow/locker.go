package workflow

import "sync"

// lockRegistry hands out one exclusive lock per workflow ID. Entries are
// created on first use and retained for the life of the process; eviction
// never happens while any caller could still hold a reference.
//
// The registry mutex is only ever held while looking up or creating an
// entry, never across store I/O. The per-workflow lock is acquired after
// the registry mutex is released, so a long critical section on one
// workflow cannot block lookups for unrelated workflows.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{
		locks: make(map[string]*sync.Mutex),
	}
}

// Acquire locks the named entry exclusively and returns its release func.
func (r *lockRegistry) Acquire(key string) func() {
	r.mu.Lock()

	entry, ok := r.locks[key]
	if !ok {
		entry = &sync.Mutex{}
		r.locks[key] = entry
	}

	r.mu.Unlock()

	entry.Lock()

	return entry.Unlock
}

// originationKey serializes idempotent creation per (owner, sourceID), so
// two concurrent origination calls for the same instrument resolve to one
// workflow.
func originationKey(owner, sourceID string) string {
	return "origin/" + owner + "/" + sourceID
}

// workflowKey guards the mutation critical section for one workflow.
func workflowKey(owner, workflowID string) string {
	return "workflow/" + owner + "/" + workflowID
}
