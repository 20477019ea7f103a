package events

import "sync"

// Window is the in-memory dedup set for one listener loop's lifetime.
// It protects against re-delivery within a run caused by overlapping fetch
// ranges (a range fetched twice after a recoverable error); it is not a
// substitute for the cursor's crash-recovery role.
//
// With retention == 0 the window grows without bound for the process
// lifetime. A non-zero retention evicts identities once the cursor has
// moved that many blocks past them.
type Window struct {
	mu        sync.Mutex
	seen      map[Identity]uint64 // identity -> block number it was seen at
	retention uint64
}

// NewWindow creates a dedup window. retentionBlocks == 0 means unbounded.
func NewWindow(retentionBlocks uint64) *Window {
	return &Window{
		seen:      make(map[Identity]uint64),
		retention: retentionBlocks,
	}
}

// Admit marks the identity as seen and reports whether it was first-seen.
// A false return means the event was already dispatched this run.
func (w *Window) Admit(id Identity, block uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = block
	return true
}

// Seen reports whether the identity has been admitted
func (w *Window) Seen(id Identity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok := w.seen[id]
	return ok
}

// Compact evicts identities older than the retention horizon relative to
// the given cursor position. No-op when the window is unbounded.
func (w *Window) Compact(cursor uint64) {
	if w.retention == 0 || cursor <= w.retention {
		return
	}
	horizon := cursor - w.retention

	w.mu.Lock()
	defer w.mu.Unlock()

	for id, block := range w.seen {
		if block < horizon {
			delete(w.seen, id)
		}
	}
}

// Len returns the number of identities currently held
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.seen)
}
