package view

import "sync"

// Ticket is a captured (epoch, view) pair. It stays valid only while the
// live epoch equals the captured epoch and the live view equals the
// captured view. Once invalid it never becomes valid again.
type Ticket struct {
	Epoch uint64
	View  View
}

// Tracker is the process-wide render epoch counter plus the current view.
// Every asynchronous continuation that touches shared UI state must call
// IsStale immediately before applying its result.
type Tracker struct {
	mu      sync.Mutex
	epoch   uint64
	current View
}

// NewTracker creates a Tracker with the given initial view.
func NewTracker(initial View) *Tracker {
	return &Tracker{current: initial}
}

// BeginRender increments the epoch, records v as the current view, and
// returns a ticket for the new render cycle.
func (t *Tracker) BeginRender(v View) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epoch++
	t.current = v
	return Ticket{Epoch: t.epoch, View: v}
}

// IsStale reports whether tk no longer matches the live epoch and view.
// Stale results must be silently dropped, not queued or retried.
func (t *Tracker) IsStale(tk Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tk.Epoch != t.epoch || tk.View != t.current
}

// Current returns the live current view.
func (t *Tracker) Current() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Epoch returns the live epoch. Used for diagnostics only.
func (t *Tracker) Epoch() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}
