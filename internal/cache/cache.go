// Package cache holds the last fetched value per view with TTL-based
// freshness. A stale entry may still be displayed (better a stale value
// than nothing) but is never reported as fresh.
package cache

import (
	"sync"
	"time"

	"github.com/kverlaine/opsdeck/internal/clock"
)

// Entry is a cached value with its fetch time and staleness mark.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
	Stale     bool
}

// Box stores at most one Entry and answers freshness queries against a TTL.
type Box[T any] struct {
	mu    sync.Mutex
	clk   clock.Clock
	ttl   time.Duration
	entry *Entry[T]
}

// NewBox creates an empty Box with the given TTL.
func NewBox[T any](clk clock.Clock, ttl time.Duration) *Box[T] {
	return &Box[T]{clk: clk, ttl: ttl}
}

// Put stores a freshly fetched value.
func (b *Box[T]) Put(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entry = &Entry[T]{Value: v, FetchedAt: b.clk.Now()}
}

// PutStale stores a value already known to be stale (e.g. a soft-timeout
// fallback derived from an older fetch).
func (b *Box[T]) PutStale(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entry = &Entry[T]{Value: v, FetchedAt: b.clk.Now(), Stale: true}
}

// Get returns the current entry, or false if nothing has been cached.
func (b *Box[T]) Get() (Entry[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entry == nil {
		var zero Entry[T]
		return zero, false
	}
	return *b.entry, true
}

// Fresh reports whether a cached value exists, is not marked stale, and
// is younger than the TTL.
func (b *Box[T]) Fresh() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entry == nil || b.entry.Stale {
		return false
	}
	return b.clk.Now().Sub(b.entry.FetchedAt) < b.ttl
}

// MarkStale flags the current entry, if any, as stale.
func (b *Box[T]) MarkStale() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entry != nil {
		b.entry.Stale = true
	}
}

// Clear evicts the entry. Used when navigating away from a view whose
// data should not survive the switch.
func (b *Box[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entry = nil
}
