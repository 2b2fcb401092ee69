// Package inflight keeps per-key request bookkeeping: which fetch is the
// latest for a view, and whether a mutating action is already running.
package inflight

import (
	"context"
	"sync"
)

// Tracker hands out one live request per key. Starting a new one cancels the
// previous request for the same key and makes its token stale.
type Tracker[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

type entry struct {
	gen    uint64
	cancel context.CancelFunc
}

func NewTracker[K comparable]() *Tracker[K] {
	return &Tracker[K]{entries: make(map[K]*entry)}
}

// Token identifies one request issued through Begin.
type Token[K comparable] struct {
	t   *Tracker[K]
	key K
	gen uint64
}

// Begin derives a cancellable context for a new request on key.
func (t *Tracker[K]) Begin(ctx context.Context, key K) (context.Context, Token[K]) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	e.cancel = cancel

	return ctx, Token[K]{t: t, key: key, gen: e.gen}
}

// Current reports whether no newer request was started for the token's key.
func (tok Token[K]) Current() bool {
	tok.t.mu.Lock()
	defer tok.t.mu.Unlock()
	e, ok := tok.t.entries[tok.key]
	return ok && e.gen == tok.gen
}

// Done releases the request's context. A newer request is left untouched.
func (tok Token[K]) Done() {
	tok.t.mu.Lock()
	defer tok.t.mu.Unlock()
	e, ok := tok.t.entries[tok.key]
	if !ok || e.gen != tok.gen {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Abandon cancels whatever is in flight for key, e.g. when the view closes.
// The generation still advances, so tokens issued before stay stale even
// after a later Begin on the same key.
func (t *Tracker[K]) Abandon(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
}

// Busy guards mutating actions so the same one cannot run twice at once.
type Busy[K comparable] struct {
	mu   sync.Mutex
	held map[K]struct{}
}

func NewBusy[K comparable]() *Busy[K] {
	return &Busy[K]{held: make(map[K]struct{})}
}

// TryAcquire returns false while key is held.
func (b *Busy[K]) TryAcquire(key K) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.held[key]; ok {
		return false
	}
	b.held[key] = struct{}{}
	return true
}

func (b *Busy[K]) Release(key K) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.held, key)
}
