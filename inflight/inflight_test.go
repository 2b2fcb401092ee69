package inflight

import (
	"context"
	"errors"
	"testing"
)

func TestTrackerSupersedes(t *testing.T) {
	tr := NewTracker[int64]()

	ctx1, tok1 := tr.Begin(context.Background(), 1)
	ctx2, tok2 := tr.Begin(context.Background(), 1)

	if !errors.Is(ctx1.Err(), context.Canceled) {
		t.Error("first request not cancelled by the second")
	}
	if ctx2.Err() != nil {
		t.Error("second request cancelled")
	}
	if tok1.Current() {
		t.Error("superseded token still current")
	}
	if !tok2.Current() {
		t.Error("latest token not current")
	}

	// A late finish of the stale request must not cancel the live one.
	tok1.Done()
	if ctx2.Err() != nil {
		t.Error("stale Done cancelled the live request")
	}

	tok2.Done()
	if ctx2.Err() == nil {
		t.Error("Done did not release the context")
	}
	if !tok2.Current() {
		t.Error("finished token should stay current until superseded")
	}
}

func TestTrackerKeysIndependent(t *testing.T) {
	tr := NewTracker[string]()

	ctxA, tokA := tr.Begin(context.Background(), "a")
	_, tokB := tr.Begin(context.Background(), "b")

	if ctxA.Err() != nil || !tokA.Current() || !tokB.Current() {
		t.Error("requests on different keys interfered")
	}
}

func TestTrackerAbandon(t *testing.T) {
	tr := NewTracker[int]()

	ctx, tok := tr.Begin(context.Background(), 3)
	tr.Abandon(3)

	if ctx.Err() == nil {
		t.Error("abandon did not cancel")
	}
	if tok.Current() {
		t.Error("abandoned token still current")
	}
	tr.Abandon(42)

	// A request started after the abandon is not disturbed by the old one.
	ctx2, tok2 := tr.Begin(context.Background(), 3)
	if tok.Current() {
		t.Error("abandoned token became current again after a new Begin")
	}
	tok.Done()
	if ctx2.Err() != nil {
		t.Error("abandoned token's Done cancelled the newer request")
	}
	if !tok2.Current() {
		t.Error("newer token not current")
	}
}

func TestBusy(t *testing.T) {
	b := NewBusy[int64]()

	if !b.TryAcquire(1) {
		t.Fatal("first acquire failed")
	}
	if b.TryAcquire(1) {
		t.Error("second acquire succeeded while held")
	}
	if !b.TryAcquire(2) {
		t.Error("other key blocked")
	}
	b.Release(1)
	if !b.TryAcquire(1) {
		t.Error("acquire after release failed")
	}
}
