package rangecache

import (
	"context"
	"testing"
	"time"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
)

type testPromise struct {
	key Key
	val string
}

func (p testPromise) Key() Key { return p.key }

// staticResolver resolves every promise to Ready immediately, decoding its
// stored string value.
type staticResolver struct{}

func (staticResolver) Resolve(ctx context.Context, p Promise) (PromiseStatus, *chunk.Cell, error) {
	tp := p.(testPromise)
	cell, err := chunk.NewCell(tp.val)
	if err != nil {
		return Errored, nil, err
	}
	return Ready, cell, nil
}

func rowKey(t int64) Key {
	return Key{Time: chunktime.TimeInt(t), Row: chunk.NewRowID()}
}

func TestToDenseResolvesFrontAndBack(t *testing.T) {
	e := NewEntry(nil)
	e.AddPromiseBack(testPromise{key: rowKey(1), val: "one"})
	e.AddPromiseBack(testPromise{key: rowKey(2), val: "two"})
	e.AddPromiseFront(testPromise{key: rowKey(0), val: "zero"})

	view := ToDense[string](context.Background(), e, chunktime.MinTemporal, chunktime.MaxTemporal, staticResolver{})
	if view.Len() != 3 {
		t.Fatalf("expected 3 resolved rows, got %d: %v", view.Len(), view.Values)
	}
	want := []string{"zero", "one", "two"}
	for i, v := range want {
		if view.Values[i] != v {
			t.Fatalf("index %d: want %q, got %q (full=%v)", i, v, view.Values[i], view.Values)
		}
	}
	if view.FrontStatus != Ready || view.BackStatus != Ready {
		t.Fatalf("expected both sides ready, got front=%v back=%v", view.FrontStatus, view.BackStatus)
	}
}

type pendingOnceResolver struct {
	tries map[Key]int
}

func (r *pendingOnceResolver) Resolve(ctx context.Context, p Promise) (PromiseStatus, *chunk.Cell, error) {
	tp := p.(testPromise)
	r.tries[tp.key]++
	if r.tries[tp.key] == 1 {
		return Pending, nil, nil
	}
	cell, err := chunk.NewCell(tp.val)
	return Ready, cell, err
}

// TestToDensePendingStopsThatSide grounds the PromisePending propagation
// rule: a side that returns Pending stops processing and the caller sees
// Pending for that side, without losing the promise.
func TestToDensePendingStopsThatSide(t *testing.T) {
	e := NewEntry(nil)
	k := rowKey(5)
	e.AddPromiseBack(testPromise{key: k, val: "five"})

	resolver := &pendingOnceResolver{tries: map[Key]int{}}
	view := ToDense[string](context.Background(), e, chunktime.MinTemporal, chunktime.MaxTemporal, resolver)
	if view.Len() != 0 {
		t.Fatalf("expected 0 resolved rows on first pass, got %d", view.Len())
	}
	if view.BackStatus != Pending {
		t.Fatalf("expected back status Pending, got %v", view.BackStatus)
	}

	// Second call resolves it since pendingOnceResolver returns Ready after
	// the first Resolve call per key.
	view2 := ToDense[string](context.Background(), e, chunktime.MinTemporal, chunktime.MaxTemporal, resolver)
	if view2.Len() != 1 || view2.Values[0] != "five" {
		t.Fatalf("expected row resolved on second pass, got %v", view2.Values)
	}
}

// reentrantResolver calls back into ToDense for the same Entry while
// resolving, exercising P8: this must not deadlock and must observe the
// outer call's in-progress state.
type reentrantResolver struct {
	entry    *Entry
	depth    int
	observed int
}

func (r *reentrantResolver) Resolve(ctx context.Context, p Promise) (PromiseStatus, *chunk.Cell, error) {
	tp := p.(testPromise)
	if r.depth == 0 {
		r.depth++
		inner := ToDense[string](ctx, r.entry, chunktime.MinTemporal, chunktime.MaxTemporal, r)
		r.observed = inner.Len()
	}
	cell, err := chunk.NewCell(tp.val)
	return Ready, cell, err
}

func TestToDenseReentrantDoesNotDeadlock(t *testing.T) {
	e := NewEntry(nil)
	e.AddPromiseBack(testPromise{key: rowKey(1), val: "one"})
	e.AddPromiseBack(testPromise{key: rowKey(2), val: "two"})

	r := &reentrantResolver{entry: e}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ToDense[string](context.Background(), e, chunktime.MinTemporal, chunktime.MaxTemporal, r)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ToDense deadlocked on re-entrant call")
	}
}

// TestTruncateAtTimeDropsNewerEntries grounds truncate_at_time and, in
// combination with never removing entries outside of it, P9's
// within-generation monotonicity.
func TestTruncateAtTimeDropsNewerEntries(t *testing.T) {
	e := NewEntry(nil)
	e.AddPromiseBack(testPromise{key: Key{Time: 1}, val: "a"})
	e.AddPromiseBack(testPromise{key: Key{Time: 2}, val: "b"})
	e.AddPromiseBack(testPromise{key: Key{Time: 3}, val: "c"})
	_ = ToDense[string](context.Background(), e, chunktime.MinTemporal, chunktime.MaxTemporal, staticResolver{})

	e.TruncateAtTime(2)

	view := ToDense[string](context.Background(), e, chunktime.MinTemporal, chunktime.MaxTemporal, staticResolver{})
	if view.Len() != 1 || view.Values[0] != "a" {
		t.Fatalf("expected only time=1 row to survive truncation, got %v", view.Values)
	}
}
