package rangecache

import (
	"context"

	"chunkstore/internal/chunktime"
)

// RangeData is the read-only view to_dense returns: a bounded slice of
// already-resolved (Key, value) pairs plus each side's status relative to
// the caller's query bounds.
type RangeData[C any] struct {
	Keys   []Key
	Values []C

	FrontStatus PromiseStatus
	FrontErr    error
	BackStatus  PromiseStatus
	BackErr     error
}

func emptyRangeData[C any]() RangeData[C] {
	return RangeData[C]{FrontStatus: Ready, BackStatus: Ready}
}

// Len reports how many resolved rows fall in the requested window.
func (r RangeData[C]) Len() int { return len(r.Keys) }

// ToDense implements §4.5's to_dense::<C>(resolver) operation: it resolves
// as many pending front/back promises as the resolver currently allows,
// then returns the slice of the entry's resolved window that falls within
// [qStart, qEnd].
//
// ctx carries the re-entrancy marker: a resolver that calls back into
// ToDense for the same Entry (directly or through another Entry that
// shares a lock ordering with it) must pass the ctx it was given, so the
// inner call can detect it is already running under the outer call's
// write lock and skip re-acquiring it — the Go substitute for the source
// design's thread-local re-entry counter, since Go has no implicit
// thread-local storage and the call chain is exactly what context.Context
// is for.
func ToDense[C any](ctx context.Context, e *Entry, qStart, qEnd chunktime.TimeInt, resolver Resolver) RangeData[C] {
	if qStart > qEnd {
		return emptyRangeData[C]()
	}

	reentrant := isHeld(ctx, e)
	if !reentrant {
		e.mu.Lock()
		ctx = withHeld(ctx, e)
		if e.dense == nil {
			e.dense = []C{}
		}
		resolveFrontLocked[C](ctx, e, resolver)
		resolveBackLocked[C](ctx, e, resolver)
		e.mu.Unlock()
	}

	if reentrant {
		return buildView[C](e, qStart, qEnd)
	}
	e.mu.RLock()
	view := buildView[C](e, qStart, qEnd)
	e.mu.RUnlock()
	return view
}

// buildView computes the bounded [qStart, qEnd] slice of e.indices/e.dense
// via two partition points, and maps the recorded side-statuses against
// the query bounds per step 6.
func buildView[C any](e *Entry, qStart, qEnd chunktime.TimeInt) RangeData[C] {
	dense, _ := e.dense.([]C)

	start := partitionPoint(e.indices, func(k Key) bool { return k.Time < qStart })
	end := partitionPoint(e.indices, func(k Key) bool { return k.Time <= qEnd })

	view := RangeData[C]{
		Keys:        append([]Key(nil), e.indices[start:end]...),
		Values:      append([]C(nil), dense[start:end]...),
		FrontStatus: Ready,
		BackStatus:  Ready,
	}

	// If the query reaches past what's resolved on a side, that side's
	// outstanding status (Pending/Error) is visible to the caller instead
	// of silently reporting "no data".
	if len(e.indices) == 0 || qStart < e.indices[0].Time {
		view.FrontStatus = e.frontStatus.Status
		view.FrontErr = e.frontStatus.Err
	}
	if len(e.indices) == 0 || qEnd > e.indices[len(e.indices)-1].Time {
		view.BackStatus = e.backStatus.Status
		view.BackErr = e.backStatus.Err
	}
	return view
}

// partitionPoint returns the smallest index i such that pred(indices[i])
// is false (indices is assumed sorted so that pred is true for a prefix).
func partitionPoint(indices []Key, pred func(Key) bool) int {
	lo, hi := 0, len(indices)
	for lo < hi {
		mid := (lo + hi) / 2
		if pred(indices[mid]) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
