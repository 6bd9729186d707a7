package rangecache

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"chunkstore/internal/chunktime"
	"chunkstore/internal/logging"
	"chunkstore/internal/notify"
)

type promiseEntry struct {
	key     Key
	promise Promise
}

// Entry is the per-(entity, component) cache state described in §4.5.
// Construct with NewEntry, not a bare Entry{} literal: changed must be
// initialized.
type Entry struct {
	mu sync.RWMutex

	log *slog.Logger

	indices []Key // resolved rows, ascending
	dense   any   // []C once typed on first ToDense[C] call

	promisesFront []promiseEntry // times < indices[0], ascending
	promisesBack  []promiseEntry // times > indices[len-1], ascending

	frontStatus sideStatus
	backStatus  sideStatus

	loggedDecodeErr bool

	// changed is notified whenever a resolve pass or a truncation changes
	// this entry's state, so a caller that saw Pending on one side can
	// wait on Changed() instead of busy-polling ToDense.
	changed *notify.Signal
}

// NewEntry constructs an empty cache entry. logger may be nil.
func NewEntry(logger *slog.Logger) *Entry {
	return &Entry{
		log:     logging.Default(logger).With("component", "rangecache"),
		changed: notify.NewSignal(),
	}
}

// Changed returns a channel that is closed the next time this entry's
// resolved state changes (a promise resolves, or TruncateAtTime runs).
// Callers that see a Pending front/back status on a RangeData view should
// wait on Changed() before retrying ToDense, rather than polling.
func (e *Entry) Changed() <-chan struct{} {
	return e.changed.C()
}

// AddPromiseFront queues an unresolved row to be prepended once resolved.
// Caller must maintain ascending order across calls (it mirrors how rows
// arrive from RangeRelevantChunks).
func (e *Entry) AddPromiseFront(p Promise) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.promisesFront = append(e.promisesFront, promiseEntry{key: p.Key(), promise: p})
}

// AddPromiseBack queues an unresolved row to be appended once resolved.
func (e *Entry) AddPromiseBack(p Promise) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.promisesBack = append(e.promisesBack, promiseEntry{key: p.Key(), promise: p})
}

// entryHeldKey is the context key used to detect re-entrant ToDense calls
// on the same Entry from the same call chain — the Go stand-in for the
// source design's thread-local re-entry counter (see ToDense).
type entryHeldKey struct{}

func isHeld(ctx context.Context, e *Entry) bool {
	held, _ := ctx.Value(entryHeldKey{}).(map[*Entry]struct{})
	_, ok := held[e]
	return ok
}

func withHeld(ctx context.Context, e *Entry) context.Context {
	held, _ := ctx.Value(entryHeldKey{}).(map[*Entry]struct{})
	next := make(map[*Entry]struct{}, len(held)+1)
	for k := range held {
		next[k] = struct{}{}
	}
	next[e] = struct{}{}
	return context.WithValue(ctx, entryHeldKey{}, next)
}

// resolveFrontLocked pops front promises from the end (closest to the
// already-resolved window) until Pending/Error/exhaustion, decodes Ready
// cells into C, and prepends the result in ascending order. Caller must
// hold e.mu (write) and have already handled reentrancy.
func resolveFrontLocked[C any](ctx context.Context, e *Entry, resolver Resolver) {
	defer e.changed.Notify()
	dense := e.dense.([]C)
	var addedKeys []Key
	var addedVals []C

	for len(e.promisesFront) > 0 {
		last := e.promisesFront[len(e.promisesFront)-1]
		status, cell, err := resolver.Resolve(ctx, last.promise)
		switch status {
		case Pending:
			e.frontStatus = sideStatus{Time: last.key.Time, Status: Pending}
			goto doneFront
		case Errored:
			e.frontStatus = sideStatus{Time: last.key.Time, Status: Errored, Err: err}
			goto doneFront
		default: // Ready
			e.promisesFront = e.promisesFront[:len(e.promisesFront)-1]
			var v C
			if derr := cell.Decode(&v); derr != nil {
				if !e.loggedDecodeErr {
					e.log.Warn("rangecache: dropping row with undecodable cell", "err", derr)
					e.loggedDecodeErr = true
				}
				continue
			}
			addedKeys = append(addedKeys, last.key)
			addedVals = append(addedVals, v)
		}
	}
	if len(e.promisesFront) == 0 {
		// Exhausted without hitting a Pending/Error promise: the front is
		// fully resolved up to whatever the leftmost index now is.
		e.frontStatus = sideStatus{Status: Ready}
	}
doneFront:
	// addedKeys/addedVals were collected back-to-front; reverse to ascending
	// before prepending.
	for i, j := 0, len(addedKeys)-1; i < j; i, j = i+1, j-1 {
		addedKeys[i], addedKeys[j] = addedKeys[j], addedKeys[i]
		addedVals[i], addedVals[j] = addedVals[j], addedVals[i]
	}
	e.indices = append(addedKeys, e.indices...)
	e.dense = append(addedVals, dense...)
}

// resolveBackLocked mirrors resolveFrontLocked for the back side, popping
// from the front of promisesBack (ascending order already matches append
// order, so no reversal is needed).
func resolveBackLocked[C any](ctx context.Context, e *Entry, resolver Resolver) {
	dense := e.dense.([]C)

	for len(e.promisesBack) > 0 {
		first := e.promisesBack[0]
		status, cell, err := resolver.Resolve(ctx, first.promise)
		switch status {
		case Pending:
			e.backStatus = sideStatus{Time: first.key.Time, Status: Pending}
			e.dense = dense
			return
		case Errored:
			e.backStatus = sideStatus{Time: first.key.Time, Status: Errored, Err: err}
			e.dense = dense
			return
		default: // Ready
			e.promisesBack = e.promisesBack[1:]
			var v C
			if derr := cell.Decode(&v); derr != nil {
				if !e.loggedDecodeErr {
					e.log.Warn("rangecache: dropping row with undecodable cell", "err", derr)
					e.loggedDecodeErr = true
				}
				continue
			}
			e.indices = append(e.indices, first.key)
			dense = append(dense, v)
			e.dense = dense
		}
	}
	e.backStatus = sideStatus{Status: Ready}
	e.dense = dense
}

// TruncateAtTime discards every cached index, promise, and typed value at
// or after t, per §4.5's truncate_at_time. The store's GC does not call it:
// it drops whole entries with RangeResultCache.Invalidate.
func (e *Entry) TruncateAtTime(t chunktime.TimeInt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.changed.Notify()

	cut := len(e.indices)
	for i, k := range e.indices {
		if k.Time >= t {
			cut = i
			break
		}
	}
	e.indices = e.indices[:cut]
	if e.dense != nil {
		e.dense = truncateDense(e.dense, cut)
	}

	e.promisesFront = truncatePromises(e.promisesFront, t)
	e.promisesBack = truncatePromises(e.promisesBack, t)

	if e.frontStatus.Time >= t {
		e.frontStatus = sideStatus{Time: t, Status: Ready}
	}
	if e.backStatus.Time >= t {
		e.backStatus = sideStatus{Time: t, Status: Ready}
	}
}

func truncatePromises(ps []promiseEntry, t chunktime.TimeInt) []promiseEntry {
	out := ps[:0:0]
	for _, p := range ps {
		if p.key.Time < t {
			out = append(out, p)
		}
	}
	return out
}

// truncateDense truncates an erased []C slice (stored as any) to length n.
// The concrete element type C is only known to ToDense's caller, so this
// uses reflect rather than a type switch — TruncateAtTime is not generic
// over C, so it has no access to the cached component's decoded Go type.
func truncateDense(dense any, n int) any {
	v := reflect.ValueOf(dense)
	return v.Slice(0, n).Interface()
}
