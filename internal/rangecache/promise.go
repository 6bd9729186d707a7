// Package rangecache implements the query-side range result cache: per
// (entity, component) windows of decoded values, built incrementally from
// Promises and safe under re-entrant, concurrent access (§4.5).
package rangecache

import (
	"context"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
)

// Key identifies one row's position within a cached range: its time value
// and RowID, which together give a total order even when several rows
// share a timestamp.
type Key struct {
	Time chunktime.TimeInt
	Row  chunk.RowID
}

// Less orders two keys first by time, then by RowID, matching the store's
// own row ordering.
func (k Key) Less(o Key) bool {
	if k.Time != o.Time {
		return k.Time < o.Time
	}
	return k.Row.Less(o.Row)
}

// PromiseStatus is the three-way outcome of resolving a Promise.
type PromiseStatus int

const (
	Pending PromiseStatus = iota
	Ready
	Errored
)

func (s PromiseStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Promise is an opaque deferred cell resolution: a row the cache knows
// about but has not yet decoded.
type Promise interface {
	Key() Key
}

// Resolver turns a Promise into its current status. ctx carries the
// re-entrancy marker (see ToDense) and must be threaded through if the
// resolver itself calls back into ToDense for the same or another entry.
type Resolver interface {
	Resolve(ctx context.Context, p Promise) (PromiseStatus, *chunk.Cell, error)
}

// sideStatus records the farthest-known-good time on one side of the
// cached window, plus that side's resolution status.
type sideStatus struct {
	Time   chunktime.TimeInt
	Status PromiseStatus
	Err    error
}
