// Package changelog defines the notification contract between a ChunkStore
// and its subscribers: StoreEvent, StoreDiff, and the StoreView interface
// subscribers implement.
package changelog

import (
	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

// Generation identifies a store snapshot for cache invalidation: the pair
// of monotonic insert/gc counters.
type Generation struct {
	InsertID uint64
	GCID     uint64
}

// Delta is the signed change applied to a cell: +1 for an addition, -1 for
// a deletion.
type Delta int8

const (
	Addition Delta = 1
	Deletion Delta = -1
)

// Timestamp is the (timeline, time) pair a StoreDiff is stamped with, or
// absent for a static cell.
type Timestamp struct {
	Timeline chunktime.TimelineName
	Time     chunktime.TimeInt
}

// StoreDiff is a signed, per-cell change record.
type StoreDiff struct {
	RowID     chunk.RowID
	Timestamp *Timestamp // nil = static
	Entity    entitypath.EntityPath
	Component component.Descriptor
	Cell      *chunk.Cell
	Delta     Delta
}

// StoreEvent is one notification of a store mutation.
type StoreEvent struct {
	StoreID    string
	Generation Generation
	EventID    uint64
	Diff       StoreDiff
}

// CoalesceToRows groups per-cell events from a single batch into per-row
// summaries, for subscribers that only need row-granularity. This is a
// convenience the store itself does not use — per spec.md's open question,
// the store always emits per-cell events; row-level coalescing is left to
// interested subscribers.
func CoalesceToRows(events []StoreEvent) map[chunk.RowID][]StoreEvent {
	out := make(map[chunk.RowID][]StoreEvent)
	for _, ev := range events {
		out[ev.Diff.RowID] = append(out[ev.Diff.RowID], ev)
	}
	return out
}
