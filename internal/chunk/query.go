package chunk

import (
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
)

// PointQuery selects a single instant on a timeline (or the static case).
type PointQuery struct {
	Timeline chunktime.TimelineName
	At       chunktime.TimeInt
}

// RangeQuery selects an inclusive time range on a timeline, plus whether
// static rows should be included.
type RangeQuery struct {
	Timeline      chunktime.TimelineName
	Range         chunktime.ResolvedTimeRange
	IncludeStatic bool
}

// LatestAt returns a single-row chunk containing the latest row at-or-
// before query.At on query.Timeline, restricted to non-null values of
// comp. Ties are broken by the greatest RowID. Returns an empty chunk (zero
// rows) if nothing matches.
func (c *Chunk) LatestAt(q PointQuery, comp component.Name) *Chunk {
	var bestIdx = -1
	var bestTime chunktime.TimeInt
	var bestRowID RowID

	for idx := range c.IterComponentIndices(q.Timeline, comp) {
		if idx.Time.IsStatic() {
			if !c.IsStatic() {
				continue
			}
		} else if idx.Time > q.At {
			continue
		}
		if bestIdx == -1 || idx.Time > bestTime || (idx.Time == bestTime && idx.RowID.compareGreater(bestRowID)) {
			bestTime = idx.Time
			bestRowID = idx.RowID
			bestIdx = c.rowIndexOf(idx.RowID)
		}
	}
	if bestIdx == -1 {
		return c.emptyLike()
	}
	return c.selectRows([]int{bestIdx})
}

// compareGreater reports whether id sorts strictly after o — used to apply
// the "greater RowID wins" tie-break without re-deriving Less everywhere.
func (id ID) compareGreater(o ID) bool { return o.Less(id) }

// RowIndexOf finds the row position for a RowID, or -1 if absent. Chunks
// are typically small enough (bounded by batcher thresholds) that a linear
// scan here is acceptable; callers that need this on a hot path should
// prefer iterating indices directly instead of round-tripping through a
// RowID.
func (c *Chunk) RowIndexOf(id RowID) int {
	for i, rid := range c.rowIDs {
		if rid == id {
			return i
		}
	}
	return -1
}

func (c *Chunk) rowIndexOf(id RowID) int { return c.RowIndexOf(id) }

// Range returns a chunk restricted to the inclusive time range on
// q.Timeline, for rows where comp is non-null, preserving original row
// order. Static rows are included iff the chunk is static (an "all
// components" range query passes IncludeStatic through its own static
// chunk set instead of calling this method on a temporal chunk).
func (c *Chunk) Range(q RangeQuery, comp component.Name) *Chunk {
	if c.IsStatic() {
		if !q.IncludeStatic {
			return c.emptyLike()
		}
		var keep []int
		col, ok := c.components[comp]
		if ok {
			for i, cell := range col.cells {
				if cell != nil {
					keep = append(keep, i)
				}
			}
		}
		return c.selectRows(keep)
	}

	tc, ok := c.timeColumns[q.Timeline]
	if !ok {
		return c.emptyLike()
	}
	col, ok := c.components[comp]
	if !ok {
		return c.emptyLike()
	}
	var keep []int
	for i, cell := range col.cells {
		if cell == nil {
			continue
		}
		t := tc.Times[i]
		if t >= q.Range.Min && t <= q.Range.Max {
			keep = append(keep, i)
		}
	}
	return c.selectRows(keep)
}

// emptyLike returns a zero-row chunk sharing this chunk's entity path and
// schema (timelines/components present), but no rows and a fresh ChunkID.
func (c *Chunk) emptyLike() *Chunk {
	return c.selectRows(nil)
}

// selectRows builds a new Chunk containing exactly the given row indices,
// in the given order, with a fresh ChunkID but the original RowIDs.
func (c *Chunk) selectRows(indices []int) *Chunk {
	n := len(indices)
	rowIDs := make([]RowID, n)
	for i, idx := range indices {
		rowIDs[i] = c.rowIDs[idx]
	}

	timeCols := make(map[chunktime.TimelineName]chunktime.TimeColumn, len(c.timeColumns))
	for name, tc := range c.timeColumns {
		times := make([]chunktime.TimeInt, n)
		for i, idx := range indices {
			times[i] = tc.Times[idx]
		}
		timeCols[name] = chunktime.NewTimeColumn(name, tc.Typ, times)
	}

	comps := make([]ColumnInput, 0, len(c.componentOrder))
	for _, name := range c.componentOrder {
		col := c.components[name]
		cells := make([]*Cell, n)
		for i, idx := range indices {
			cells[i] = col.cells[idx]
		}
		comps = append(comps, ColumnInput{Descriptor: col.descriptor, Cells: cells})
	}

	out, err := Build(BuildParams{
		Entity:      c.entity,
		RowIDs:      rowIDs,
		TimeColumns: timeCols,
		Components:  comps,
	})
	if err != nil {
		// selectRows only ever reslices already-consistent columns, so this
		// can't fail; a panic here would indicate a Chunk invariant was
		// already broken before this call.
		panic("chunk: internal invariant violated in selectRows: " + err.Error())
	}
	return out
}
