// Package chunk defines Chunk, the immutable columnar batch that is the
// atomic unit of storage: one entity path, N rows, a time column per
// timeline present, and a component column per logged component.
package chunk

import (
	"fmt"
	"sort"

	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

// componentColumn is one component's list-array: exactly Len(rowIDs)
// entries, nil meaning "no value for this row".
type componentColumn struct {
	descriptor component.Descriptor
	cells      []*Cell
	// timeRanges caches, per timeline present on the chunk, the
	// ResolvedTimeRange spanned by this column's non-null rows. This is the
	// per-component (not per-chunk) range the store relies on to avoid
	// scanning (§4.2).
	timeRanges map[chunktime.TimelineName]chunktime.ResolvedTimeRange
}

// Chunk is an immutable columnar batch of rows for a single entity path.
// Once built, a Chunk is never mutated; "modifications" at the store layer
// are always new chunks replacing old ChunkIDs.
type Chunk struct {
	id     ChunkID
	entity entitypath.EntityPath

	rowIDs []RowID

	// timeColumns is nil/empty for a static chunk.
	timeColumns map[chunktime.TimelineName]chunktime.TimeColumn
	timelines   []chunktime.TimelineName // sorted by name for deterministic iteration

	components     map[component.Name]*componentColumn
	componentOrder []component.Name
}

// ID returns the chunk's identifier.
func (c *Chunk) ID() ChunkID { return c.id }

// EntityPath returns the chunk's single entity path.
func (c *Chunk) EntityPath() entitypath.EntityPath { return c.entity }

// NumRows returns the number of rows in the chunk.
func (c *Chunk) NumRows() int { return len(c.rowIDs) }

// IsStatic reports whether the chunk carries zero timelines.
func (c *Chunk) IsStatic() bool { return len(c.timeColumns) == 0 }

// Timelines returns the timelines present on the chunk, sorted by name.
func (c *Chunk) Timelines() []chunktime.TimelineName {
	return append([]chunktime.TimelineName(nil), c.timelines...)
}

// TimeColumn returns the TimeColumn for a timeline, and whether it is present.
func (c *Chunk) TimeColumn(timeline chunktime.TimelineName) (chunktime.TimeColumn, bool) {
	tc, ok := c.timeColumns[timeline]
	return tc, ok
}

// Components returns the components present on the chunk, in the order first seen.
func (c *Chunk) Components() []component.Name {
	return append([]component.Name(nil), c.componentOrder...)
}

// Descriptor returns the descriptor recorded for a component column.
func (c *Chunk) Descriptor(comp component.Name) (component.Descriptor, bool) {
	col, ok := c.components[comp]
	if !ok {
		return component.Descriptor{}, false
	}
	return col.descriptor, true
}

// ComponentTimeRange returns the cached per-(timeline,component) time range,
// used by the store to answer queries without scanning.
func (c *Chunk) ComponentTimeRange(timeline chunktime.TimelineName, comp component.Name) (chunktime.ResolvedTimeRange, bool) {
	col, ok := c.components[comp]
	if !ok {
		return chunktime.ResolvedTimeRange{}, false
	}
	r, ok := col.timeRanges[timeline]
	return r, ok
}

// RowIDs returns the chunk's row ids in stored order.
func (c *Chunk) RowIDs() []RowID { return append([]RowID(nil), c.rowIDs...) }

// RowID returns the row id at position i.
func (c *Chunk) RowID(i int) RowID { return c.rowIDs[i] }

// Cell returns the cell for (row i, component comp), or nil if absent or
// the component is not present on the chunk at all.
func (c *Chunk) Cell(i int, comp component.Name) *Cell {
	col, ok := c.components[comp]
	if !ok {
		return nil
	}
	return col.cells[i]
}

// HasComponent reports whether the chunk has a column for comp.
func (c *Chunk) HasComponent(comp component.Name) bool {
	_, ok := c.components[comp]
	return ok
}

// String renders a short debug summary.
func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk{id=%s, entity=%s, rows=%d, timelines=%v, components=%v}",
		c.id, c.entity, len(c.rowIDs), c.timelines, c.componentOrder)
}

// sortRowsByTime returns a permutation of row indices sorted ascending by
// (time on timeline, RowID). Build, Range and LatestAt do not call it.
func sortRowsByTime(tc chunktime.TimeColumn, rowIDs []RowID) []int {
	idx := make([]int, len(rowIDs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, tb := tc.Times[idx[a]], tc.Times[idx[b]]
		if ta != tb {
			return ta < tb
		}
		return rowIDs[idx[a]].Less(rowIDs[idx[b]])
	})
	return idx
}
