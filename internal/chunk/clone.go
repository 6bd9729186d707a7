package chunk

import (
	"chunkstore/internal/chunktime"
)

// CloneAs produces a logical duplicate of c with a fresh ChunkID and fresh
// RowIDs drawn from gen (the package default generator if gen is nil).
// Used by test harnesses and by compactions that need two chunks merged
// under new identifiers.
func (c *Chunk) CloneAs(newChunkID ChunkID, gen *Generator) *Chunk {
	if gen == nil {
		gen = defaultGenerator
	}
	rowIDs := make([]RowID, c.NumRows())
	for i := range rowIDs {
		rowIDs[i] = gen.Next()
	}

	timeCols := make(map[chunktime.TimelineName]chunktime.TimeColumn, len(c.timeColumns))
	for name, tc := range c.timeColumns {
		times := append([]chunktime.TimeInt(nil), tc.Times...)
		timeCols[name] = chunktime.NewTimeColumn(name, tc.Typ, times)
	}

	comps := make([]ColumnInput, 0, len(c.componentOrder))
	for _, name := range c.componentOrder {
		col := c.components[name]
		cells := make([]*Cell, len(col.cells))
		for i, cell := range col.cells {
			cells[i] = cell.Clone()
		}
		comps = append(comps, ColumnInput{Descriptor: col.descriptor, Cells: cells})
	}

	out, err := Build(BuildParams{
		Entity:      c.entity,
		RowIDs:      rowIDs,
		ChunkID:     newChunkID,
		TimeColumns: timeCols,
		Components:  comps,
	})
	if err != nil {
		panic("chunk: internal invariant violated in CloneAs: " + err.Error())
	}
	return out
}

// AreSimilar reports whether a and b agree on entity path, per-row
// component values, and per-row time values on every timeline except
// ignoreTimelines (typically a wall-clock "log_time"-style timeline),
// ignoring ChunkId and RowId entirely. Row order matters: two chunks with
// the same rows in different order are not similar.
func AreSimilar(a, b *Chunk, ignoreTimelines ...chunktime.TimelineName) bool {
	if !a.entity.Equal(b.entity) {
		return false
	}
	if a.NumRows() != b.NumRows() {
		return false
	}

	ignore := make(map[chunktime.TimelineName]bool, len(ignoreTimelines))
	for _, t := range ignoreTimelines {
		ignore[t] = true
	}

	aTimelines := filterTimelines(a.timelines, ignore)
	bTimelines := filterTimelines(b.timelines, ignore)
	if len(aTimelines) != len(bTimelines) {
		return false
	}
	for i, name := range aTimelines {
		if name != bTimelines[i] {
			return false
		}
		ta, bta := a.timeColumns[name], b.timeColumns[name]
		for row := 0; row < a.NumRows(); row++ {
			if ta.Times[row] != bta.Times[row] {
				return false
			}
		}
	}

	if len(a.componentOrder) != len(b.componentOrder) {
		return false
	}
	for i, name := range a.componentOrder {
		if name != b.componentOrder[i] {
			return false
		}
		ca, cb := a.components[name], b.components[name]
		for row := 0; row < a.NumRows(); row++ {
			va, vb := ca.cells[row], cb.cells[row]
			if (va == nil) != (vb == nil) {
				return false
			}
			if va != nil && string(va.Bytes()) != string(vb.Bytes()) {
				return false
			}
		}
	}
	return true
}

func filterTimelines(names []chunktime.TimelineName, ignore map[chunktime.TimelineName]bool) []chunktime.TimelineName {
	if len(ignore) == 0 {
		return names
	}
	out := make([]chunktime.TimelineName, 0, len(names))
	for _, n := range names {
		if !ignore[n] {
			out = append(out, n)
		}
	}
	return out
}
