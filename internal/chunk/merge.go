package chunk

import (
	"fmt"

	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
)

// Merge concatenates chunks (in the given order) into a single new chunk
// with a fresh ChunkID, used by the store's compaction path. All chunks
// must share an entity path, must agree on static-ness, and must carry the
// identical set of timelines (the store only offers a merge candidate that
// already satisfies this, per its compaction policy). Component columns
// are unioned; rows from a chunk lacking a given component are filled with
// nulls, preserving the invariant that every component column spans every
// row.
func Merge(chunks []*Chunk, gen *Generator) (*Chunk, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("chunk: Merge requires at least one chunk")
	}
	first := chunks[0]
	for _, c := range chunks[1:] {
		if !c.entity.Equal(first.entity) {
			return nil, fmt.Errorf("chunk: Merge requires identical entity paths")
		}
		if c.IsStatic() != first.IsStatic() {
			return nil, fmt.Errorf("chunk: Merge cannot cross the static/temporal boundary")
		}
		if !sameTimelineSet(c.timelines, first.timelines) {
			return nil, fmt.Errorf("chunk: Merge requires identical timeline sets")
		}
	}

	totalRows := 0
	for _, c := range chunks {
		totalRows += c.NumRows()
	}

	rowIDs := make([]RowID, 0, totalRows)
	timeCols := make(map[chunktime.TimelineName][]chunktime.TimeInt, len(first.timelines))
	for _, name := range first.timelines {
		timeCols[name] = make([]chunktime.TimeInt, 0, totalRows)
	}

	descriptors := make(map[component.Name]component.Descriptor)
	var order []component.Name
	for _, c := range chunks {
		for _, name := range c.componentOrder {
			if _, ok := descriptors[name]; !ok {
				order = append(order, name)
			}
			descriptors[name] = c.components[name].descriptor
		}
	}
	cells := make(map[component.Name][]*Cell, len(order))
	for _, name := range order {
		cells[name] = make([]*Cell, 0, totalRows)
	}

	for _, c := range chunks {
		rowIDs = append(rowIDs, c.rowIDs...)
		for _, name := range first.timelines {
			tc := c.timeColumns[name]
			timeCols[name] = append(timeCols[name], tc.Times...)
		}
		for _, name := range order {
			col, ok := c.components[name]
			if !ok {
				for range c.rowIDs {
					cells[name] = append(cells[name], nil)
				}
				continue
			}
			cells[name] = append(cells[name], col.cells...)
		}
	}

	builtTimeCols := make(map[chunktime.TimelineName]chunktime.TimeColumn, len(timeCols))
	for name, times := range timeCols {
		builtTimeCols[name] = chunktime.NewTimeColumn(name, first.timeColumns[name].Typ, times)
	}

	var inputs []ColumnInput
	for _, name := range order {
		inputs = append(inputs, ColumnInput{Descriptor: descriptors[name], Cells: cells[name]})
	}

	return Build(BuildParams{
		Entity:      first.entity,
		RowIDs:      rowIDs,
		Gen:         gen,
		TimeColumns: builtTimeCols,
		Components:  inputs,
	})
}

func sameTimelineSet(a, b []chunktime.TimelineName) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
