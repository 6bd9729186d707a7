package chunk

import (
	"fmt"

	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

// ColumnInput is one caller-supplied component column: a descriptor and one
// cell per row (nil entries are nulls). len(Cells) must equal the chunk's
// row count.
type ColumnInput struct {
	Descriptor component.Descriptor
	Cells      []*Cell
}

// BuildParams are the inputs to Build.
type BuildParams struct {
	Entity entitypath.EntityPath

	// RowIDs, if non-nil, must have length N and are used verbatim.
	// Otherwise Build assigns N fresh RowIDs from gen (or the package
	// default generator if gen is nil).
	RowIDs []RowID
	Gen    *Generator

	// ChunkID, if the zero value, is assigned fresh from gen.
	ChunkID ChunkID

	// TimeColumns maps timeline name to its per-row TimeInt values (length
	// N each). A chunk with no entries here is static.
	TimeColumns map[chunktime.TimelineName]chunktime.TimeColumn

	// Components are the component columns for this chunk.
	Components []ColumnInput
}

// Build constructs a Chunk from rows already laid out in columnar form.
// Build rejects mismatched column lengths and nothing else validates
// cross-chunk type consistency — that is the store's job at insert time
// (§4.2), since a single Build call has no visibility into other chunks.
func Build(p BuildParams) (*Chunk, error) {
	if p.Entity.IsRoot() && len(p.Entity.Parts()) == 0 {
		// A root entity path ("/") is legal (it denotes the recording's
		// root object). An Entity left at its zero value is
		// indistinguishable from root, so it is accepted as root too:
		// Build rejects no entity path.
	}

	n := -1
	if p.RowIDs != nil {
		n = len(p.RowIDs)
	}
	for _, tc := range p.TimeColumns {
		if n == -1 {
			n = tc.Len()
		} else if tc.Len() != n {
			return nil, fmt.Errorf("%w: timeline %q has %d rows, want %d", ErrColumnLengthMismatch, tc.Timeline, tc.Len(), n)
		}
	}
	for _, ci := range p.Components {
		if n == -1 {
			n = len(ci.Cells)
		} else if len(ci.Cells) != n {
			return nil, fmt.Errorf("%w: component %q has %d rows, want %d", ErrColumnLengthMismatch, ci.Descriptor.Component, len(ci.Cells), n)
		}
	}
	if n == -1 {
		n = 0
	}

	rowIDs := p.RowIDs
	if rowIDs == nil {
		gen := p.Gen
		if gen == nil {
			gen = defaultGenerator
		}
		rowIDs = make([]RowID, n)
		for i := range rowIDs {
			rowIDs[i] = gen.Next()
		}
	}
	seen := make(map[RowID]struct{}, len(rowIDs))
	for _, id := range rowIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRowID, id)
		}
		seen[id] = struct{}{}
	}

	chunkID := p.ChunkID
	if chunkID.IsZero() {
		gen := p.Gen
		if gen == nil {
			gen = defaultGenerator
		}
		chunkID = gen.Next()
	}

	timelines := make([]chunktime.TimelineName, 0, len(p.TimeColumns))
	timeCols := make(map[chunktime.TimelineName]chunktime.TimeColumn, len(p.TimeColumns))
	for name, tc := range p.TimeColumns {
		timeCols[name] = tc
		timelines = append(timelines, name)
	}
	sortTimelineNames(timelines)

	components := make(map[component.Name]*componentColumn, len(p.Components))
	order := make([]component.Name, 0, len(p.Components))
	for _, ci := range p.Components {
		key := ci.Descriptor.IndexKey()
		col := &componentColumn{
			descriptor: ci.Descriptor,
			cells:      ci.Cells,
			timeRanges: make(map[chunktime.TimelineName]chunktime.ResolvedTimeRange, len(timelines)),
		}
		for name, tc := range timeCols {
			times := make([]chunktime.TimeInt, 0, n)
			for i, cell := range ci.Cells {
				if cell != nil {
					times = append(times, tc.Times[i])
				}
			}
			col.timeRanges[name] = chunktime.RangeOf(times)
		}
		if _, exists := components[key]; !exists {
			order = append(order, key)
		}
		components[key] = col
	}

	return &Chunk{
		id:             chunkID,
		entity:         p.Entity,
		rowIDs:         rowIDs,
		timeColumns:    timeCols,
		timelines:      timelines,
		components:     components,
		componentOrder: order,
	}, nil
}

func sortTimelineNames(names []chunktime.TimelineName) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}
