package store

import (
	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

// LatestAt resolves a full latest-at query: find the relevant chunk
// candidates, ask each for its local single-row answer, and pick the
// global winner by (time, then greatest RowID). Returns nil if no chunk
// has a value.
func (s *Store) LatestAt(q PointQuery, entity entitypath.EntityPath, comp component.Name) *chunk.Chunk {
	candidates := s.LatestAtRelevantChunks(q, entity, comp)

	var best *chunk.Chunk
	var bestTime chunktime.TimeInt
	var bestRow chunk.RowID
	haveBest := false

	for _, c := range candidates {
		row := c.LatestAt(chunk.PointQuery{Timeline: q.Timeline, At: q.At}, comp)
		if row.NumRows() == 0 {
			continue
		}
		t := chunktime.Static
		if !row.IsStatic() {
			tc, _ := row.TimeColumn(q.Timeline)
			t = tc.At(0)
		}
		rid := row.RowID(0)
		if !haveBest || t > bestTime || (t == bestTime && bestRow.Less(rid)) {
			haveBest = true
			bestTime = t
			bestRow = rid
			best = row
		}
	}
	return best
}
