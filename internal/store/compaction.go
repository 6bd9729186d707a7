package store

import (
	"chunkstore/internal/changelog"
	"chunkstore/internal/chunk"
)

// CompactionPolicy gates whether InsertChunk tries to merge a newly
// inserted chunk with a recent neighbor on the same entity.
type CompactionPolicy struct {
	Enabled           bool
	MaxRows           int
	MaxRowsIfUnsorted int
	MaxBytes          int64
}

// DisabledCompaction returns a policy that never compacts.
func DisabledCompaction() CompactionPolicy { return CompactionPolicy{} }

// NewCompactionPolicy returns an enabled policy with the given thresholds.
func NewCompactionPolicy(maxRows, maxRowsIfUnsorted int, maxBytes int64) CompactionPolicy {
	return CompactionPolicy{Enabled: true, MaxRows: maxRows, MaxRowsIfUnsorted: maxRowsIfUnsorted, MaxBytes: maxBytes}
}

// estimateBytes gives a rough size estimate for a chunk, used only to
// compare against MaxBytes; exactness doesn't matter, monotonicity does.
func estimateBytes(c *chunk.Chunk) int64 {
	var total int64
	total += int64(c.NumRows()) * 16 // row ids
	for _, name := range c.Timelines() {
		tc, _ := c.TimeColumn(name)
		total += int64(tc.Len()) * 8
	}
	for _, name := range c.Components() {
		for i := 0; i < c.NumRows(); i++ {
			if cell := c.Cell(i, name); cell != nil {
				total += int64(len(cell.Bytes()))
			}
		}
	}
	return total
}

// findMergeCandidateLocked returns a chunk on the same entity as c that is
// compaction-eligible with it, or nil. Among eligible chunks it prefers the
// one most recently returned by a query (per the recency tracker); which of
// several equally recent candidates is chosen is not defined.
func (s *Store) findMergeCandidateLocked(c *chunk.Chunk) *chunk.Chunk {
	if !s.compaction.Enabled {
		return nil
	}
	var best *chunk.Chunk
	var bestSeq uint64
	for id, other := range s.chunks {
		if !other.EntityPath().Equal(c.EntityPath()) {
			continue
		}
		if other.IsStatic() != c.IsStatic() {
			continue
		}
		if !sameTimelines(other, c) {
			continue
		}
		combinedRows := other.NumRows() + c.NumRows()
		maxRows := s.compaction.MaxRows
		if !other.IsStatic() {
			for _, name := range other.Timelines() {
				tc, _ := other.TimeColumn(name)
				if !tc.Sorted {
					maxRows = s.compaction.MaxRowsIfUnsorted
					break
				}
			}
		}
		if combinedRows > maxRows {
			continue
		}
		if estimateBytes(other)+estimateBytes(c) > s.compaction.MaxBytes {
			continue
		}
		seq, _ := s.recents.Peek(id)
		if best == nil || seq >= bestSeq {
			best = other
			bestSeq = seq
		}
	}
	return best
}

func sameTimelines(a, b *chunk.Chunk) bool {
	at, bt := a.Timelines(), b.Timelines()
	if len(at) != len(bt) {
		return false
	}
	for i := range at {
		if at[i] != bt[i] {
			return false
		}
	}
	return true
}

// tryCompactLocked attempts to merge candidate into the incoming chunk c.
// On success it drops candidate's index entries (emitting one Deletion
// event per cell) and indexes the merged chunk (emitting one Addition
// event per cell), and returns the combined events. The caller must NOT
// also index c standalone in that case.
func (s *Store) tryCompactLocked(c *chunk.Chunk) (*chunk.Chunk, []changelog.StoreEvent) {
	candidate := s.findMergeCandidateLocked(c)
	if candidate == nil {
		return nil, nil
	}
	merged, err := chunk.Merge([]*chunk.Chunk{candidate, c}, nil)
	if err != nil {
		s.logger.Warn("compaction merge failed, inserting chunk standalone", "error", err)
		return nil, nil
	}

	var events []changelog.StoreEvent
	events = append(events, s.dropChunkLocked(candidate.ID())...)
	events = append(events, s.indexChunkLocked(merged)...)
	return merged, events
}
