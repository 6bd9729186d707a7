package store

import (
	"chunkstore/internal/changelog"
	"chunkstore/internal/chunk"
)

// GCOptions configures a GC pass.
type GCOptions struct {
	// TargetBytes is the total store size to fall under. GC stops evicting
	// once under this target (or once nothing evictable remains).
	TargetBytes int64
	// Protected row ids may not be evicted: any chunk containing one of
	// them is skipped.
	Protected map[chunk.RowID]struct{}
}

// GC evicts whole chunks (oldest-least-recently-accessed first) until the
// store's estimated size is at or under options.TargetBytes, skipping any
// chunk that contains a protected RowID. Eviction removes index entries
// only; the chunk's memory is released once every live reference (this
// Store's map entry, plus any outstanding query result holding the
// *chunk.Chunk) is dropped, which Go's GC handles for us since chunks are
// ordinary refcounted-by-pointer values here.
func (s *Store) GC(opts GCOptions) []changelog.StoreEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.evictionOrderLocked(opts.Protected)

	total := s.estimatedSizeLocked()
	var events []changelog.StoreEvent
	for _, id := range candidates {
		if total <= opts.TargetBytes {
			break
		}
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		total -= estimateBytes(c)
		events = append(events, s.dropChunkLocked(id)...)
	}
	if len(events) > 0 {
		gcID := s.gcID.Inc()
		s.rangeCache.BumpGeneration(gcID)
		s.logger.Debug("gc evicted chunks", "events", len(events), "gc_id", gcID)
	}
	return events
}

// evictionOrderLocked returns candidate chunk ids in least-recently-used
// order: chunks never returned by a query (absent from the recency
// tracker) sort first, as the most stale; the rest follow in the order
// s.recents.Keys() reports (oldest touch first). Protected chunks are
// excluded entirely.
func (s *Store) evictionOrderLocked(protected map[chunk.RowID]struct{}) []chunk.ChunkID {
	tracked := make(map[chunk.ChunkID]struct{}, s.recents.Len())
	var order []chunk.ChunkID
	for _, id := range s.recents.Keys() {
		tracked[id] = struct{}{}
	}
	for id := range s.chunks {
		if _, ok := tracked[id]; ok {
			continue
		}
		if s.chunkIsProtectedLocked(id, protected) {
			continue
		}
		order = append(order, id)
	}
	for _, id := range s.recents.Keys() {
		if _, ok := s.chunks[id]; !ok {
			continue
		}
		if s.chunkIsProtectedLocked(id, protected) {
			continue
		}
		order = append(order, id)
	}
	return order
}

func (s *Store) estimatedSizeLocked() int64 {
	var total int64
	for _, c := range s.chunks {
		total += estimateBytes(c)
	}
	return total
}

func (s *Store) chunkIsProtectedLocked(id chunk.ChunkID, protected map[chunk.RowID]struct{}) bool {
	if len(protected) == 0 {
		return false
	}
	c, ok := s.chunks[id]
	if !ok {
		return false
	}
	for _, rid := range c.RowIDs() {
		if _, ok := protected[rid]; ok {
			return true
		}
	}
	return false
}

// dropChunkLocked removes a chunk's entries from every index and emits one
// Deletion StoreEvent per cell that was indexed for it. Caller holds the
// write lock.
func (s *Store) dropChunkLocked(id chunk.ChunkID) []changelog.StoreEvent {
	c, ok := s.chunks[id]
	if !ok {
		return nil
	}
	var events []changelog.StoreEvent

	if c.IsStatic() {
		for _, comp := range c.Components() {
			key := sKey{entity: c.EntityPath().Hash(), comp: comp}
			entry, exists := s.static[key]
			if !exists || entry.ChunkID != id {
				continue
			}
			descr, _ := c.Descriptor(comp)
			events = append(events, s.newEvent(changelog.StoreDiff{
				RowID:     entry.RowID,
				Timestamp: nil,
				Entity:    c.EntityPath(),
				Component: descr,
				Cell:      c.Cell(entry.RowOffset, comp),
				Delta:     changelog.Deletion,
			}))
			delete(s.static, key)
		}
	} else {
		for _, timeline := range c.Timelines() {
			for _, comp := range c.Components() {
				key := tKey{entity: c.EntityPath().Hash(), timeline: timeline, comp: comp}
				bucket, exists := s.temporal[key]
				if !exists {
					continue
				}
				kept := bucket.entries[:0]
				for _, e := range bucket.entries {
					if e.ChunkID != id {
						kept = append(kept, e)
						continue
					}
					descr, _ := c.Descriptor(comp)
					events = append(events, s.newEvent(changelog.StoreDiff{
						RowID:     e.RowID,
						Timestamp: &changelog.Timestamp{Timeline: timeline, Time: e.Time},
						Entity:    c.EntityPath(),
						Component: descr,
						Cell:      c.Cell(e.RowOffset, comp),
						Delta:     changelog.Deletion,
					}))
				}
				bucket.entries = kept
				delete(bucket.chunks, id)
				if len(bucket.entries) == 0 {
					delete(s.temporal, key)
				}
				s.rangeCache.Invalidate(c.EntityPath(), comp)
			}
		}
	}

	for _, rid := range c.RowIDs() {
		delete(s.rowIndex, rid)
	}
	delete(s.chunks, id)
	s.recents.Remove(id)
	return events
}
