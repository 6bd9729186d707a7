package store

import (
	"sort"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

// PointQuery selects an instant on a timeline.
type PointQuery struct {
	Timeline chunktime.TimelineName
	At       chunktime.TimeInt
}

// RangeQuery selects an inclusive range on a timeline.
type RangeQuery struct {
	Timeline      chunktime.TimelineName
	Range         chunktime.ResolvedTimeRange
	IncludeStatic bool
}

// LatestAtRelevantChunks returns the minimal set of chunks that could
// satisfy a latest-at query for (entity, component) on query.Timeline.
// Static data shadows temporal data: if a static entry exists it is
// returned alone.
func (s *Store) LatestAtRelevantChunks(q PointQuery, entity entitypath.EntityPath, comp component.Name) []*chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	entityHash := entity.Hash()
	if entry, ok := s.static[sKey{entity: entityHash, comp: comp}]; ok {
		if c, ok := s.chunks[entry.ChunkID]; ok {
			s.touch(c.ID())
			return []*chunk.Chunk{c}
		}
	}

	bucket, ok := s.temporal[tKey{entity: entityHash, timeline: q.Timeline, comp: comp}]
	if !ok {
		return nil
	}

	// Greatest recorded time <= q.At.
	entries := bucket.entries
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Time > q.At })
	if i == 0 {
		return nil
	}
	t0 := entries[i-1].Time

	var out []*chunk.Chunk
	for id := range bucket.chunks {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		r, ok := c.ComponentTimeRange(q.Timeline, comp)
		if !ok || !r.Contains(t0) {
			continue
		}
		out = append(out, c)
		s.touch(id)
	}
	sortChunksByID(out)
	return out
}

// LatestAtRelevantChunksForAllComponents unions the relevant-chunk sets
// for every component known at entity, optionally including the static
// index.
func (s *Store) LatestAtRelevantChunksForAllComponents(q PointQuery, entity entitypath.EntityPath, includeStatic bool) []*chunk.Chunk {
	s.mu.RLock()
	entityHash := entity.Hash()
	var comps []component.Name
	if tlMap, ok := s.entityComponents[entityHash]; ok {
		if compSet, ok := tlMap[q.Timeline]; ok {
			for c := range compSet {
				comps = append(comps, c)
			}
		}
	}
	var staticComps []component.Name
	if includeStatic {
		if set, ok := s.entityComponentsStatic[entityHash]; ok {
			for c := range set {
				staticComps = append(staticComps, c)
			}
		}
	}
	s.mu.RUnlock()

	seen := make(map[chunk.ChunkID]struct{})
	var out []*chunk.Chunk
	for _, comp := range comps {
		for _, c := range s.LatestAtRelevantChunks(q, entity, comp) {
			if _, dup := seen[c.ID()]; dup {
				continue
			}
			seen[c.ID()] = struct{}{}
			out = append(out, c)
		}
	}
	if includeStatic {
		s.mu.Lock()
		for _, comp := range staticComps {
			entry, ok := s.static[sKey{entity: entityHash, comp: comp}]
			if !ok {
				continue
			}
			if _, dup := seen[entry.ChunkID]; dup {
				continue
			}
			if c, ok := s.chunks[entry.ChunkID]; ok {
				seen[entry.ChunkID] = struct{}{}
				out = append(out, c)
				s.touch(c.ID())
			}
		}
		s.mu.Unlock()
	}
	sortChunksByID(out)
	return out
}

// RangeRelevantChunks returns every chunk whose per-component time range on
// query.Timeline overlaps the requested range, plus the static chunk for
// (entity, component) if present (the component variant always includes
// static data, since a static value logically covers every time).
func (s *Store) RangeRelevantChunks(q RangeQuery, entity entitypath.EntityPath, comp component.Name) []*chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*chunk.Chunk
	entityHash := entity.Hash()
	if entry, ok := s.static[sKey{entity: entityHash, comp: comp}]; ok {
		if c, ok := s.chunks[entry.ChunkID]; ok {
			out = append(out, c)
			s.touch(c.ID())
		}
	}

	bucket, ok := s.temporal[tKey{entity: entityHash, timeline: q.Timeline, comp: comp}]
	if !ok {
		sortChunksByID(out)
		return out
	}
	for id := range bucket.chunks {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		r, ok := c.ComponentTimeRange(q.Timeline, comp)
		if !ok || !r.Overlaps(q.Range) {
			continue
		}
		out = append(out, c)
		s.touch(id)
	}
	sortChunksByID(out)
	return out
}

// AllComponentsOnTimelineSorted returns the sorted set of components ever
// observed on (entity, timeline), or ok=false if the entity has no data on
// that timeline at all.
func (s *Store) AllComponentsOnTimelineSorted(timeline chunktime.TimelineName, entity entitypath.EntityPath) ([]component.Name, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tlMap, ok := s.entityComponents[entity.Hash()]
	if !ok {
		return nil, false
	}
	compSet, ok := tlMap[timeline]
	if !ok {
		return nil, false
	}
	out := make([]component.Name, 0, len(compSet))
	for c := range compSet {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, true
}

func sortChunksByID(chunks []*chunk.Chunk) {
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID().Less(chunks[j].ID()) })
}
