// Package store implements ChunkStore: the columnar, immutable-chunk
// storage indexed by entity path, timeline, and component, supporting
// latest-at and range queries, compaction, and garbage collection.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"

	"chunkstore/internal/changelog"
	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
	"chunkstore/internal/logging"
	"chunkstore/internal/rangecache"
)

// indexEntry is one row's position inside the temporal or static index.
type indexEntry struct {
	Time      chunktime.TimeInt
	RowID     chunk.RowID
	ChunkID   chunk.ChunkID
	RowOffset int
}

// tKey identifies one (entity, timeline, component) temporal index bucket.
type tKey struct {
	entity   uint64
	timeline chunktime.TimelineName
	comp     component.Name
}

// sKey identifies one (entity, component) static index slot.
type sKey struct {
	entity uint64
	comp   component.Name
}

type temporalBucket struct {
	entries []indexEntry // sorted by (Time, RowID)
	chunks  map[chunk.ChunkID]struct{}
}

// Config configures a new Store.
type Config struct {
	StoreID    string
	Logger     *slog.Logger
	Compaction CompactionPolicy
	// RecencyCacheSize bounds how many chunks' recency is tracked for GC's
	// least-recently-accessed ordering. Defaults to defaultRecencyCacheSize.
	// A chunk that falls out of this tracker (because the store holds more
	// chunks than this) is treated as never accessed, i.e. the most
	// eligible for eviction — the approximation degrades gracefully in
	// exactly the direction GC already wants.
	RecencyCacheSize int
}

// defaultRecencyCacheSize is generous relative to the chunk counts GC is
// expected to keep a store under in practice.
const defaultRecencyCacheSize = 100_000

// Store is the chunk store. Interior mutability is guarded by a single
// read-write lock: InsertChunk, GC, and the relevant-chunk queries
// (which record each returned chunk's access in the recency tracker) take
// the write lock; read-only accessors take the read lock.
type Store struct {
	mu sync.RWMutex

	id         string
	logger     *slog.Logger
	compaction CompactionPolicy

	chunks map[chunk.ChunkID]*chunk.Chunk

	temporal map[tKey]*temporalBucket
	static   map[sKey]indexEntry

	// timelineTypes records the TimeType each timeline name was first seen
	// with; later chunks using a different type for the same name are
	// rejected.
	timelineTypes map[chunktime.TimelineName]chunktime.TimeType

	// entityComponents tracks, per entity and timeline, every component
	// ever observed (temporal data). entityComponentsStatic tracks the
	// same for static data.
	entityComponents       map[uint64]map[chunktime.TimelineName]map[component.Name]struct{}
	entityComponentsStatic map[uint64]map[component.Name]struct{}
	entityPaths            map[uint64]entitypath.EntityPath

	rowIndex map[chunk.RowID]chunk.ChunkID

	accessSeq atomic.Uint64
	// recents tracks chunk access recency for GC's eviction order and
	// compaction's merge-candidate preference: key is ChunkID, value is
	// the accessSeq at last touch.
	recents *lru.Cache[chunk.ChunkID, uint64]

	// insertID/gcID/eventID are only ever mutated under mu, but are typed
	// as atomics (matching how the rest of the pack treats hot per-store
	// counters) so Generation() and newEvent() can read them without
	// depending on the caller already holding the right lock flavor.
	insertID atomic.Uint64
	gcID     atomic.Uint64
	eventID  atomic.Uint64

	subscribers *changelog.Registry
	rangeCache  *rangecache.RangeResultCache
}

// New constructs an empty Store.
func New(cfg Config) *Store {
	logger := logging.Default(cfg.Logger).With("component", "chunk-store", "store_id", cfg.StoreID)
	compaction := cfg.Compaction
	if compaction == (CompactionPolicy{}) {
		compaction = DisabledCompaction()
	}
	size := cfg.RecencyCacheSize
	if size <= 0 {
		size = defaultRecencyCacheSize
	}
	recents, err := lru.New[chunk.ChunkID, uint64](size)
	if err != nil {
		// Only possible if size <= 0, which is excluded above.
		panic(fmt.Sprintf("store: recency cache: %v", err))
	}
	return &Store{
		id:                     cfg.StoreID,
		logger:                 logger,
		compaction:             compaction,
		chunks:                 make(map[chunk.ChunkID]*chunk.Chunk),
		temporal:               make(map[tKey]*temporalBucket),
		static:                 make(map[sKey]indexEntry),
		timelineTypes:          make(map[chunktime.TimelineName]chunktime.TimeType),
		entityComponents:       make(map[uint64]map[chunktime.TimelineName]map[component.Name]struct{}),
		entityComponentsStatic: make(map[uint64]map[component.Name]struct{}),
		entityPaths:            make(map[uint64]entitypath.EntityPath),
		rowIndex:               make(map[chunk.RowID]chunk.ChunkID),
		recents:                recents,
		subscribers:            changelog.NewRegistry(logger),
		rangeCache:             rangecache.New(logger),
	}
}

// RangeCache returns the store's range-result cache (§4.5), shared across
// every caller of this Store: the same Entry is returned for repeated
// calls on the same (entity, component) pair, so concurrent range queries
// reuse each other's resolved work.
func (s *Store) RangeCache() *rangecache.RangeResultCache { return s.rangeCache }

// Subscribe registers a subscriber; see changelog.Registry.Register.
func (s *Store) Subscribe(v changelog.StoreView) bool { return s.subscribers.Register(v) }

// Unsubscribe removes a subscriber by name.
func (s *Store) Unsubscribe(name string) { s.subscribers.Unregister(name) }

// Generation returns the current StoreGeneration.
func (s *Store) Generation() changelog.Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return changelog.Generation{InsertID: s.insertID.Load(), GCID: s.gcID.Load()}
}

// Chunk returns a chunk by id.
func (s *Store) Chunk(id chunk.ChunkID) (*chunk.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	return c, ok
}

// Chunks returns every chunk currently held by the store, ordered by
// ChunkID (so by creation time). Used by offline tools (cmd/chunkstore)
// that need to re-emit or inspect the full contents of a store.
func (s *Store) Chunks() []*chunk.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*chunk.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID().Less(out[j].ID()) })
	return out
}

// InsertChunk registers c with the store, updating every index it
// participates in, optionally compacting, and returns the StoreEvents the
// mutation produced.
func (s *Store) InsertChunk(c *chunk.Chunk) ([]changelog.StoreEvent, error) {
	if c.NumRows() == 0 {
		return nil, nil // silently no-op per §4.2 failure table
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateLocked(c); err != nil {
		return nil, err
	}

	var events []changelog.StoreEvent
	if merged, compactionEvents := s.tryCompactLocked(c); merged != nil {
		// The candidate neighbor was dropped and the merger indexed in its
		// place; c itself must not also be indexed standalone.
		events = compactionEvents
	} else {
		events = s.indexChunkLocked(c)
	}

	s.insertID.Inc()
	s.logger.Debug("inserted chunk", "chunk_id", c.ID().String(), "entity", c.EntityPath().String(), "rows", c.NumRows(), "events", len(events))
	s.subscribers.Dispatch(events)
	return events, nil
}

func (s *Store) validateLocked(c *chunk.Chunk) error {
	for _, rid := range c.RowIDs() {
		if owner, exists := s.rowIndex[rid]; exists && owner != c.ID() {
			return fmt.Errorf("%w: row %s already belongs to chunk %s", chunk.ErrRowIDCollision, rid, owner)
		}
	}
	for _, name := range c.Timelines() {
		tc, _ := c.TimeColumn(name)
		if existing, seen := s.timelineTypes[name]; seen && existing != tc.Typ {
			return fmt.Errorf("%w: timeline %q previously %v, chunk uses %v", chunk.ErrTimelineTypeConflict, name, existing, tc.Typ)
		}
	}
	return nil
}

func (s *Store) indexChunkLocked(c *chunk.Chunk) []changelog.StoreEvent {
	s.chunks[c.ID()] = c
	for _, rid := range c.RowIDs() {
		s.rowIndex[rid] = c.ID()
	}
	for _, name := range c.Timelines() {
		tc, _ := c.TimeColumn(name)
		s.timelineTypes[name] = tc.Typ
	}

	entityHash := c.EntityPath().Hash()
	s.entityPaths[entityHash] = c.EntityPath()

	var events []changelog.StoreEvent

	if c.IsStatic() {
		for _, comp := range c.Components() {
			events = append(events, s.indexStaticComponentLocked(c, comp)...)
		}
		return events
	}

	for _, timeline := range c.Timelines() {
		for _, comp := range c.Components() {
			events = append(events, s.indexTemporalComponentLocked(c, timeline, comp)...)
		}
	}
	return events
}

func (s *Store) indexTemporalComponentLocked(c *chunk.Chunk, timeline chunktime.TimelineName, comp component.Name) []changelog.StoreEvent {
	var entries []indexEntry
	var events []changelog.StoreEvent
	for idx := range c.IterComponentIndices(timeline, comp) {
		entries = append(entries, indexEntry{Time: idx.Time, RowID: idx.RowID, ChunkID: c.ID(), RowOffset: c.RowIndexOf(idx.RowID)})
		descr, _ := c.Descriptor(comp)
		events = append(events, s.newEvent(changelog.StoreDiff{
			RowID:     idx.RowID,
			Timestamp: &changelog.Timestamp{Timeline: timeline, Time: idx.Time},
			Entity:    c.EntityPath(),
			Component: descr,
			Cell:      c.Cell(c.RowIndexOf(idx.RowID), comp),
			Delta:     changelog.Addition,
		}))
	}
	if len(entries) == 0 {
		return nil
	}

	key := tKey{entity: c.EntityPath().Hash(), timeline: timeline, comp: comp}
	bucket, ok := s.temporal[key]
	if !ok {
		bucket = &temporalBucket{chunks: make(map[chunk.ChunkID]struct{})}
		s.temporal[key] = bucket
	}
	bucket.entries = append(bucket.entries, entries...)
	sort.Slice(bucket.entries, func(i, j int) bool {
		if bucket.entries[i].Time != bucket.entries[j].Time {
			return bucket.entries[i].Time < bucket.entries[j].Time
		}
		return bucket.entries[i].RowID.Less(bucket.entries[j].RowID)
	})
	bucket.chunks[c.ID()] = struct{}{}

	entityHash := c.EntityPath().Hash()
	tlMap, ok := s.entityComponents[entityHash]
	if !ok {
		tlMap = make(map[chunktime.TimelineName]map[component.Name]struct{})
		s.entityComponents[entityHash] = tlMap
	}
	compSet, ok := tlMap[timeline]
	if !ok {
		compSet = make(map[component.Name]struct{})
		tlMap[timeline] = compSet
	}
	compSet[comp] = struct{}{}

	return events
}

func (s *Store) indexStaticComponentLocked(c *chunk.Chunk, comp component.Name) []changelog.StoreEvent {
	var events []changelog.StoreEvent
	entityHash := c.EntityPath().Hash()
	key := sKey{entity: entityHash, comp: comp}

	// Find the row for this component (static chunks are logically
	// single-valued per component, but Build allows multiple rows; the
	// last non-null row wins, matching "replaced on each static write").
	var newEntry *indexEntry
	for idx := range c.IterComponentIndices("", comp) {
		pos := c.RowIndexOf(idx.RowID)
		e := indexEntry{Time: chunktime.Static, RowID: idx.RowID, ChunkID: c.ID(), RowOffset: pos}
		newEntry = &e
	}
	if newEntry == nil {
		return nil
	}

	if old, existed := s.static[key]; existed {
		if oldChunk, ok := s.chunks[old.ChunkID]; ok {
			descr, _ := oldChunk.Descriptor(comp)
			events = append(events, s.newEvent(changelog.StoreDiff{
				RowID:     old.RowID,
				Timestamp: nil,
				Entity:    c.EntityPath(),
				Component: descr,
				Cell:      oldChunk.Cell(old.RowOffset, comp),
				Delta:     changelog.Deletion,
			}))
		}
	}
	s.static[key] = *newEntry

	descr, _ := c.Descriptor(comp)
	events = append(events, s.newEvent(changelog.StoreDiff{
		RowID:     newEntry.RowID,
		Timestamp: nil,
		Entity:    c.EntityPath(),
		Component: descr,
		Cell:      c.Cell(newEntry.RowOffset, comp),
		Delta:     changelog.Addition,
	}))

	set, ok := s.entityComponentsStatic[entityHash]
	if !ok {
		set = make(map[component.Name]struct{})
		s.entityComponentsStatic[entityHash] = set
	}
	set[comp] = struct{}{}

	return events
}

func (s *Store) newEvent(diff changelog.StoreDiff) changelog.StoreEvent {
	eventID := s.eventID.Inc()
	return changelog.StoreEvent{
		StoreID:    s.id,
		Generation: changelog.Generation{InsertID: s.insertID.Load(), GCID: s.gcID.Load()},
		EventID:    eventID,
		Diff:       diff,
	}
}

// touch records a chunk as just-accessed in the recency cache; called
// whenever a query returns it as a relevant candidate.
func (s *Store) touch(id chunk.ChunkID) {
	s.recents.Add(id, s.accessSeq.Inc())
}
