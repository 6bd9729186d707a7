// Package recording implements the producer side of the pipeline:
// RecordingStream, the row Batcher, per-goroutine time state, and the
// command channel that forwards assembled chunks to a sink.
package recording

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

// BatcherConfig holds the three flush thresholds: a chunk is emitted when
// any of them fires, when an explicit Flush is requested, or when the
// Batcher is closed.
type BatcherConfig struct {
	MaxRows     int
	MaxDuration time.Duration
	MaxBytes    int64
}

// NeverBatch returns thresholds that never fire on their own: chunks are
// only emitted on explicit Flush or Close. Grounded in
// BatcherConfig::NEVER from the recording stream this package's producer
// side is modeled on.
func NeverBatch() BatcherConfig {
	return BatcherConfig{MaxRows: math.MaxInt, MaxDuration: time.Duration(math.MaxInt64), MaxBytes: math.MaxInt64}
}

// AlwaysBatch returns thresholds that fire immediately after every row, so
// each row becomes its own chunk. Grounded in BatcherConfig::ALWAYS.
func AlwaysBatch() BatcherConfig {
	return BatcherConfig{MaxRows: 1, MaxDuration: 0, MaxBytes: 0}
}

// ComponentCell is one row's value for one component.
type ComponentCell struct {
	Descriptor component.Descriptor
	Cell       *chunk.Cell
}

// RowInput is one row submitted to the batcher.
type RowInput struct {
	RowID      chunk.RowID
	Time       chunktime.TimePoint
	Entity     entitypath.EntityPath
	Components map[component.Name]ComponentCell
}

func (r RowInput) approxBytes() int64 {
	var n int64
	for _, cc := range r.Components {
		if cc.Cell != nil {
			n += int64(len(cc.Cell.Bytes()))
		}
	}
	return n
}

type binKey struct {
	entity      uint64
	static      bool
	timelineSig string
}

func timelineSignature(tp chunktime.TimePoint) string {
	if len(tp) == 0 {
		return ""
	}
	names := make([]string, 0, len(tp))
	for name := range tp {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

type bin struct {
	entity entitypath.EntityPath
	static bool
	rows   []RowInput
	bytes  int64
	opened time.Time
}

// Batcher coalesces RowInputs into per-(entity_path, static?, timeline-set)
// bins under the configured thresholds, emitting each bin as one Chunk on
// its output channel. Rows within a bin are required to share an identical
// timeline set, which holds in practice because record_row always merges
// in the implicit wall-clock and tick timelines (§4.3); this sidesteps the
// otherwise-ambiguous question of what time value a row missing a timeline
// present on its bin-mates should get.
type Batcher struct {
	cfg BatcherConfig
	gen *chunk.Generator

	mu     sync.Mutex
	bins   map[binKey]*bin
	out    chan *chunk.Chunk
	closed bool

	stopTicker chan struct{}
	tickerDone chan struct{}
}

// NewBatcher constructs a Batcher with the given thresholds. gen, if nil,
// is replaced by a new chunk.NewGenerator().
func NewBatcher(cfg BatcherConfig, gen *chunk.Generator) *Batcher {
	if gen == nil {
		gen = chunk.NewGenerator()
	}
	b := &Batcher{
		cfg:        cfg,
		gen:        gen,
		bins:       make(map[binKey]*bin),
		out:        make(chan *chunk.Chunk, 64),
		stopTicker: make(chan struct{}),
		tickerDone: make(chan struct{}),
	}
	go b.durationWatcher()
	return b
}

// Chunks returns the channel chunks are emitted on.
func (b *Batcher) Chunks() <-chan *chunk.Chunk { return b.out }

// durationWatcher periodically flushes bins whose MaxDuration has elapsed.
// It ticks at a quarter of MaxDuration (bounded to a sane range) so the
// threshold is honored without a per-bin timer.
func (b *Batcher) durationWatcher() {
	defer close(b.tickerDone)
	interval := b.cfg.MaxDuration / 4
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	if b.cfg.MaxDuration == time.Duration(math.MaxInt64) {
		// NeverBatch: no point ticking at all.
		<-b.stopTicker
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-b.stopTicker:
			return
		case now := <-t.C:
			b.mu.Lock()
			for key, bn := range b.bins {
				if now.Sub(bn.opened) >= b.cfg.MaxDuration {
					b.flushBinLocked(key)
				}
			}
			b.mu.Unlock()
		}
	}
}

// Record adds a row to its bin, flushing that bin immediately if a
// threshold now fires.
func (b *Batcher) Record(row RowInput) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	key := binKey{entity: row.Entity.Hash(), static: row.Time.IsStatic(), timelineSig: timelineSignature(row.Time)}
	bn, ok := b.bins[key]
	if !ok {
		bn = &bin{entity: row.Entity, static: row.Time.IsStatic(), opened: time.Now()}
		b.bins[key] = bn
	}
	bn.rows = append(bn.rows, row)
	bn.bytes += row.approxBytes()

	if len(bn.rows) >= b.cfg.MaxRows || bn.bytes >= b.cfg.MaxBytes {
		b.flushBinLocked(key)
	}
}

// Flush emits every non-empty bin as a chunk immediately.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.bins {
		b.flushBinLocked(key)
	}
}

// Close flushes every bin and stops the duration watcher. The Batcher must
// not be used after Close.
func (b *Batcher) Close() {
	b.mu.Lock()
	b.closed = true
	for key := range b.bins {
		b.flushBinLocked(key)
	}
	b.mu.Unlock()
	close(b.stopTicker)
	<-b.tickerDone
	close(b.out)
}

// flushBinLocked builds the bin's chunk and sends it to out. Caller holds
// b.mu. A bin with zero rows (already flushed) is a silent no-op.
func (b *Batcher) flushBinLocked(key binKey) {
	bn, ok := b.bins[key]
	if !ok || len(bn.rows) == 0 {
		if ok {
			delete(b.bins, key)
		}
		return
	}
	delete(b.bins, key)

	c, err := buildBinChunk(bn, b.gen)
	if err != nil {
		// Building from already-validated rows cannot fail in practice (see
		// buildBinChunk); if it somehow does, the rows are dropped rather
		// than blocking the batcher — this mirrors the "row skipped" data
		// error policy applied one layer up.
		return
	}
	b.out <- c
}

// buildBinChunk assembles one Chunk from a bin's accumulated rows: the
// component set is the union across rows, with nulls filled for rows that
// lacked a given component.
func buildBinChunk(bn *bin, gen *chunk.Generator) (*chunk.Chunk, error) {
	n := len(bn.rows)
	rowIDs := make([]chunk.RowID, n)
	for i, r := range bn.rows {
		rowIDs[i] = r.RowID
	}

	var timeCols map[chunktime.TimelineName]chunktime.TimeColumn
	if !bn.static {
		timelineNames := make([]chunktime.TimelineName, 0)
		for name := range bn.rows[0].Time {
			timelineNames = append(timelineNames, name)
		}
		timeCols = make(map[chunktime.TimelineName]chunktime.TimeColumn, len(timelineNames))
		for _, name := range timelineNames {
			times := make([]chunktime.TimeInt, n)
			var typ chunktime.TimeType
			for i, r := range bn.rows {
				cell, ok := r.Time[name]
				if ok {
					times[i] = cell.Value
					typ = cell.Typ
				}
			}
			timeCols[name] = chunktime.NewTimeColumn(name, typ, times)
		}
	}

	descriptors := make(map[component.Name]component.Descriptor)
	var order []component.Name
	for _, r := range bn.rows {
		for name, cc := range r.Components {
			if _, seen := descriptors[name]; !seen {
				descriptors[name] = cc.Descriptor
				order = append(order, name)
			}
		}
	}

	comps := make([]chunk.ColumnInput, 0, len(order))
	for _, name := range order {
		cells := make([]*chunk.Cell, n)
		for i, r := range bn.rows {
			if cc, ok := r.Components[name]; ok {
				cells[i] = cc.Cell
			}
		}
		comps = append(comps, chunk.ColumnInput{Descriptor: descriptors[name], Cells: cells})
	}

	return chunk.Build(chunk.BuildParams{
		Entity:      bn.entity,
		RowIDs:      rowIDs,
		Gen:         gen,
		TimeColumns: timeCols,
		Components:  comps,
	})
}
