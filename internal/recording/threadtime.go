package recording

import (
	"time"

	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

const (
	// logTimeTimeline is the implicit wall-clock timeline every RecordRow
	// stamps, named after gastrolog's own "log_time" ingestion field.
	logTimeTimeline chunktime.TimelineName = "log_time"
	// logTickTimeline is the implicit per-stream monotonic counter timeline,
	// which lets rows recorded within the same wall-clock nanosecond still
	// sort deterministically.
	logTickTimeline chunktime.TimelineName = "log_tick"
)

// ThreadContext carries the timeline state that §4.3 attaches to a
// "thread": a set of (timeline, time) pairs applied to every row recorded
// through it until changed. Go has no implicit thread-local storage, so a
// ThreadContext is an explicit handle a caller creates once per goroutine
// (via RecordingStream.Thread) and reuses — the idiomatic substitute for
// the source design's thread-local map keyed by RecordingId.
type ThreadContext struct {
	stream *RecordingStream
	time   chunktime.TimePoint
}

// SetTime sets (or overwrites) the time this thread stamps onto every row
// it records on timeline, until ResetTime or DisableTimeline changes it.
func (tc *ThreadContext) SetTime(timeline chunktime.TimelineName, typ chunktime.TimeType, value chunktime.TimeInt) {
	if tc.time == nil {
		tc.time = chunktime.TimePoint{}
	}
	tc.time[timeline] = chunktime.TimeCell{Typ: typ, Value: value}
}

// DisableTimeline removes timeline from this thread's time state, so rows
// recorded afterwards no longer carry a value for it.
func (tc *ThreadContext) DisableTimeline(timeline chunktime.TimelineName) {
	delete(tc.time, timeline)
}

// ResetTime clears every timeline this thread has set.
func (tc *ThreadContext) ResetTime() {
	tc.time = nil
}

// RecordRow logs one row of component data for entity, at the implicit
// wall-clock and tick timelines merged with this thread's time state,
// merged with explicit (later entries win on conflicting timelines), per
// §4.3. A fresh RowID is minted from the stream's shared generator, which
// is what keeps RowIDs monotonically ordered for rows recorded from the
// same stream regardless of which thread logged them.
func (tc *ThreadContext) RecordRow(entity entitypath.EntityPath, components map[component.Name]ComponentCell, explicit chunktime.TimePoint) {
	implicit := chunktime.TimePoint{
		logTimeTimeline: {Typ: chunktime.Timestamp, Value: chunktime.TimeInt(time.Now().UnixNano())},
		logTickTimeline: {Typ: chunktime.Sequence, Value: chunktime.TimeInt(tc.stream.state.nextTick())},
	}
	merged := implicit.Merge(tc.time).Merge(explicit)

	row := RowInput{
		RowID:      tc.stream.state.rowGen.Next(),
		Time:       merged,
		Entity:     entity,
		Components: components,
	}
	tc.stream.record(row)
}

// RecordStaticRow logs a static row: one that shadows all temporal data
// for entity/component pairs it touches, regardless of query time.
func (tc *ThreadContext) RecordStaticRow(entity entitypath.EntityPath, components map[component.Name]ComponentCell) {
	row := RowInput{
		RowID:      tc.stream.state.rowGen.Next(),
		Time:       nil,
		Entity:     entity,
		Components: components,
	}
	tc.stream.record(row)
}
