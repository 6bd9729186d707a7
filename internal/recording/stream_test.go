package recording

import (
	"testing"
	"time"

	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
	"chunkstore/internal/sink"
)

func waitForMessages(t *testing.T, ms *sink.MemorySink, n int) []sink.LogMsg {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if msgs := ms.Messages(); len(msgs) >= n {
			return msgs
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, got %d", n, len(ms.Messages()))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestStreamDeliversRowsAndShutsDownOnce grounds the producer pipeline
// end-to-end: RecordRow -> Batcher -> sink-forwarding goroutine -> sink,
// and Close only tearing the stream down once every clone has released it.
func TestStreamDeliversRowsAndShutsDownOnce(t *testing.T) {
	ms := sink.NewMemorySink()
	s := NewStream(StreamConfig{
		Info:    sink.StoreInfo{ApplicationID: "app", StoreID: "store1", StoreKind: sink.StoreKindRecording},
		Sink:    ms,
		Batcher: AlwaysBatch(),
	})

	clone := s.Clone()

	tc := s.Thread()
	tc.RecordRow(entitypath.Parse("a/b"), map[component.Name]ComponentCell{
		"x": {Descriptor: component.NewDescriptor("x"), Cell: mustCell(t, "hello")},
	}, nil)

	if err := s.FlushBlocking(); err != nil {
		t.Fatalf("FlushBlocking: %v", err)
	}

	s.Close()
	// The stream must still be usable via the clone: closing one handle
	// must not have torn the forwarding goroutine down.
	clone.RecordMsg(sink.BlueprintActivationCommand{BlueprintID: "bp", MakeActive: true})
	if err := clone.FlushBlocking(); err != nil {
		t.Fatalf("FlushBlocking on clone after sibling Close: %v", err)
	}
	clone.Close()

	deadline := time.After(time.Second)
	for {
		msgs := ms.Messages()
		var haveArrow, haveBlueprint bool
		for _, m := range msgs {
			switch m.(type) {
			case sink.ArrowMsg:
				haveArrow = true
			case sink.BlueprintActivationCommand:
				haveBlueprint = true
			}
		}
		if haveArrow && haveBlueprint {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for messages, got %d", len(msgs))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestThreadContextTimeStateIsPerHandle grounds §4.3's SetTime/ResetTime
// semantics: state set on one ThreadContext never leaks into another.
func TestThreadContextTimeStateIsPerHandle(t *testing.T) {
	ms := sink.NewMemorySink()
	s := NewStream(StreamConfig{
		Info:    sink.StoreInfo{ApplicationID: "app", StoreID: "store1"},
		Sink:    ms,
		Batcher: NeverBatch(),
	})
	defer s.Close()

	t1 := s.Thread()
	t1.SetTime("frame", chunktime.Sequence, 10)
	t2 := s.Thread()

	if t1.time["frame"].Value != 10 {
		t.Fatalf("expected thread 1 to carry frame=10")
	}
	if _, ok := t2.time["frame"]; ok {
		t.Fatalf("thread 2 must not see thread 1's time state")
	}

	t1.ResetTime()
	if len(t1.time) != 0 {
		t.Fatalf("expected ResetTime to clear state, got %v", t1.time)
	}
}

// TestFlushHierarchyNeverBatchCoalescesThenAlwaysBatchSplits grounds spec.md
// P6/S6, the flush hierarchy: with batcher=NEVER, a buffered-then-memory
// SwapSink must see exactly [SetStoreInfo(buffered), SetStoreInfo(memory),
// ArrowMsg(coalesced)] — every row recorded before FlushBlocking lands in a
// single chunk. With batcher=ALWAYS, the same three rows must instead
// surface as one ArrowMsg per row.
func TestFlushHierarchyNeverBatchCoalescesThenAlwaysBatchSplits(t *testing.T) {
	rows := func(tc *ThreadContext) {
		for _, v := range []string{"a", "b", "c"} {
			tc.RecordRow(entitypath.Parse("e"), map[component.Name]ComponentCell{
				"x": {Descriptor: component.NewDescriptor("x"), Cell: mustCell(t, v)},
			}, nil)
		}
	}

	t.Run("NEVER coalesces into one ArrowMsg", func(t *testing.T) {
		bufferedInner := sink.NewMemorySink()
		buffered := sink.NewBufferedSink(bufferedInner, nil)
		memA := sink.NewMemorySink()

		s := NewStream(StreamConfig{
			Info:    sink.StoreInfo{ApplicationID: "app", StoreID: "store1"},
			Sink:    buffered,
			Batcher: NeverBatch(),
		})
		defer s.Close()

		// Swap to the plain memory sink before any rows are recorded, so the
		// order of store-info announcements is observable across the two
		// underlying sinks: buffered first, then memory.
		s.SwapSink(memA)

		rows(s.Thread())
		if err := s.FlushBlocking(); err != nil {
			t.Fatalf("FlushBlocking: %v", err)
		}

		bufMsgs := bufferedInner.Messages()
		if len(bufMsgs) != 1 {
			t.Fatalf("expected exactly one message on the buffered sink (its SetStoreInfo), got %d: %v", len(bufMsgs), bufMsgs)
		}
		if _, ok := bufMsgs[0].(sink.SetStoreInfo); !ok {
			t.Fatalf("expected SetStoreInfo on the buffered sink, got %T", bufMsgs[0])
		}

		memMsgs := waitForMessages(t, memA, 2)
		if len(memMsgs) != 2 {
			t.Fatalf("expected exactly [SetStoreInfo, ArrowMsg] on the memory sink, got %d: %v", len(memMsgs), memMsgs)
		}
		if _, ok := memMsgs[0].(sink.SetStoreInfo); !ok {
			t.Fatalf("expected SetStoreInfo first on the memory sink, got %T", memMsgs[0])
		}
		arrow, ok := memMsgs[1].(sink.ArrowMsg)
		if !ok {
			t.Fatalf("expected ArrowMsg second on the memory sink, got %T", memMsgs[1])
		}
		if arrow.Chunk.NumRows() != 3 {
			t.Fatalf("expected the three rows to coalesce into one 3-row chunk, got %d rows", arrow.Chunk.NumRows())
		}
	})

	t.Run("ALWAYS emits one ArrowMsg per row", func(t *testing.T) {
		memB := sink.NewMemorySink()
		s := NewStream(StreamConfig{
			Info:    sink.StoreInfo{ApplicationID: "app", StoreID: "store1"},
			Sink:    memB,
			Batcher: AlwaysBatch(),
		})
		defer s.Close()

		rows(s.Thread())
		if err := s.FlushBlocking(); err != nil {
			t.Fatalf("FlushBlocking: %v", err)
		}

		msgs := waitForMessages(t, memB, 4)
		var arrowCount int
		for _, m := range msgs {
			if arrow, ok := m.(sink.ArrowMsg); ok {
				arrowCount++
				if arrow.Chunk.NumRows() != 1 {
					t.Fatalf("expected each ArrowMsg to carry exactly one row, got %d", arrow.Chunk.NumRows())
				}
			}
		}
		if arrowCount != 3 {
			t.Fatalf("expected one ArrowMsg per row (3 total), got %d among %v", arrowCount, msgs)
		}
	})
}

// TestThreadContextRecordRowOrderingIsPreserved grounds spec.md P7:
// RecordRow calls submitted in order from a single thread must appear on
// the sink in that same order.
func TestThreadContextRecordRowOrderingIsPreserved(t *testing.T) {
	ms := sink.NewMemorySink()
	s := NewStream(StreamConfig{
		Info:    sink.StoreInfo{ApplicationID: "app", StoreID: "store1"},
		Sink:    ms,
		Batcher: AlwaysBatch(),
	})
	defer s.Close()

	tc := s.Thread()
	const n = 5
	for i := 0; i < n; i++ {
		tc.RecordRow(entitypath.Parse("e"), map[component.Name]ComponentCell{
			"seq": {Descriptor: component.NewDescriptor("seq"), Cell: mustCell(t, i)},
		}, nil)
	}
	if err := s.FlushBlocking(); err != nil {
		t.Fatalf("FlushBlocking: %v", err)
	}

	msgs := waitForMessages(t, ms, n+1)
	var got []int
	for _, m := range msgs {
		arrow, ok := m.(sink.ArrowMsg)
		if !ok {
			continue
		}
		var v int
		if err := arrow.Chunk.Cell(0, "seq").Decode(&v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, v)
	}
	if len(got) != n {
		t.Fatalf("expected %d single-row ArrowMsgs, got %d: %v", n, len(got), got)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected row ordering %v, got %v", []int{0, 1, 2, 3, 4}, got)
		}
	}
}
