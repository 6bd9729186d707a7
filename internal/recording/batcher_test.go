package recording

import (
	"testing"
	"time"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

func mustCell(t *testing.T, v any) *chunk.Cell {
	t.Helper()
	c, err := chunk.NewCell(v)
	if err != nil {
		t.Fatalf("NewCell: %v", err)
	}
	return c
}

func frameRow(t *testing.T, entity string, frame int64, comp string, val any) RowInput {
	t.Helper()
	return RowInput{
		RowID:  chunk.NewRowID(),
		Time:   chunktime.TimePoint{"frame": {Typ: chunktime.Sequence, Value: chunktime.TimeInt(frame)}},
		Entity: entitypath.Parse(entity),
		Components: map[component.Name]ComponentCell{
			component.Name(comp): {Descriptor: component.NewDescriptor(comp), Cell: mustCell(t, val)},
		},
	}
}

// TestBatcherMaxRowsFlush grounds the ALWAYS preset and MaxRows
// threshold: with AlwaysBatch, every Record call emits its own chunk.
func TestBatcherMaxRowsFlush(t *testing.T) {
	b := NewBatcher(AlwaysBatch(), chunk.NewGenerator())
	defer b.Close()

	b.Record(frameRow(t, "a", 1, "x", "v1"))
	select {
	case c := <-b.Chunks():
		if c.NumRows() != 1 {
			t.Fatalf("expected 1 row, got %d", c.NumRows())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for chunk")
	}
}

// TestBatcherNeverBatchRequiresExplicitFlush grounds BatcherConfig::NEVER:
// no chunk is emitted until Flush is called.
func TestBatcherNeverBatchRequiresExplicitFlush(t *testing.T) {
	b := NewBatcher(NeverBatch(), chunk.NewGenerator())
	defer b.Close()

	b.Record(frameRow(t, "a", 1, "x", "v1"))
	b.Record(frameRow(t, "a", 2, "x", "v2"))

	select {
	case <-b.Chunks():
		t.Fatal("chunk emitted before Flush under NeverBatch")
	case <-time.After(100 * time.Millisecond):
	}

	b.Flush()
	select {
	case c := <-b.Chunks():
		if c.NumRows() != 2 {
			t.Fatalf("expected 2 rows in flushed chunk, got %d", c.NumRows())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flushed chunk")
	}
}

// TestBatcherSeparatesEntitiesAndStaticness grounds the per-(entity,
// static, timeline-signature) binning rule: rows for different entities,
// or with different static-ness, never land in the same chunk.
func TestBatcherSeparatesEntitiesAndStaticness(t *testing.T) {
	b := NewBatcher(NeverBatch(), chunk.NewGenerator())
	defer b.Close()

	b.Record(frameRow(t, "a", 1, "x", "v1"))
	b.Record(frameRow(t, "b", 1, "x", "v2"))
	b.Record(RowInput{
		RowID:  chunk.NewRowID(),
		Entity: entitypath.Parse("a"),
		Components: map[component.Name]ComponentCell{
			"x": {Descriptor: component.NewDescriptor("x"), Cell: mustCell(t, "static")},
		},
	})
	b.Flush()

	seen := map[string]int{}
	for i := 0; i < 3; i++ {
		select {
		case c := <-b.Chunks():
			seen[c.EntityPath().String()+":"+boolStr(c.IsStatic())]++
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for chunk %d", i)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct bins, got %v", seen)
	}
}

func boolStr(b bool) string {
	if b {
		return "static"
	}
	return "temporal"
}

// TestBatcherUnionsComponentsWithNulls grounds the union-of-components
// chunk-assembly rule: a row missing a component that a bin-mate carries
// gets a null cell for it, not a dropped row.
func TestBatcherUnionsComponentsWithNulls(t *testing.T) {
	b := NewBatcher(NeverBatch(), chunk.NewGenerator())
	defer b.Close()

	row1 := frameRow(t, "a", 1, "x", "only-x")
	row2 := RowInput{
		RowID:  chunk.NewRowID(),
		Time:   chunktime.TimePoint{"frame": {Typ: chunktime.Sequence, Value: 2}},
		Entity: entitypath.Parse("a"),
		Components: map[component.Name]ComponentCell{
			"y": {Descriptor: component.NewDescriptor("y"), Cell: mustCell(t, "only-y")},
		},
	}
	b.Record(row1)
	b.Record(row2)
	b.Flush()

	select {
	case c := <-b.Chunks():
		if c.NumRows() != 2 {
			t.Fatalf("expected 2 rows, got %d", c.NumRows())
		}
		comps := c.Components()
		if len(comps) != 2 {
			t.Fatalf("expected union of 2 components, got %d: %v", len(comps), comps)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for chunk")
	}
}
