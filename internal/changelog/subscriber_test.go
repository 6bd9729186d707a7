package changelog

import (
	"testing"

	"chunkstore/internal/chunk"
)

type recordingView struct {
	name  string
	batch [][]StoreEvent
}

func (v *recordingView) Name() string { return v.name }
func (v *recordingView) OnEvents(batch []StoreEvent) {
	v.batch = append(v.batch, batch)
}

type panickingView struct{ name string }

func (v *panickingView) Name() string                { return v.name }
func (v *panickingView) OnEvents(batch []StoreEvent) { panic("boom") }

type unregisterableView struct{ name string }

func (v *unregisterableView) Name() string         { return v.name }
func (v *unregisterableView) OnEvents([]StoreEvent) {}
func (v *unregisterableView) Registerable() bool    { return false }

func TestDispatchDeliversToEveryRegisteredView(t *testing.T) {
	r := NewRegistry(nil)
	a := &recordingView{name: "a"}
	b := &recordingView{name: "b"}
	r.Register(a)
	r.Register(b)

	batch := []StoreEvent{{EventID: 1}}
	r.Dispatch(batch)

	if len(a.batch) != 1 || len(a.batch[0]) != 1 {
		t.Fatalf("expected view a to receive one batch of one event, got %v", a.batch)
	}
	if len(b.batch) != 1 {
		t.Fatalf("expected view b to receive one batch, got %v", b.batch)
	}
}

func TestDispatchIsolatesPanickingSubscriber(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&panickingView{name: "bad"})
	good := &recordingView{name: "good"}
	r.Register(good)

	r.Dispatch([]StoreEvent{{EventID: 1}})

	if len(good.batch) != 1 {
		t.Fatal("a panicking subscriber must not prevent other subscribers from receiving the batch")
	}
}

func TestRegisterRejectsUnregisterableView(t *testing.T) {
	r := NewRegistry(nil)
	ok := r.Register(&unregisterableView{name: "internal"})
	if ok {
		t.Fatal("expected Register to reject a view whose Registerable() returns false")
	}

	v := &recordingView{name: "internal"}
	r.Dispatch([]StoreEvent{{EventID: 1}})
	if len(v.batch) != 0 {
		t.Fatal("a rejected view must never receive dispatched batches")
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	r := NewRegistry(nil)
	v := &recordingView{name: "a"}
	r.Register(v)
	r.Unregister("a")
	r.Dispatch([]StoreEvent{{EventID: 1}})
	if len(v.batch) != 0 {
		t.Fatal("an unregistered view must not receive further batches")
	}
}

func TestCoalesceToRowsGroupsByRowID(t *testing.T) {
	row1, row2 := chunk.NewRowID(), chunk.NewRowID()
	events := []StoreEvent{
		{Diff: StoreDiff{RowID: row1, Delta: Addition}},
		{Diff: StoreDiff{RowID: row1, Delta: Addition}},
		{Diff: StoreDiff{RowID: row2, Delta: Deletion}},
	}
	grouped := CoalesceToRows(events)
	if len(grouped[row1]) != 2 {
		t.Fatalf("expected 2 events for row1, got %d", len(grouped[row1]))
	}
	if len(grouped[row2]) != 1 {
		t.Fatalf("expected 1 event for row2, got %d", len(grouped[row2]))
	}
}
