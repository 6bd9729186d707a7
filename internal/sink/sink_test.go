package sink

import (
	"bytes"
	"io"
	"testing"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func buildTestChunk(t *testing.T) *chunk.Chunk {
	t.Helper()
	cell, err := chunk.NewCell("hello")
	if err != nil {
		t.Fatal(err)
	}
	c, err := chunk.Build(chunk.BuildParams{
		Entity: entitypath.Parse("a/b"),
		TimeColumns: map[chunktime.TimelineName]chunktime.TimeColumn{
			"frame": chunktime.NewTimeColumn("frame", chunktime.Sequence, []chunktime.TimeInt{1}),
		},
		Components: []chunk.ColumnInput{
			{Descriptor: component.NewDescriptor("greeting"), Cells: []*chunk.Cell{cell}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestEncodeDecodeMsgRoundTrip(t *testing.T) {
	c := buildTestChunk(t)
	msgs := []LogMsg{
		SetStoreInfo{RowID: chunk.NewRowID(), Info: StoreInfo{ApplicationID: "app", StoreID: "store1", StoreKind: StoreKindRecording}},
		ArrowMsg{StoreID: "store1", Chunk: c},
		BlueprintActivationCommand{BlueprintID: "bp", MakeActive: true},
	}
	for _, msg := range msgs {
		raw, err := EncodeMsg(msg)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeMsg(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if am, ok := got.(ArrowMsg); ok {
			orig := msg.(ArrowMsg)
			if am.Chunk.NumRows() != orig.Chunk.NumRows() || !am.Chunk.EntityPath().Equal(orig.Chunk.EntityPath()) {
				t.Fatalf("ArrowMsg round-trip mismatch")
			}
		}
	}
}

func TestFileSinkRoundTrip(t *testing.T) {
	c := buildTestChunk(t)
	var buf bytes.Buffer
	fs, err := NewFileSink(nopWriteCloser{&buf}, CodecZstd)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Send(SetStoreInfo{Info: StoreInfo{ApplicationID: "app", StoreID: "s"}}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Send(ArrowMsg{StoreID: "s", Chunk: c}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Close(); err != nil {
		t.Fatal(err)
	}

	msgs, err := ReadFrames(&buf)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if _, ok := msgs[0].(SetStoreInfo); !ok {
		t.Fatalf("expected first message to be SetStoreInfo, got %T", msgs[0])
	}
	am, ok := msgs[1].(ArrowMsg)
	if !ok {
		t.Fatalf("expected second message to be ArrowMsg, got %T", msgs[1])
	}
	if am.Chunk.NumRows() != 1 {
		t.Fatalf("expected 1 row, got %d", am.Chunk.NumRows())
	}
}

// TestReadFramesKeepsLastSetStoreInfo grounds ReadFrames' documented
// tolerance for a stream carrying more than one SetStoreInfo header (as a
// SwapSink replay can produce): only the last-seen header is returned.
func TestReadFramesKeepsLastSetStoreInfo(t *testing.T) {
	c := buildTestChunk(t)
	var buf bytes.Buffer
	fs, err := NewFileSink(nopWriteCloser{&buf}, CodecNone)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Send(SetStoreInfo{Info: StoreInfo{ApplicationID: "app", StoreID: "first"}}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Send(ArrowMsg{StoreID: "s", Chunk: c}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Send(SetStoreInfo{Info: StoreInfo{ApplicationID: "app", StoreID: "second"}}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Close(); err != nil {
		t.Fatal(err)
	}

	msgs, err := ReadFrames(&buf)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected the two SetStoreInfo frames to collapse to one, got %d messages: %v", len(msgs), msgs)
	}
	info, ok := msgs[0].(SetStoreInfo)
	if !ok {
		t.Fatalf("expected first message to remain SetStoreInfo, got %T", msgs[0])
	}
	if info.Info.StoreID != "second" {
		t.Fatalf("expected the last-seen StoreID %q, got %q", "second", info.Info.StoreID)
	}
	if _, ok := msgs[1].(ArrowMsg); !ok {
		t.Fatalf("expected second message to be ArrowMsg, got %T", msgs[1])
	}
}

func TestMemorySinkPreservesOrder(t *testing.T) {
	s := NewMemorySink()
	for i := 0; i < 5; i++ {
		_ = s.Send(BlueprintActivationCommand{BlueprintID: string(rune('a' + i))})
	}
	msgs := s.Messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		bc := m.(BlueprintActivationCommand)
		if bc.BlueprintID != string(rune('a'+i)) {
			t.Fatalf("order violated at %d: got %q", i, bc.BlueprintID)
		}
	}
}
