// Package sink defines LogSink, the abstract write destination a
// RecordingStream forwards chunks to, and the LogMsg variants every sink
// speaks.
package sink

import (
	"chunkstore/internal/chunk"
)

// StoreKind distinguishes a regular recording from a blueprint.
type StoreKind int

const (
	StoreKindRecording StoreKind = iota
	StoreKindBlueprint
)

func (k StoreKind) String() string {
	if k == StoreKindBlueprint {
		return "blueprint"
	}
	return "recording"
}

// StoreInfo describes a recording; it is resent to every sink a stream is
// swapped onto so late-joining sinks are self-sufficient.
type StoreInfo struct {
	ApplicationID string
	StoreID       string
	StoreKind     StoreKind
	StartedAt     int64 // unix nanos
	Source        string
}

// LogMsg is the sealed set of messages a LogSink consumes. The three
// variants below mirror §6 of the specification's wire-format table.
type LogMsg interface {
	isLogMsg()
}

// SetStoreInfo is always the first message sent to any sink.
type SetStoreInfo struct {
	RowID chunk.RowID
	Info  StoreInfo
}

func (SetStoreInfo) isLogMsg() {}

// ArrowMsg carries one chunk, addressed to a store. The concrete wire
// encoding (Arrow record batch in the original system) is a non-goal here;
// this type carries the chunk itself and lets the sink's codec decide how
// to serialize it.
type ArrowMsg struct {
	StoreID string
	Chunk   *chunk.Chunk
}

func (ArrowMsg) isLogMsg() {}

// BlueprintActivationCommand is passed through sinks unmodified even though
// the blueprint system itself is out of scope; only the message shape is
// specified.
type BlueprintActivationCommand struct {
	BlueprintID string
	MakeActive  bool
	MakeDefault bool
}

func (BlueprintActivationCommand) isLogMsg() {}
