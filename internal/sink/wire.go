package sink

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

// wireChunk is the msgpack-serializable projection of a Chunk used by the
// byte-oriented sinks (file/proxy) to round-trip ArrowMsg payloads.
// It stands in for the Arrow record-batch encoding that §6 of the
// specification treats as an opaque wire concern.
type wireChunk struct {
	Entity      []string
	RowIDs      [][16]byte
	ChunkID     [16]byte
	TimeColumns map[string]wireTimeColumn
	Components  []wireComponent
}

type wireTimeColumn struct {
	Typ   chunktime.TimeType
	Times []int64
}

type wireComponent struct {
	Archetype     string
	Component     string
	ComponentType string
	Cells         [][]byte // nil entry = null
}

func encodeChunk(c *chunk.Chunk) wireChunk {
	w := wireChunk{
		Entity:      c.EntityPath().Parts(),
		ChunkID:     [16]byte(c.ID()),
		TimeColumns: make(map[string]wireTimeColumn, len(c.Timelines())),
	}
	for _, rid := range c.RowIDs() {
		w.RowIDs = append(w.RowIDs, [16]byte(rid))
	}
	for _, tl := range c.Timelines() {
		tc, _ := c.TimeColumn(tl)
		times := make([]int64, tc.Len())
		for i := range times {
			times[i] = int64(tc.At(i))
		}
		w.TimeColumns[string(tl)] = wireTimeColumn{Typ: tc.Typ, Times: times}
	}
	for _, comp := range c.Components() {
		descr, _ := c.Descriptor(comp)
		wc := wireComponent{Component: string(comp)}
		if descr.Archetype != nil {
			wc.Archetype = string(*descr.Archetype)
		}
		if descr.ComponentType != nil {
			wc.ComponentType = string(*descr.ComponentType)
		}
		for i := 0; i < c.NumRows(); i++ {
			cell := c.Cell(i, comp)
			if cell == nil {
				wc.Cells = append(wc.Cells, nil)
			} else {
				wc.Cells = append(wc.Cells, cell.Bytes())
			}
		}
		w.Components = append(w.Components, wc)
	}
	return w
}

func decodeChunk(w wireChunk) (*chunk.Chunk, error) {
	entity := entitypath.New(w.Entity...)
	rowIDs := make([]chunk.RowID, len(w.RowIDs))
	for i, raw := range w.RowIDs {
		rowIDs[i] = chunk.RowID(raw)
	}

	timeCols := make(map[chunktime.TimelineName]chunktime.TimeColumn, len(w.TimeColumns))
	for name, wtc := range w.TimeColumns {
		times := make([]chunktime.TimeInt, len(wtc.Times))
		for i, t := range wtc.Times {
			times[i] = chunktime.TimeInt(t)
		}
		timeCols[chunktime.TimelineName(name)] = chunktime.NewTimeColumn(chunktime.TimelineName(name), wtc.Typ, times)
	}

	comps := make([]chunk.ColumnInput, 0, len(w.Components))
	for _, wc := range w.Components {
		descr := component.NewDescriptor(component.Name(wc.Component))
		if wc.Archetype != "" {
			descr = descr.WithArchetype(component.Name(wc.Archetype))
		}
		if wc.ComponentType != "" {
			descr = descr.WithComponentType(component.Name(wc.ComponentType))
		}
		cells := make([]*chunk.Cell, len(wc.Cells))
		for i, raw := range wc.Cells {
			if raw == nil {
				continue
			}
			cells[i] = chunk.CellFromBytes(raw)
		}
		comps = append(comps, chunk.ColumnInput{Descriptor: descr, Cells: cells})
	}

	return chunk.Build(chunk.BuildParams{
		Entity:      entity,
		RowIDs:      rowIDs,
		ChunkID:     chunk.ChunkID(w.ChunkID),
		TimeColumns: timeCols,
		Components:  comps,
	})
}

// wireEnvelope tags a LogMsg variant for msgpack round-tripping; msgpack
// has no native sum-type support so the tag field is explicit.
type wireEnvelope struct {
	Kind string
	// Exactly one of the following is set, per Kind.
	SetStoreInfo *wireSetStoreInfo
	ArrowMsg     *wireArrowMsg
	Blueprint    *BlueprintActivationCommand
}

type wireSetStoreInfo struct {
	RowID [16]byte
	Info  StoreInfo
}

type wireArrowMsg struct {
	StoreID string
	Chunk   wireChunk
}

// EncodeMsg serializes a LogMsg to bytes for transport by a byte-oriented
// sink (file/proxy).
func EncodeMsg(msg LogMsg) ([]byte, error) {
	var env wireEnvelope
	switch m := msg.(type) {
	case SetStoreInfo:
		env = wireEnvelope{Kind: "SetStoreInfo", SetStoreInfo: &wireSetStoreInfo{RowID: [16]byte(m.RowID), Info: m.Info}}
	case ArrowMsg:
		env = wireEnvelope{Kind: "ArrowMsg", ArrowMsg: &wireArrowMsg{StoreID: m.StoreID, Chunk: encodeChunk(m.Chunk)}}
	case BlueprintActivationCommand:
		env = wireEnvelope{Kind: "BlueprintActivationCommand", Blueprint: &m}
	default:
		return nil, fmt.Errorf("sink: unknown LogMsg type %T", msg)
	}
	return msgpack.Marshal(env)
}

// DecodeMsg is the inverse of EncodeMsg.
func DecodeMsg(raw []byte) (LogMsg, error) {
	var env wireEnvelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("sink: decode envelope: %w", err)
	}
	switch env.Kind {
	case "SetStoreInfo":
		if env.SetStoreInfo == nil {
			return nil, fmt.Errorf("sink: malformed SetStoreInfo envelope")
		}
		return SetStoreInfo{RowID: chunk.RowID(env.SetStoreInfo.RowID), Info: env.SetStoreInfo.Info}, nil
	case "ArrowMsg":
		if env.ArrowMsg == nil {
			return nil, fmt.Errorf("sink: malformed ArrowMsg envelope")
		}
		c, err := decodeChunk(env.ArrowMsg.Chunk)
		if err != nil {
			return nil, fmt.Errorf("sink: decode chunk: %w", err)
		}
		return ArrowMsg{StoreID: env.ArrowMsg.StoreID, Chunk: c}, nil
	case "BlueprintActivationCommand":
		if env.Blueprint == nil {
			return nil, fmt.Errorf("sink: malformed BlueprintActivationCommand envelope")
		}
		return *env.Blueprint, nil
	default:
		return nil, fmt.Errorf("sink: unknown envelope kind %q", env.Kind)
	}
}
