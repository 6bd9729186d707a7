package chunk

import "github.com/vmihailenco/msgpack/v5"

// Cell is one row's serialized value for one component column. A nil *Cell
// in a component column means the row has no value for that component (the
// list-array "null" of the spec). The wire codec proper is out of scope for
// this core (§1 non-goals); Cell uses msgpack purely as the in-process
// serialization so the store and range cache can treat values generically
// without depending on every component's concrete Go type.
type Cell struct {
	raw []byte
}

// NewCell encodes v into a Cell.
func NewCell(v any) (*Cell, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Cell{raw: raw}, nil
}

// CellFromBytes wraps an already-encoded msgpack payload, used when
// reconstructing a Chunk from a wire-level representation that already
// carries each cell's serialized bytes (e.g. internal/sink's wire codec).
func CellFromBytes(raw []byte) *Cell {
	return &Cell{raw: raw}
}

// Decode unmarshals the cell's value into v (a pointer), per encoding/json
// conventions.
func (c *Cell) Decode(v any) error {
	return msgpack.Unmarshal(c.raw, v)
}

// Bytes returns the raw serialized payload.
func (c *Cell) Bytes() []byte { return c.raw }

// Clone returns an independent copy of the cell.
func (c *Cell) Clone() *Cell {
	if c == nil {
		return nil
	}
	raw := make([]byte, len(c.raw))
	copy(raw, c.raw)
	return &Cell{raw: raw}
}
