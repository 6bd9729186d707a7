package chunk

import (
	"iter"

	"github.com/vmihailenco/msgpack/v5"

	"chunkstore/internal/chunktime"
	"chunkstore/internal/component"
)

// Index is one row's (time, RowID) pair as yielded by the iteration methods.
type Index struct {
	Time  chunktime.TimeInt
	RowID RowID
}

// IterIndices yields (time, row id) for every row in stored order. For a
// static chunk, timeline is ignored and every row yields (Static, row id).
func (c *Chunk) IterIndices(timeline chunktime.TimelineName) iter.Seq[Index] {
	return func(yield func(Index) bool) {
		if c.IsStatic() {
			for _, rid := range c.rowIDs {
				if !yield(Index{Time: chunktime.Static, RowID: rid}) {
					return
				}
			}
			return
		}
		tc, ok := c.timeColumns[timeline]
		if !ok {
			return
		}
		for i, rid := range c.rowIDs {
			if !yield(Index{Time: tc.Times[i], RowID: rid}) {
				return
			}
		}
	}
}

// IterComponentIndices is like IterIndices but restricted to rows where
// comp's list-array is non-null.
func (c *Chunk) IterComponentIndices(timeline chunktime.TimelineName, comp component.Name) iter.Seq[Index] {
	return func(yield func(Index) bool) {
		col, ok := c.components[comp]
		if !ok {
			return
		}
		if c.IsStatic() {
			for i, rid := range c.rowIDs {
				if col.cells[i] == nil {
					continue
				}
				if !yield(Index{Time: chunktime.Static, RowID: rid}) {
					return
				}
			}
			return
		}
		tc, ok := c.timeColumns[timeline]
		if !ok {
			return
		}
		for i, rid := range c.rowIDs {
			if col.cells[i] == nil {
				continue
			}
			if !yield(Index{Time: tc.Times[i], RowID: rid}) {
				return
			}
		}
	}
}

// SlicerFunc decodes a raw Cell into a typed value T. A downcast/decode
// failure should return (zero, false); IterSlices reports it to
// onDecodeError and skips that row rather than propagating the error.
type SlicerFunc[T any] func(c *Cell) (T, bool)

// IterSlices yields the typed value of comp for every non-null row, zero-
// copy in spirit (msgpack decode is the one unavoidable copy given this
// core treats the wire codec as opaque). onDecodeError, if non-nil, is
// invoked once per failing cell instead of panicking.
func IterSlices[T any](c *Chunk, comp component.Name, decode SlicerFunc[T], onDecodeError func(err error)) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		col, ok := c.components[comp]
		if !ok {
			return
		}
		for i, cell := range col.cells {
			if cell == nil {
				continue
			}
			v, ok := decode(cell)
			if !ok {
				if onDecodeError != nil {
					onDecodeError(ErrComponentTypeConflict)
				}
				continue
			}
			if !yield(i, v) {
				return
			}
		}
	}
}

// StructField names one field of a struct-shaped component cell, e.g. a
// logged `{my_timestamp, value}` pair packed per list element.
type StructField struct {
	Name string
}

// IterSlicesFromStructField implements §4.1's
// iter_slices_from_struct_field::<S>(component, field): comp's cells are
// each a list of structs (msgpack maps), and this yields, for every
// non-null struct element across every row in the chunk's stored order,
// the decoded value of field. The per-element position in this flattened
// sequence is unrelated to the owning row's index — a "scatter" consumer
// (seed scenario S5) uses it to build a fresh chunk with one row per
// struct element. A row whose cell isn't list-of-struct shaped, or an
// element missing the field, is treated as a decode failure: reported to
// onDecodeError (once per failure) and skipped.
func IterSlicesFromStructField[T any](c *Chunk, comp component.Name, field StructField, onDecodeError func(err error)) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		col, ok := c.components[comp]
		if !ok {
			return
		}
		pos := 0
		for _, cell := range col.cells {
			if cell == nil {
				continue
			}
			var elems []map[string]msgpack.RawMessage
			if err := cell.Decode(&elems); err != nil {
				if onDecodeError != nil {
					onDecodeError(err)
				}
				continue
			}
			for _, elem := range elems {
				raw, ok := elem[field.Name]
				if !ok {
					if onDecodeError != nil {
						onDecodeError(ErrComponentTypeConflict)
					}
					pos++
					continue
				}
				var v T
				if err := msgpack.Unmarshal(raw, &v); err != nil {
					if onDecodeError != nil {
						onDecodeError(err)
					}
					pos++
					continue
				}
				if !yield(pos, v) {
					return
				}
				pos++
			}
		}
	}
}
