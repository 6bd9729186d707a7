package chunk

import "errors"

// Sentinel errors returned by Build and by store-side validation. Callers
// match these with errors.Is; wrapping with fmt.Errorf("...: %w", err) is
// expected at each boundary.
var (
	// ErrColumnLengthMismatch is returned when a time or component column's
	// length disagrees with the chunk's row count.
	ErrColumnLengthMismatch = errors.New("chunk: column length does not match row count")
	// ErrTimelineTypeConflict is returned when a timeline name is reused
	// with a different TimeType than previously recorded for that name.
	ErrTimelineTypeConflict = errors.New("chunk: timeline type conflicts with existing timeline of the same name")
	// ErrComponentTypeConflict is passed to the onDecodeError callback of
	// IterSlices and IterSlicesFromStructField when a cell does not decode
	// to the requested type or lacks the requested field. Neither Build nor
	// the store compares component element types across chunks, so no
	// insert path returns it.
	ErrComponentTypeConflict = errors.New("chunk: component element type conflicts with existing column")
	// ErrRowIDCollision is returned by the store when a chunk's RowIDs
	// overlap with RowIDs already present in the store.
	ErrRowIDCollision = errors.New("chunk: row id collision with existing store contents")
	// ErrDuplicateRowID is returned when a single chunk contains the same
	// RowID more than once.
	ErrDuplicateRowID = errors.New("chunk: duplicate row id within chunk")
	// ErrEntityPathRequired is not returned by Build: an unset entity path
	// is accepted as the root path.
	ErrEntityPathRequired = errors.New("chunk: entity path is required")
)
