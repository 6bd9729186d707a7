package chunktime

import "fmt"

// TimeColumn is the per-row time index for one timeline inside a chunk:
// exactly N values (N = the chunk's row count) plus a flag advertising
// whether the values are sorted ascending.
type TimeColumn struct {
	Timeline TimelineName
	Typ      TimeType
	Times    []TimeInt
	Sorted   bool
}

// NewTimeColumn builds a TimeColumn, computing the Sorted flag from the
// supplied values.
func NewTimeColumn(timeline TimelineName, typ TimeType, times []TimeInt) TimeColumn {
	sorted := true
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			sorted = false
			break
		}
	}
	return TimeColumn{Timeline: timeline, Typ: typ, Times: times, Sorted: sorted}
}

// Len returns the number of rows in the column.
func (c TimeColumn) Len() int { return len(c.Times) }

// TimeRange returns the ResolvedTimeRange spanned by this column.
func (c TimeColumn) TimeRange() ResolvedTimeRange {
	return RangeOf(c.Times)
}

// At returns the time value for row i.
func (c TimeColumn) At(i int) TimeInt { return c.Times[i] }

// String renders a short debug description.
func (c TimeColumn) String() string {
	return fmt.Sprintf("TimeColumn{%s, %s, n=%d, sorted=%v}", c.Timeline, c.Typ, len(c.Times), c.Sorted)
}
