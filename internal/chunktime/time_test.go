package chunktime

import "testing"

func TestStaticSortsBeforeEveryTemporalValue(t *testing.T) {
	if !Static.Less(MinTemporal) {
		t.Fatal("expected Static < MinTemporal")
	}
	if !Static.Less(MaxTemporal) {
		t.Fatal("expected Static < MaxTemporal")
	}
}

func TestResolvedTimeRangeContainsExcludesStatic(t *testing.T) {
	r := ResolvedTimeRange{Min: 1, Max: 10}
	if r.Contains(Static) {
		t.Fatal("a resolved range must never contain Static")
	}
	if !r.Contains(5) {
		t.Fatal("expected 5 to fall within [1,10]")
	}
	if r.Contains(11) {
		t.Fatal("11 should fall outside [1,10]")
	}
}

func TestResolvedTimeRangeOverlaps(t *testing.T) {
	a := ResolvedTimeRange{Min: 1, Max: 3}
	b := ResolvedTimeRange{Min: 3, Max: 5}
	c := ResolvedTimeRange{Min: 4, Max: 5}
	if !a.Overlaps(b) {
		t.Fatal("[1,3] and [3,5] share the boundary value 3")
	}
	if a.Overlaps(c) {
		t.Fatal("[1,3] and [4,5] must not overlap")
	}
}

func TestRangeOfIgnoresStaticEntries(t *testing.T) {
	r := RangeOf([]TimeInt{Static, 3, Static, 1, 2})
	if r.Min != 1 || r.Max != 3 {
		t.Fatalf("expected [1,3], got [%d,%d]", r.Min, r.Max)
	}
}

func TestRangeOfAllStaticIsEmpty(t *testing.T) {
	r := RangeOf([]TimeInt{Static, Static})
	if !r.IsEmpty() {
		t.Fatal("a range built from only static entries must be empty")
	}
}

func TestTimePointMergeLaterWins(t *testing.T) {
	a := TimePoint{"frame": {Typ: Sequence, Value: 1}}
	b := TimePoint{"frame": {Typ: Sequence, Value: 2}, "log_time": {Typ: Timestamp, Value: 100}}
	merged := a.Merge(b)
	if merged["frame"].Value != 2 {
		t.Fatalf("expected later entry to win, got %d", merged["frame"].Value)
	}
	if merged["log_time"].Value != 100 {
		t.Fatal("expected log_time to carry through from the merged-in point")
	}
	if a["frame"].Value != 1 {
		t.Fatal("Merge must not mutate its receiver")
	}
}

func TestTimePointIsStatic(t *testing.T) {
	var empty TimePoint
	if !empty.IsStatic() {
		t.Fatal("a nil TimePoint is static")
	}
	nonEmpty := TimePoint{"frame": {Typ: Sequence, Value: 1}}
	if nonEmpty.IsStatic() {
		t.Fatal("a TimePoint with an entry is not static")
	}
}

func TestNewTimeColumnDetectsSorted(t *testing.T) {
	sorted := NewTimeColumn("frame", Sequence, []TimeInt{1, 2, 2, 5})
	if !sorted.Sorted {
		t.Fatal("expected ascending values to be detected as sorted")
	}
	unsorted := NewTimeColumn("frame", Sequence, []TimeInt{1, 5, 2})
	if unsorted.Sorted {
		t.Fatal("expected a non-ascending sequence to be detected as unsorted")
	}
}
