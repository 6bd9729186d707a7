package chunk

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ID is a 128-bit identifier whose high 64 bits are a nanosecond wall-clock
// timestamp and whose low 64 bits are a per-process salt combined with a
// monotonic counter. This makes IDs lexicographically ordered primarily by
// creation time, with the counter breaking ties within the same nanosecond,
// exactly as RowId and ChunkId require.
type ID [16]byte

// RowID uniquely and totally orders rows across the whole store; it is the
// tiebreaker used by every other ordering (latest-at, range, event order).
type RowID = ID

// ChunkID uniquely identifies a chunk. Its high 64 bits double as the
// chunk's creation timestamp, used for end-to-end latency estimation.
type ChunkID = ID

// Time returns the wall-clock instant embedded in the high 64 bits of id.
func (id ID) Time() time.Time {
	nanos := int64(binary.BigEndian.Uint64(id[:8]))
	return time.Unix(0, nanos)
}

// Less reports whether id sorts strictly before o, lexicographically over
// the 16 raw bytes — i.e. by embedded timestamp, then by counter.
func (id ID) Less(o ID) bool {
	for i := range id {
		if id[i] != o[i] {
			return id[i] < o[i]
		}
	}
	return false
}

// Compare returns -1, 0, or 1 as id is less than, equal to, or greater than o.
func (id ID) Compare(o ID) int {
	switch {
	case id.Less(o):
		return -1
	case o.Less(id):
		return 1
	default:
		return 0
	}
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == ID{} }

func (id ID) String() string {
	return fmt.Sprintf("%x-%x", id[:8], id[8:])
}

// Generator issues monotonically non-decreasing IDs. It is safe for
// concurrent use by many producer threads; each call is serialized by a
// single mutex, mirroring how the teacher's chunk managers serialize
// Append under one lock rather than trying to make ID issuance lock-free.
type Generator struct {
	mu   sync.Mutex
	salt uint32
	ctr  uint32
	last ID
}

// NewGenerator creates a ready-to-use Generator with a fresh random salt,
// drawn from a v4 UUID's random bits rather than a raw crypto/rand read, so
// the salt's source is the same well-tested RNG as every other randomly
// generated identifier in this codebase.
func NewGenerator() *Generator {
	saltSrc := uuid.New()
	return &Generator{salt: binary.BigEndian.Uint32(saltSrc[:4])}
}

// Next returns the next ID, guaranteed strictly greater than every ID
// previously returned by this generator.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var id ID
	binary.BigEndian.PutUint64(id[:8], uint64(time.Now().UnixNano()))
	g.ctr++
	binary.BigEndian.PutUint32(id[8:12], g.salt)
	binary.BigEndian.PutUint32(id[12:16], g.ctr)

	if !g.last.Less(id) {
		// Clock didn't advance (or went backwards): force strict
		// monotonicity by bumping the low bits off the last issued ID.
		id = g.last
		carry := true
		for i := 15; i >= 0 && carry; i-- {
			id[i]++
			carry = id[i] == 0
		}
	}
	g.last = id
	return id
}

// defaultGenerator is used by package-level convenience constructors.
var defaultGenerator = NewGenerator()

// NewRowID returns a fresh RowID from the package-default generator.
func NewRowID() RowID { return defaultGenerator.Next() }

// NewChunkID returns a fresh ChunkID from the package-default generator.
func NewChunkID() ChunkID { return defaultGenerator.Next() }
