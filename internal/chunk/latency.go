package chunk

import "time"

// Latency estimates end-to-end ingest latency by comparing now against the
// creation timestamp embedded in the chunk's ChunkID. Negative results
// (clock skew, or a chunk constructed in the future by a test) are clamped
// to zero.
func (c *Chunk) Latency(now time.Time) time.Duration {
	d := now.Sub(c.id.Time())
	if d < 0 {
		return 0
	}
	return d
}
