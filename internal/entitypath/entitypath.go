// Package entitypath defines EntityPath, the hierarchical identifier for a
// logical object in the recording ("world/robot/camera/image").
package entitypath

import (
	"hash/fnv"
	"strings"
)

// EntityPath is an ordered sequence of path parts. Two paths are equal iff
// their parts are equal; the Hash method provides a stable 64-bit identity
// used as the store's index key, so the store never has to compare the
// string form on the hot path.
type EntityPath struct {
	parts []string
	hash  uint64
}

// New builds an EntityPath from ordered parts.
func New(parts ...string) EntityPath {
	cp := append([]string(nil), parts...)
	return EntityPath{parts: cp, hash: hashParts(cp)}
}

// Parse splits a "/"-delimited string into an EntityPath. Empty segments
// (leading/trailing/duplicate slashes) are dropped.
func Parse(s string) EntityPath {
	raw := strings.Split(s, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return New(parts...)
}

func hashParts(parts []string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Parts returns the ordered path segments. The returned slice must not be mutated.
func (e EntityPath) Parts() []string { return e.parts }

// Hash returns the stable 64-bit identity used by store indices.
func (e EntityPath) Hash() uint64 { return e.hash }

// String renders the canonical "/"-joined form.
func (e EntityPath) String() string { return "/" + strings.Join(e.parts, "/") }

// Equal reports whether e and o denote the same path.
func (e EntityPath) Equal(o EntityPath) bool {
	if e.hash != o.hash || len(e.parts) != len(o.parts) {
		return false
	}
	for i := range e.parts {
		if e.parts[i] != o.parts[i] {
			return false
		}
	}
	return true
}

// IsRoot reports whether e has no parts.
func (e EntityPath) IsRoot() bool { return len(e.parts) == 0 }

// Child returns a new EntityPath with part appended.
func (e EntityPath) Child(part string) EntityPath {
	parts := append(append([]string(nil), e.parts...), part)
	return New(parts...)
}
