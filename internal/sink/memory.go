package sink

import "sync"

// MemorySink accumulates every message it receives in order, forever. It
// never disconnects. Used by tests and by "save to memory" style
// consumers.
type MemorySink struct {
	mu   sync.Mutex
	msgs []LogMsg
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Send(msg LogMsg) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Flush() error { return nil }

func (s *MemorySink) Close() error { return nil }

// Messages returns a snapshot of every message accepted so far.
func (s *MemorySink) Messages() []LogMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogMsg(nil), s.msgs...)
}

// Len reports how many messages have been accepted.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}
