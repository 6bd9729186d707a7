package sink

import (
	"fmt"
	"log/slog"
	"sync"

	"chunkstore/internal/logging"
)

// BufferedSink decouples the forwarding goroutine from a potentially slow
// inner sink (disk I/O, network) by queueing messages and writing them from
// a dedicated goroutine. Once the inner sink reports an error, BufferedSink
// transitions to disconnected: further Sends are accepted (queued) but
// Flush reports the error, matching the SinkTransport propagation policy —
// the producer thread never blocks on, or observes, the transport failure
// directly.
type BufferedSink struct {
	disconnectable

	inner LogSink
	log   *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []LogMsg
	closed  bool
	lastErr error

	done chan struct{}
}

// NewBufferedSink wraps inner with an unbounded in-memory queue drained by
// a background goroutine.
func NewBufferedSink(inner LogSink, logger *slog.Logger) *BufferedSink {
	s := &BufferedSink{
		inner: inner,
		log:   logging.Default(logger).With("component", "buffered-sink"),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *BufferedSink) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		msg := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.inner.Send(msg); err != nil {
			s.markDisconnected()
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			s.log.Warn("buffered sink: inner sink failed, disconnecting", "err", err)
		}
	}
}

func (s *BufferedSink) Send(msg LogMsg) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("sink: send on closed buffered sink")
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
	s.cond.Signal()
	return nil
}

// Flush waits for the queue to drain and reports the inner sink's last
// transport error, if any.
func (s *BufferedSink) Flush() error {
	for {
		s.mu.Lock()
		empty := len(s.queue) == 0
		err := s.lastErr
		s.mu.Unlock()
		if empty {
			if err != nil {
				return wrapDisconnected(err)
			}
			return s.inner.Flush()
		}
	}
}

func (s *BufferedSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Signal()
	<-s.done
	return s.inner.Close()
}

// Backlog returns, and clears, every message not yet handed to the inner
// sink. The recording package's SwapSink handling uses this to replay (on
// success) or discard (on permanent disconnect) the backlog.
func (s *BufferedSink) Backlog() []LogMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}
