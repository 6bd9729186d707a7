package sink

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDisconnected is returned by Send/Flush once a sink has transitioned to
// its disconnected state after a transport failure. Per the specification's
// SinkTransport error kind, the sink does not recover on its own; only a
// SwapSink (handled one layer up, in internal/recording) replaces it.
var ErrDisconnected = errors.New("sink: disconnected")

// LogSink is the abstract write destination a RecordingStream forwards
// messages to. Implementations must not block the forwarding goroutine
// indefinitely; network-backed sinks keep their own internal buffer.
type LogSink interface {
	// Send forwards one message. Returns ErrDisconnected (wrapped) once the
	// sink has given up after a transport failure.
	Send(msg LogMsg) error
	// Flush blocks until every message previously accepted by Send has been
	// durably written (or the sink reports it cannot be).
	Flush() error
	// Close releases any resources the sink owns.
	Close() error
}

// disconnectable is embedded by sinks that can transition to a permanently
// broken state after a transport error, per the SinkTransport error kind.
type disconnectable struct {
	mu           sync.Mutex
	disconnected bool
}

func (d *disconnectable) markDisconnected() {
	d.mu.Lock()
	d.disconnected = true
	d.mu.Unlock()
}

func (d *disconnectable) isDisconnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnected
}

func wrapDisconnected(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}
