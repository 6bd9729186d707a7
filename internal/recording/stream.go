package recording

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"chunkstore/internal/chunk"
	"chunkstore/internal/logging"
	"chunkstore/internal/sink"
)

// command is the sealed set of messages the sink-forwarding goroutine
// consumes, per §4.3's command table.
type command interface{ isCommand() }

type cmdRecordMsg struct{ msg sink.LogMsg }
type cmdSwapSink struct{ newSink sink.LogSink }
type cmdFlush struct{ done chan struct{} }
type cmdPopPendingTables struct{}
type cmdShutdown struct{}

func (cmdRecordMsg) isCommand()         {}
func (cmdSwapSink) isCommand()          {}
func (cmdFlush) isCommand()             {}
func (cmdPopPendingTables) isCommand()  {}
func (cmdShutdown) isCommand()          {}

// StreamConfig configures a new RecordingStream.
type StreamConfig struct {
	Info    sink.StoreInfo
	Sink    sink.LogSink
	Batcher BatcherConfig
	Gen     *chunk.Generator
	Logger  *slog.Logger
}

// RecordingStream is the producer-side façade: it owns a Batcher and a
// sink-forwarding goroutine reachable through a single command channel,
// which is the one serialization point per-thread ordering relies on
// (§5). The type is cheap to share: Clone shares the same underlying
// state and bumps a reference count; the last Close flushes and shuts
// down. Go has no implicit destructor, so callers must call Close
// explicitly instead of relying on drop-the-last-handle.
type RecordingStream struct {
	state *streamState
}

type streamState struct {
	batcher *Batcher
	cmdCh   chan command
	doneCh  chan struct{}
	log     *slog.Logger
	refs    int32
	rowGen  *chunk.Generator
	tick    int64

	closeOnce sync.Once
}

// nextTick returns the next value of this stream's monotonic log-tick
// counter, shared across every ThreadContext derived from the stream.
func (st *streamState) nextTick() int64 {
	return atomic.AddInt64(&st.tick, 1)
}

// NewStream constructs a RecordingStream writing to cfg.Sink, with
// cfg.Info resent to every sink a SwapSink installs.
func NewStream(cfg StreamConfig) *RecordingStream {
	gen := cfg.Gen
	if gen == nil {
		gen = chunk.NewGenerator()
	}
	st := &streamState{
		batcher: NewBatcher(cfg.Batcher, gen),
		cmdCh:   make(chan command, 256),
		doneCh:  make(chan struct{}),
		log:     logging.Default(cfg.Logger).With("component", "recording-stream"),
		refs:    1,
		rowGen:  gen,
	}
	go st.forward(cfg.Sink, cfg.Info)
	return &RecordingStream{state: st}
}

// Clone returns a handle sharing this stream's state. The stream shuts
// down only once every clone (and the original) has been Close()d.
func (s *RecordingStream) Clone() *RecordingStream {
	atomic.AddInt32(&s.state.refs, 1)
	return &RecordingStream{state: s.state}
}

// Thread returns a new per-goroutine time-state handle. Go has no
// goroutine-local storage, so callers adopt the convention of creating
// exactly one ThreadContext per goroutine that calls RecordRow and
// reusing it — the idiomatic Go stand-in for the thread-local map keyed
// by RecordingId that the source design calls for.
func (s *RecordingStream) Thread() *ThreadContext {
	return &ThreadContext{stream: s}
}

// record enqueues row with the batcher; called by ThreadContext.RecordRow.
func (s *RecordingStream) record(row RowInput) {
	s.state.batcher.Record(row)
}

// RecordMsg forwards an already-constructed LogMsg to the current sink,
// bypassing the batcher (used for BlueprintActivationCommand and other
// out-of-band messages).
func (s *RecordingStream) RecordMsg(msg sink.LogMsg) {
	s.state.cmdCh <- cmdRecordMsg{msg: msg}
}

// SwapSink installs newSink: the current sink's backlog is drained and
// flushed, the recording-info header is resent to newSink (idempotently,
// per §4.3), and the backlog replayed before newSink is installed as
// current. If the old sink's Flush reports it disconnected, its backlog is
// dropped with a warning instead of replayed.
func (s *RecordingStream) SwapSink(newSink sink.LogSink) {
	s.state.cmdCh <- cmdSwapSink{newSink: newSink}
}

// FlushBlocking flushes the batcher, drains pending chunks, flushes the
// current sink, and blocks until that round-trip completes. This is
// exactly the four-step sequence in §4.3: flush batcher, PopPendingTables,
// Flush(oneshot), wait.
func (s *RecordingStream) FlushBlocking() error {
	s.state.batcher.Flush()
	s.state.cmdCh <- cmdPopPendingTables{}
	done := make(chan struct{})
	s.state.cmdCh <- cmdFlush{done: done}
	<-done
	return nil
}

// Close releases this handle. Once every clone has been Close()d, the
// batcher is flushed and closed, a final flush is requested, and the
// forwarding goroutine is told to shut down. Close blocks on the local
// flush and on the forwarding goroutine joining, but never on sink network
// I/O (a broken sink's Send/Flush errors are logged, not awaited), per the
// "non-blocking shutdown" requirement.
func (s *RecordingStream) Close() {
	if atomic.AddInt32(&s.state.refs, -1) > 0 {
		return
	}
	s.state.closeOnce.Do(func() {
		s.state.batcher.Close()
		done := make(chan struct{})
		s.state.cmdCh <- cmdFlush{done: done}
		<-done
		s.state.cmdCh <- cmdShutdown{}
		<-s.state.doneCh
	})
}

// forward is the sink-writer goroutine: it owns the current sink
// exclusively and is the only goroutine that ever calls Send/Flush/Close
// on it.
func (st *streamState) forward(current sink.LogSink, info sink.StoreInfo) {
	defer close(st.doneCh)

	sendInfo := func(s sink.LogSink) {
		if err := s.Send(sink.SetStoreInfo{RowID: st.rowGen.Next(), Info: info}); err != nil {
			st.log.Warn("recording stream: failed to send store info", "err", err)
		}
	}
	sendInfo(current)

	drainPending := func() {
		for {
			select {
			case c, ok := <-st.batcher.Chunks():
				if !ok {
					return
				}
				if err := current.Send(sink.ArrowMsg{StoreID: info.StoreID, Chunk: c}); err != nil {
					st.log.Warn("recording stream: sink send failed", "err", err)
				}
			default:
				return
			}
		}
	}

	for {
		// Every chunk the batcher has already emitted is drained before the
		// next command is handled (§4.3 invariant), which is what makes
		// FlushBlocking's PopPendingTables + Flush sequence well-defined.
		drainPending()

		select {
		case c, ok := <-st.batcher.Chunks():
			if !ok {
				continue
			}
			if err := current.Send(sink.ArrowMsg{StoreID: info.StoreID, Chunk: c}); err != nil {
				st.log.Warn("recording stream: sink send failed", "err", err)
			}

		case cmd, ok := <-st.cmdCh:
			if !ok {
				return
			}
			switch c := cmd.(type) {
			case cmdRecordMsg:
				if err := current.Send(c.msg); err != nil {
					st.log.Warn("recording stream: sink send failed", "err", err)
				}
			case cmdPopPendingTables:
				drainPending()
			case cmdFlush:
				if err := current.Flush(); err != nil {
					st.log.Warn("recording stream: sink flush failed", "err", err)
				}
				close(c.done)
			case cmdSwapSink:
				drainPending()
				flushErr := current.Flush()
				if flushErr != nil {
					st.log.Warn("recording stream: sink flush before swap failed", "err", flushErr)
				}
				var backlog []sink.LogMsg
				if bs, ok := current.(*sink.BufferedSink); ok {
					backlog = bs.Backlog()
				}
				if len(backlog) > 0 && errors.Is(flushErr, sink.ErrDisconnected) {
					st.log.Warn("recording stream: dropping backlog of disconnected sink", "messages", len(backlog))
					backlog = nil
				}
				if err := current.Close(); err != nil {
					st.log.Warn("recording stream: closing old sink failed", "err", err)
				}
				current = c.newSink
				sendInfo(current)
				for _, msg := range backlog {
					if err := current.Send(msg); err != nil {
						st.log.Warn("recording stream: replaying backlog to new sink failed", "err", err)
						break
					}
				}
			case cmdShutdown:
				drainPending()
				if err := current.Flush(); err != nil {
					st.log.Warn("recording stream: final sink flush failed", "err", err)
				}
				if err := current.Close(); err != nil {
					st.log.Warn("recording stream: closing sink on shutdown failed", "err", err)
				}
				return
			default:
				st.log.Error("recording stream: unknown command", "type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}
