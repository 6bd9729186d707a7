package sink

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// ProxySink forwards encoded messages to an io.Writer (typically a network
// connection) under a send-rate limit, mirroring gastrolog's
// internal/server/ratelimit.go token-bucket throttling. On any write error
// it transitions to disconnected; the forwarding thread must then wait for
// a SwapSink.
type ProxySink struct {
	disconnectable

	w       io.Writer
	limiter *rate.Limiter
}

// NewProxySink wraps w with a token-bucket limiter allowing burst messages
// immediately and ratePerSec thereafter. A zero ratePerSec disables
// limiting (rate.Inf).
func NewProxySink(w io.Writer, ratePerSec float64, burst int) *ProxySink {
	limit := rate.Limit(ratePerSec)
	if ratePerSec <= 0 {
		limit = rate.Inf
	}
	return &ProxySink{w: w, limiter: rate.NewLimiter(limit, burst)}
}

func (s *ProxySink) Send(msg LogMsg) error {
	if s.isDisconnected() {
		return ErrDisconnected
	}
	if err := s.limiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("sink: rate limiter: %w", err)
	}
	raw, err := EncodeMsg(msg)
	if err != nil {
		return fmt.Errorf("sink: encode message: %w", err)
	}
	if _, err := s.w.Write(raw); err != nil {
		s.markDisconnected()
		return wrapDisconnected(err)
	}
	return nil
}

func (s *ProxySink) Flush() error { return nil }

func (s *ProxySink) Close() error {
	if wc, ok := s.w.(io.Closer); ok {
		return wc.Close()
	}
	return nil
}
