package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Codec selects the compression applied to a FileSink's framed stream.
type Codec int

const (
	CodecNone Codec = iota
	CodecZstd
	CodecBrotli
)

// fileFormatVersion is the leading header byte every framed stream starts
// with, versioning the frame layout (length-prefixed msgpack envelopes).
const fileFormatVersion byte = 1

// FileSink writes a framed, optionally compressed stream of LogMsg values
// to an io.WriteCloser: a two-byte uncompressed header (format version,
// then codec), then one
// length-prefixed msgpack envelope (see wire.go) per message. Two FileSink
// outputs concatenated message-for-message (ignoring the per-file header)
// satisfy the specification's merge-by-concatenation file-format
// requirement.
type FileSink struct {
	disconnectable

	mu       sync.Mutex
	w        io.WriteCloser
	codec    Codec
	compress io.WriteCloser // wraps w when Codec != CodecNone; nil otherwise
	target   io.Writer      // the writer Send actually writes frames to
	wroteHdr bool
}

// NewFileSink opens a FileSink writing to w under the given codec.
func NewFileSink(w io.WriteCloser, codec Codec) (*FileSink, error) {
	s := &FileSink{w: w, codec: codec}
	switch codec {
	case CodecNone:
		s.target = w
	case CodecZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("sink: create zstd writer: %w", err)
		}
		s.compress = enc
		s.target = enc
	case CodecBrotli:
		enc := brotli.NewWriter(w)
		s.compress = enc
		s.target = enc
	default:
		return nil, fmt.Errorf("sink: unknown codec %d", codec)
	}
	return s, nil
}

func (s *FileSink) Send(msg LogMsg) error {
	if s.isDisconnected() {
		return ErrDisconnected
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.wroteHdr {
		// The codec byte lives in the uncompressed header (written to w
		// directly, not s.target) so a reader knows which decompressor to
		// wrap the remainder of the stream in before it reads any frames.
		if _, err := s.w.Write([]byte{fileFormatVersion, byte(s.codec)}); err != nil {
			s.markDisconnected()
			return wrapDisconnected(err)
		}
		s.wroteHdr = true
	}

	raw, err := EncodeMsg(msg)
	if err != nil {
		return fmt.Errorf("sink: encode message: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(raw)))
	if _, err := s.target.Write(lenBuf[:]); err != nil {
		s.markDisconnected()
		return wrapDisconnected(err)
	}
	if _, err := s.target.Write(raw); err != nil {
		s.markDisconnected()
		return wrapDisconnected(err)
	}
	return nil
}

func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.target.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.compress != nil {
		if err := s.compress.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.w.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("sink: close: %v", errs)
	}
	return nil
}

// ReadFrames reads every framed message from r (as written by FileSink),
// tolerating multiple SetStoreInfo messages by keeping only the last-seen
// one (whatever its store id) in the first one's position, per the merge
// semantics in §6.
func ReadFrames(r io.Reader) ([]LogMsg, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("sink: read header: %w", err)
	}
	if hdr[0] != fileFormatVersion {
		return nil, fmt.Errorf("sink: unsupported file format version %d", hdr[0])
	}

	switch Codec(hdr[1]) {
	case CodecNone:
		// r already framed directly.
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("sink: create zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	case CodecBrotli:
		r = brotli.NewReader(r)
	default:
		return nil, fmt.Errorf("sink: unknown codec %d in file header", hdr[1])
	}

	var msgs []LogMsg
	storeInfoIdx := -1
	for {
		var lenBuf [4]byte
		_, err := io.ReadFull(r, lenBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sink: read frame length: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		raw := make([]byte, n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("sink: read frame body: %w", err)
		}
		msg, err := DecodeMsg(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := msg.(SetStoreInfo); ok {
			if storeInfoIdx >= 0 {
				// Keep the slot of the first SetStoreInfo, but its last-seen
				// contents: a later header in the same stream supersedes an
				// earlier one rather than appending a second entry.
				msgs[storeInfoIdx] = msg
				continue
			}
			storeInfoIdx = len(msgs)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
