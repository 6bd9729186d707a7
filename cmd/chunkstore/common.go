package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"chunkstore/internal/chunk"
	"chunkstore/internal/sink"
	"chunkstore/internal/store"
)

// recording is the decoded contents of one input file: the last-seen
// SetStoreInfo header, every chunk carried by ArrowMsg frames, and any
// BlueprintActivationCommand messages passed through unexamined.
type recording struct {
	info   *sink.StoreInfo
	chunks []*chunk.Chunk
	other  []sink.LogMsg
}

func readRecording(path string) (recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return recording{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	msgs, err := sink.ReadFrames(f)
	if err != nil {
		return recording{}, fmt.Errorf("read %s: %w", path, err)
	}

	var rec recording
	for _, msg := range msgs {
		switch m := msg.(type) {
		case sink.SetStoreInfo:
			info := m.Info
			rec.info = &info
		case sink.ArrowMsg:
			rec.chunks = append(rec.chunks, m.Chunk)
		default:
			rec.other = append(rec.other, msg)
		}
	}
	return rec, nil
}

// compactionPolicyFromEnv builds a CompactionPolicy from the
// CHUNKSTORE_CHUNK_MAX_ROWS / CHUNKSTORE_CHUNK_MAX_ROWS_IF_UNSORTED /
// CHUNKSTORE_CHUNK_MAX_BYTES environment variables (§6), falling back to
// disabled compaction when none are set.
func compactionPolicyFromEnv() store.CompactionPolicy {
	maxRows := envInt("CHUNKSTORE_CHUNK_MAX_ROWS", 0)
	maxRowsUnsorted := envInt("CHUNKSTORE_CHUNK_MAX_ROWS_IF_UNSORTED", 0)
	maxBytes := envInt64("CHUNKSTORE_CHUNK_MAX_BYTES", 0)
	if maxRows == 0 && maxRowsUnsorted == 0 && maxBytes == 0 {
		return store.DisabledCompaction()
	}
	return store.NewCompactionPolicy(maxRows, maxRowsUnsorted, maxBytes)
}

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(name string, def int64) int64 {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// writeRecording re-emits info, chunks, and other to a freshly created
// FileSink at path, in that order, matching the file format's expectation
// that SetStoreInfo precedes the data it describes.
func writeRecording(path string, rec recording, logger *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	s, err := sink.NewFileSink(f, sink.CodecZstd)
	if err != nil {
		f.Close()
		return fmt.Errorf("create file sink for %s: %w", path, err)
	}

	if rec.info != nil {
		if err := s.Send(sink.SetStoreInfo{RowID: chunk.NewRowID(), Info: *rec.info}); err != nil {
			s.Close()
			return fmt.Errorf("write store info: %w", err)
		}
	}
	storeID := ""
	if rec.info != nil {
		storeID = rec.info.StoreID
	}
	for _, c := range rec.chunks {
		if err := s.Send(sink.ArrowMsg{StoreID: storeID, Chunk: c}); err != nil {
			s.Close()
			return fmt.Errorf("write chunk %s: %w", c.ID().String(), err)
		}
	}
	for _, msg := range rec.other {
		if err := s.Send(msg); err != nil {
			s.Close()
			return fmt.Errorf("write message: %w", err)
		}
	}
	if err := s.Flush(); err != nil {
		s.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	logger.Info("wrote recording", "path", path, "chunks", len(rec.chunks))
	return nil
}
