package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chunkstore/internal/store"
)

func newCompactCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "rewrite a recording file through compaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("input")
			out, _ := cmd.Flags().GetString("output")
			if in == "" || out == "" {
				return fmt.Errorf("compact: both -i and -o are required")
			}
			return runMergeFiles([]string{in}, out, logger)
		},
	}
	cmd.Flags().StringP("input", "i", "", "input recording file")
	cmd.Flags().StringP("output", "o", "", "output recording file")
	return cmd
}

// runMergeFiles is shared by compact (one input) and merge (many inputs):
// it loads every input recording (concurrently — each file read is
// independent I/O), replays their chunks in input order through a Store
// under the configured compaction policy, then re-emits whatever the
// store holds once every chunk has been inserted.
func runMergeFiles(inputs []string, output string, logger *slog.Logger) error {
	recs := make([]recording, len(inputs))
	g, _ := errgroup.WithContext(context.Background())
	for i, path := range inputs {
		i, path := i, path
		g.Go(func() error {
			rec, err := readRecording(path)
			if err != nil {
				return err
			}
			recs[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s := store.New(store.Config{
		StoreID:    "chunkstore-cli",
		Logger:     logger,
		Compaction: compactionPolicyFromEnv(),
	})

	var out recording
	for i, rec := range recs {
		if rec.info != nil {
			out.info = rec.info
		}
		out.other = append(out.other, rec.other...)
		for _, c := range rec.chunks {
			if _, err := s.InsertChunk(c); err != nil {
				return fmt.Errorf("insert chunk from %s: %w", inputs[i], err)
			}
		}
	}

	out.chunks = s.Chunks()
	if err := writeRecording(output, out, logger); err != nil {
		return err
	}
	fmt.Printf("wrote %d chunk(s) to %s\n", len(out.chunks), output)
	return nil
}
