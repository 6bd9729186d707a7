package main

import (
	"fmt"
	"log/slog"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"chunkstore/internal/chunk"
)

func newCmpCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cmp IN1 IN2",
		Short: "compare two recording files for equivalent contents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fullDump, _ := cmd.Flags().GetBool("full-dump")
			return runCmp(args[0], args[1], fullDump)
		},
	}
	cmd.Flags().Bool("full-dump", false, "on mismatch, print the full per-chunk diff instead of a summary")
	return cmd
}

// chunkSummary is a comparable projection of a chunk's exported surface,
// used so go-cmp has something with visible fields to diff — *chunk.Chunk
// itself keeps its fields unexported.
type chunkSummary struct {
	Entity     string
	Rows       int
	Static     bool
	Timelines  []string
	Components []string
}

func summarize(c *chunk.Chunk) chunkSummary {
	timelines := make([]string, 0, len(c.Timelines()))
	for _, t := range c.Timelines() {
		timelines = append(timelines, string(t))
	}
	comps := make([]string, 0, len(c.Components()))
	for _, comp := range c.Components() {
		comps = append(comps, string(comp))
	}
	return chunkSummary{
		Entity:     c.EntityPath().String(),
		Rows:       c.NumRows(),
		Static:     c.IsStatic(),
		Timelines:  timelines,
		Components: comps,
	}
}

func runCmp(path1, path2 string, fullDump bool) error {
	rec1, err := readRecording(path1)
	if err != nil {
		return err
	}
	rec2, err := readRecording(path2)
	if err != nil {
		return err
	}

	var mismatches []string

	id1, id2 := "", ""
	if rec1.info != nil {
		id1 = rec1.info.ApplicationID
	}
	if rec2.info != nil {
		id2 = rec2.info.ApplicationID
	}
	if id1 != id2 {
		mismatches = append(mismatches, fmt.Sprintf("application_id: %q != %q", id1, id2))
	}

	if len(rec1.chunks) != len(rec2.chunks) {
		mismatches = append(mismatches, fmt.Sprintf("chunk count: %d != %d", len(rec1.chunks), len(rec2.chunks)))
	} else {
		for i := range rec1.chunks {
			a, b := rec1.chunks[i], rec2.chunks[i]
			if chunk.AreSimilar(a, b) {
				continue
			}
			if fullDump {
				mismatches = append(mismatches, fmt.Sprintf("chunk %d:\n%s", i, cmp.Diff(summarize(a), summarize(b))))
			} else {
				mismatches = append(mismatches, fmt.Sprintf("chunk %d differs (entity=%s)", i, a.EntityPath().String()))
			}
		}
	}

	if len(mismatches) == 0 {
		fmt.Println("recordings are equivalent")
		return nil
	}
	for _, m := range mismatches {
		fmt.Println(m)
	}
	return fmt.Errorf("recordings differ (%d mismatch(es))", len(mismatches))
}
