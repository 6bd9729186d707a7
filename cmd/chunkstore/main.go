// Command chunkstore inspects, diffs, and compacts recording files (§6).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	rootCmd := &cobra.Command{
		Use:   "chunkstore",
		Short: "inspect, diff, and compact chunkstore recording files",
	}

	rootCmd.AddCommand(
		newCmpCmd(logger),
		newPrintCmd(logger),
		newCompactCmd(logger),
		newMergeCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
