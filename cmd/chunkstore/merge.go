package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newMergeCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "merge multiple recording files into one, compacting along the way",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, _ := cmd.Flags().GetStringArray("input")
			out, _ := cmd.Flags().GetString("output")
			if len(inputs) == 0 || out == "" {
				return fmt.Errorf("merge: at least one -i and an -o are required")
			}
			return runMergeFiles(inputs, out, logger)
		},
	}
	cmd.Flags().StringArrayP("input", "i", nil, "input recording file (repeatable)")
	cmd.Flags().StringP("output", "o", "", "output recording file")
	return cmd
}
