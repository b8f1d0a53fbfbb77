package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spool/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var albumID int64

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the spool log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if lines < 0 {
				return fmt.Errorf("--lines must not be negative")
			}
			out := cmd.OutOrStdout()
			emit := func(line string) {
				if albumID > 0 && !logs.MatchAlbum(line, albumID) {
					return
				}
				fmt.Fprintln(out, line)
			}

			path := cfg.LogPath()
			limit := lines
			if albumID > 0 {
				// Filtering happens after the tail, so read wider.
				limit = lines * 20
			}
			tail, offset, err := logs.Last(path, limit)
			if err != nil {
				return err
			}
			if albumID > 0 {
				var kept []string
				for _, line := range tail {
					if logs.MatchAlbum(line, albumID) {
						kept = append(kept, line)
					}
				}
				tail = kept[max(0, len(kept)-lines):]
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, logs.DefaultPollInterval, emit)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().Int64Var(&albumID, "album", 0, "Only show lines for this album")
	return cmd
}
