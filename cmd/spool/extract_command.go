package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"spool/internal/app"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var output string
	var offset int64
	var length int64

	cmd := &cobra.Command{
		Use:   "extract <track-id>",
		Short: "Reassemble and decrypt a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID(args[0], "track")
			if err != nil {
				return err
			}
			if offset < 0 || length < 0 {
				return fmt.Errorf("offset and length must not be negative")
			}
			return ctx.withApp(func(a *app.App) error {
				reader, track, err := a.Reassembly.OpenTrack(cmd.Context(), trackID)
				if err != nil {
					return err
				}
				defer reader.Close()
				if offset > reader.Size() {
					return fmt.Errorf("offset %d beyond track size %d", offset, reader.Size())
				}
				if _, err := reader.Seek(offset, io.SeekStart); err != nil {
					return err
				}
				var src io.Reader = reader
				if length > 0 {
					src = io.LimitReader(reader, length)
				}

				target := strings.TrimSpace(output)
				if target == "" {
					if _, err := io.Copy(cmd.OutOrStdout(), src); err != nil {
						return fmt.Errorf("extract track %d: %w", trackID, err)
					}
					return nil
				}

				n, err := writeFile(target, src)
				if err != nil {
					return fmt.Errorf("extract track %d: %w", trackID, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes of %q to %s\n", n, track.Title, target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().Int64Var(&offset, "offset", 0, "Start at this byte offset within the track")
	cmd.Flags().Int64Var(&length, "length", 0, "Copy at most this many bytes (0 for the rest)")
	return cmd
}

// writeFile copies src into a new file at path and reports the close error
// when the copy itself succeeded.
func writeFile(path string, src io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	return n, err
}
