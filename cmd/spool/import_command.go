package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"spool/internal/app"
	"spool/internal/discovery"
	"spool/internal/importer"
	"spool/internal/preflight"
	"spool/internal/progress"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var title string
	var chunkSize int64
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Chunk, encrypt and upload an album folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve source: %w", err)
			}

			if !skipChecks {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
					for _, r := range failed {
						fmt.Fprintf(cmd.ErrOrStderr(), "preflight %s: %s\n", r.Name, r.Detail)
					}
					return fmt.Errorf("%d preflight check(s) failed", len(failed))
				}
			}

			files, err := discovery.Discover(source, discovery.Options{Extensions: cfg.Discovery.Extensions})
			if err != nil {
				return err
			}

			return ctx.withApp(func(a *app.App) error {
				size := chunkSize
				if size <= 0 {
					size = int64(cfg.Pipeline.ChunkSizeBytes)
				}
				h, err := a.Importer.Start(cmd.Context(), importer.Request{
					Title:      strings.TrimSpace(title),
					SourcePath: source,
					Files:      files,
					ChunkSize:  size,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Album %d: %d files, %d tracks, %d chunks\n", h.AlbumID, len(files), len(h.Tracks), h.TotalChunks)
				printer := newProgressPrinter(out)
				for evt := range h.Events() {
					printer.print(evt)
					if evt.Terminal() {
						break
					}
				}
				h.Detach()
				printer.finish()

				if err := h.Wait(); err != nil {
					return fmt.Errorf("import album %d: %w", h.AlbumID, err)
				}
				fmt.Fprintf(out, "Imported album %d (%d tracks)\n", h.AlbumID, len(h.Tracks))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Album title (default: inferred from the folder name)")
	cmd.Flags().Int64Var(&chunkSize, "chunk-size", 0, "Chunk size in bytes (default: pipeline.chunk_size_bytes)")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip preflight checks")
	return cmd
}

// progressPrinter redraws a single line on terminals and prints one line per
// ten percent otherwise.
type progressPrinter struct {
	out     io.Writer
	tty     bool
	last    int
	drawing bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &progressPrinter{out: out, tty: tty, last: -1}
}

func (p *progressPrinter) print(evt progress.Event) {
	switch evt.Kind {
	case progress.KindProgress:
		if p.tty {
			fmt.Fprintf(p.out, "\r%3d%% %d/%d chunks", evt.Percent, evt.Current, evt.Total)
			p.drawing = true
			return
		}
		if bucket := evt.Percent / 10; bucket != p.last {
			p.last = bucket
			fmt.Fprintf(p.out, "%3d%% %d/%d chunks\n", evt.Percent, evt.Current, evt.Total)
		}
	case progress.KindTrackComplete:
		p.clear()
		fmt.Fprintf(p.out, "track %d complete\n", evt.TrackID)
	case progress.KindFailed:
		p.clear()
		fmt.Fprintf(p.out, "failed (%s): %s\n", evt.ErrorKind, evt.Error)
	}
}

func (p *progressPrinter) clear() {
	if p.drawing {
		fmt.Fprintln(p.out)
		p.drawing = false
	}
}

func (p *progressPrinter) finish() { p.clear() }
