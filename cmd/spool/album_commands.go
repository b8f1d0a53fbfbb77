package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"spool/internal/api"
	"spool/internal/app"
	"spool/internal/store"
)

func newAlbumsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "albums",
		Short: "List imported albums",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []store.Status
			if statusFilter != "" {
				status, ok := store.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}
			return ctx.withApp(func(a *app.App) error {
				albums, err := a.Store.ListAlbums(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.AlbumListResponse{Albums: api.FromAlbums(albums)})
				}
				if len(albums) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No albums")
					return nil
				}
				rows := make([][]string, 0, len(albums))
				var totalBytes int64
				for _, album := range albums {
					totalBytes += album.TotalBytes
					rows = append(rows, []string{
						strconv.FormatInt(album.ID, 10),
						album.Title,
						string(album.Status),
						strconv.Itoa(album.TotalChunks),
						formatSize(album.TotalBytes),
					})
				}
				footer := []string{"", fmt.Sprintf("%d albums", len(albums)), "", "", formatSize(totalBytes)}
				fmt.Fprintln(cmd.OutOrStdout(), renderTableWithFooter(
					[]string{"ID", "Title", "Status", "Chunks", "Size"},
					rows,
					footer,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only list albums in this status")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newTracksCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tracks <album-id>",
		Short: "List the tracks of an album",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			albumID, err := parseID(args[0], "album")
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app.App) error {
				album, err := a.Store.GetAlbum(cmd.Context(), albumID)
				if err != nil {
					return err
				}
				if album == nil {
					return fmt.Errorf("album %d not found", albumID)
				}
				tracks, err := a.Store.ListTracks(cmd.Context(), albumID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.TrackListResponse{Tracks: api.FromTracks(tracks)})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", album.Title, album.Status)
				rows := make([][]string, 0, len(tracks))
				for _, track := range tracks {
					rows = append(rows, []string{
						strconv.FormatInt(track.ID, 10),
						strconv.Itoa(track.Number),
						track.Title,
						filepath.Base(track.FilePath),
						yesNo(track.Status == store.StatusComplete),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "#", "Title", "File", "Available"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func parseID(value, kind string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, value)
	}
	return id, nil
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
