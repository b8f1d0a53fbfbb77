package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"spool/internal/pieces"
)

func newPiecesCommand() *cobra.Command {
	var pieceLength, chunkSize, totalSize int64
	var piece, chunk int

	cmd := &cobra.Command{
		Use:         "pieces",
		Short:       "Map torrent pieces to chunks and back",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			pieceSet := cmd.Flags().Changed("piece")
			chunkSet := cmd.Flags().Changed("chunk")
			if pieceSet == chunkSet {
				return fmt.Errorf("exactly one of --piece or --chunk is required")
			}
			m, err := pieces.NewMapper(pieceLength, chunkSize, 0, totalSize)
			if err != nil {
				return err
			}

			var ranges []pieces.Range
			var unit string
			if pieceSet {
				if _, _, ok := m.PieceSpan(piece); !ok {
					return fmt.Errorf("piece %d out of range (0-%d)", piece, m.TotalPieces-1)
				}
				ranges = m.PieceToChunks(piece)
				unit = "Chunk"
			} else {
				if _, _, ok := m.ChunkSpan(chunk); !ok {
					return fmt.Errorf("chunk %d out of range (0-%d)", chunk, m.TotalChunks()-1)
				}
				ranges = m.ChunkToPieces(chunk)
				unit = "Piece"
			}

			rows := make([][]string, 0, len(ranges))
			var total int64
			for _, r := range ranges {
				total += r.Len()
				rows = append(rows, []string{
					strconv.Itoa(r.Index),
					strconv.FormatInt(r.Start, 10),
					strconv.FormatInt(r.End, 10),
					strconv.FormatInt(r.Len(), 10),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTableWithFooter(
				[]string{unit, "Start", "End", "Bytes"},
				rows,
				[]string{"", "", "", strconv.FormatInt(total, 10)},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().Int64Var(&pieceLength, "piece-length", 0, "Torrent piece length in bytes")
	cmd.Flags().Int64Var(&chunkSize, "chunk-size", 0, "Chunk size in bytes")
	cmd.Flags().Int64Var(&totalSize, "total-size", 0, "Total size of the torrent payload in bytes")
	cmd.Flags().IntVar(&piece, "piece", 0, "Piece index to map to chunks")
	cmd.Flags().IntVar(&chunk, "chunk", 0, "Chunk index to map to pieces")
	_ = cmd.MarkFlagRequired("piece-length")
	_ = cmd.MarkFlagRequired("chunk-size")
	_ = cmd.MarkFlagRequired("total-size")
	return cmd
}
