package store

import (
	"context"
	"fmt"
)

// Stats returns a count of albums grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM albums GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("album stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// OrphanedChunks counts chunk records belonging to failed albums. Their
// objects remain in the storage backend.
func (s *Store) OrphanedChunks(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM chunks c JOIN albums a ON a.id = c.album_id WHERE a.status = ?`,
		StatusFailed,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orphaned chunks: %w", err)
	}
	return count, nil
}
