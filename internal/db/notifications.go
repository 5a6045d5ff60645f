package db

import (
	"context"
	"fmt"
)

// ClaimNotification atomically reserves link in the dedup ledger. It reports
// true for the first caller only; the unique constraint on link resolves
// concurrent claims from any number of processes.
func (s *Store) ClaimNotification(ctx context.Context, link string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin claim for %q: %w", link, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO notifications (link) VALUES ($1) ON CONFLICT (link) DO NOTHING`, link)
	if err != nil {
		return false, fmt.Errorf("claim %q: %w", link, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %q: %w", link, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit claim for %q: %w", link, err)
	}
	return n == 1, nil
}
