package store

import (
	"context"
	"fmt"
)

func (s *Store) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return n > 0, nil
}

// AddAdmin grants admin rights. Granting twice is not an error.
func (s *Store) AddAdmin(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO admin_users (user_id, created_at) VALUES (?, ?)`, userID, s.now())
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	return nil
}
