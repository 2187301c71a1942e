package store

import (
	"context"
	"database/sql"
	"fmt"

	"choretrack/internal/chores"
)

// Household is a complete family definition written in one go.
type Household struct {
	Users     []chores.User
	Templates []chores.TaskTemplate
	Quotas    []chores.DailyQuota
}

// SeedHousehold writes h in a single transaction when the database has no users yet and
// reports whether it did. Any failure leaves the database untouched.
func (s *Store) SeedHousehold(ctx context.Context, h Household) (bool, error) {
	seeded := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `select count(*) from users`).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		for _, u := range h.Users {
			if err := chores.ValidateUser(u); err != nil {
				return fmt.Errorf("user %q: %w", u.ID, err)
			}
			if err := s.insertUser(ctx, tx, u); err != nil {
				return fmt.Errorf("user %q: %w", u.ID, err)
			}
		}
		for _, t := range h.Templates {
			if err := chores.ValidateTemplate(t); err != nil {
				return fmt.Errorf("template %q: %w", t.ID, err)
			}
			if err := s.insertTemplate(ctx, tx, t); err != nil {
				return fmt.Errorf("template %q: %w", t.ID, err)
			}
		}
		for _, q := range h.Quotas {
			if err := chores.ValidateQuota(q); err != nil {
				return fmt.Errorf("quota %s/%d: %w", q.UserID, q.Weekday, err)
			}
			if err := s.upsertQuota(ctx, tx, q); err != nil {
				return fmt.Errorf("quota %s/%d: %w", q.UserID, q.Weekday, err)
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return seeded, nil
}
