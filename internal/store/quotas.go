package store

import (
	"context"

	"choretrack/internal/chores"
)

// ListQuotas returns quotas of userID, or of everyone when userID is empty.
func (s *Store) ListQuotas(ctx context.Context, userID string) ([]chores.DailyQuota, error) {
	query := `select user_id, weekday, tasks_required from daily_quotas`
	var args []any
	if userID != "" {
		query += ` where user_id=?`
		args = append(args, userID)
	}
	rows, err := s.db.QueryContext(ctx, s.q(query+` order by user_id, weekday`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []chores.DailyQuota{}
	for rows.Next() {
		var q chores.DailyQuota
		if err := rows.Scan(&q.UserID, &q.Weekday, &q.TasksRequired); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// UpsertQuota sets the tasks required of a user on a weekday.
func (s *Store) UpsertQuota(ctx context.Context, q chores.DailyQuota) error {
	if err := chores.ValidateQuota(q); err != nil {
		return err
	}
	return s.upsertQuota(ctx, s.db, q)
}

func (s *Store) upsertQuota(ctx context.Context, ex execer, q chores.DailyQuota) error {
	_, err := ex.ExecContext(ctx, s.q(`insert into daily_quotas(user_id, weekday, tasks_required) values(?,?,?)
		on conflict (user_id, weekday) do update set tasks_required=excluded.tasks_required`),
		q.UserID, q.Weekday, q.TasksRequired)
	return translate(err)
}
