package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"choretrack/internal/chores"
)

// InstanceFilter narrows ListInstances. Zero fields do not filter.
type InstanceFilter struct {
	UserID string
	Date   chores.Day
	From   chores.Day // inclusive
	To     chores.Day // inclusive
}

const instanceCols = `id, user_id, template_id, date, status, move_count`

func scanInstance(sc interface{ Scan(...any) error }) (chores.TaskInstance, error) {
	var i chores.TaskInstance
	err := sc.Scan(&i.ID, &i.UserID, &i.TemplateID, &i.Date, &i.Status, &i.MoveCount)
	return i, err
}

// ListInstances returns matching instances, newest date first.
func (s *Store) ListInstances(ctx context.Context, f InstanceFilter) ([]chores.TaskInstance, error) {
	return s.listInstances(ctx, s.db, f)
}

func (s *Store) listInstances(ctx context.Context, ex execer, f InstanceFilter) ([]chores.TaskInstance, error) {
	where := []string{}
	args := []any{}
	if f.UserID != "" {
		where = append(where, "user_id=?")
		args = append(args, f.UserID)
	}
	if !f.Date.IsZero() {
		where = append(where, "date=?")
		args = append(args, f.Date)
	}
	if !f.From.IsZero() {
		where = append(where, "date>=?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "date<=?")
		args = append(args, f.To)
	}
	query := `select ` + instanceCols + ` from task_instances`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += " order by date desc, created_at, id"

	rows, err := ex.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []chores.TaskInstance{}
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *Store) GetInstance(ctx context.Context, id string) (chores.TaskInstance, error) {
	return s.getInstance(ctx, s.db, id)
}

func (s *Store) getInstance(ctx context.Context, ex execer, id string) (chores.TaskInstance, error) {
	i, err := scanInstance(ex.QueryRowContext(ctx, s.q(`select `+instanceCols+` from task_instances where id=?`), id))
	if err != nil {
		return chores.TaskInstance{}, translate(err)
	}
	return i, nil
}

func (s *Store) insertInstance(ctx context.Context, ex execer, i chores.TaskInstance) error {
	_, err := ex.ExecContext(ctx, s.q(`insert into task_instances(`+instanceCols+`) values(?,?,?,?,?,?)`),
		i.ID, i.UserID, i.TemplateID, i.Date, i.Status, i.MoveCount)
	return translate(err)
}

// PickInstance records that the user took on a template for the instance's date. The
// template must be active and assigned to the user, and not yet picked on that date.
func (s *Store) PickInstance(ctx context.Context, inst chores.TaskInstance) (chores.TaskInstance, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.userWhere(ctx, tx, `id=?`, inst.UserID); err != nil {
			return fmt.Errorf("user %q: %w", inst.UserID, err)
		}
		t, err := s.getTemplate(ctx, tx, inst.TemplateID)
		if err != nil {
			return fmt.Errorf("template %q: %w", inst.TemplateID, err)
		}
		existing, err := s.listInstances(ctx, tx, InstanceFilter{UserID: inst.UserID, Date: inst.Date})
		if err != nil {
			return err
		}
		if err := chores.CanPick(t, inst.UserID, existing); err != nil {
			return err
		}
		return s.insertInstance(ctx, tx, inst)
	})
	if err != nil {
		return chores.TaskInstance{}, err
	}
	return inst, nil
}

// CompleteInstance marks a pending instance done.
func (s *Store) CompleteInstance(ctx context.Context, id string) (chores.TaskInstance, error) {
	var out chores.TaskInstance
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.getInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		done, err := chores.Complete(cur)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, tx, done); err != nil {
			return err
		}
		out = done
		return nil
	})
	return out, err
}

// MoveInstance closes a pending instance as moved and creates its continuation on the
// following day, atomically.
func (s *Store) MoveInstance(ctx context.Context, id, nextID string) (moved, next chores.TaskInstance, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.getInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		m, n, err := chores.Move(cur, nextID)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, tx, m); err != nil {
			return err
		}
		if err := s.insertInstance(ctx, tx, n); err != nil {
			return err
		}
		moved, next = m, n
		return nil
	})
	return moved, next, err
}

// transition writes a status change; the pending guard keeps terminal rows terminal
// even when two requests race.
func (s *Store) transition(ctx context.Context, tx *sql.Tx, i chores.TaskInstance) error {
	res, err := tx.ExecContext(ctx, s.q(`update task_instances set status=?, move_count=? where id=? and status=?`),
		i.Status, i.MoveCount, i.ID, chores.StatusPending)
	if err != nil {
		return err
	}
	if err := affectedOrNotFound(res); err != nil {
		return fmt.Errorf("%w: %s changed concurrently", chores.ErrNotPending, i.ID)
	}
	return nil
}

// DeleteAllInstances clears the whole task history and reports how many rows went.
func (s *Store) DeleteAllInstances(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from task_instances`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
