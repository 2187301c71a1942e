package store

import (
	"context"
	"database/sql"
	"fmt"

	"choretrack/internal/chores"
)

// ListTemplates returns all templates ordered by title, with their assigned users.
func (s *Store) ListTemplates(ctx context.Context) ([]chores.TaskTemplate, error) {
	return s.templatesWhere(ctx, s.db, "", nil)
}

func (s *Store) GetTemplate(ctx context.Context, id string) (chores.TaskTemplate, error) {
	return s.getTemplate(ctx, s.db, id)
}

func (s *Store) getTemplate(ctx context.Context, ex execer, id string) (chores.TaskTemplate, error) {
	items, err := s.templatesWhere(ctx, ex, "where id=?", []any{id})
	if err != nil {
		return chores.TaskTemplate{}, err
	}
	if len(items) == 0 {
		return chores.TaskTemplate{}, chores.ErrNotFound
	}
	return items[0], nil
}

func (s *Store) templatesWhere(ctx context.Context, ex execer, cond string, args []any) ([]chores.TaskTemplate, error) {
	rows, err := ex.QueryContext(ctx,
		s.q(`select id, title, coalesce(condition,''), active from task_templates `+cond+` order by title, id`), args...)
	if err != nil {
		return nil, err
	}
	out := []chores.TaskTemplate{}
	idx := map[string]int{}
	for rows.Next() {
		t := chores.TaskTemplate{AssignedUserIDs: []string{}}
		if err := rows.Scan(&t.ID, &t.Title, &t.Condition, &t.Active); err != nil {
			rows.Close()
			return nil, err
		}
		idx[t.ID] = len(out)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	arows, err := ex.QueryContext(ctx,
		`select task_template_id, user_id from task_template_assignments order by task_template_id, user_id`)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var tid, uid string
		if err := arows.Scan(&tid, &uid); err != nil {
			return nil, err
		}
		if i, ok := idx[tid]; ok {
			out[i].AssignedUserIDs = append(out[i].AssignedUserIDs, uid)
		}
	}
	return out, arows.Err()
}

func (s *Store) CreateTemplate(ctx context.Context, t chores.TaskTemplate) (chores.TaskTemplate, error) {
	if err := chores.ValidateTemplate(t); err != nil {
		return chores.TaskTemplate{}, err
	}
	var out chores.TaskTemplate
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertTemplate(ctx, tx, t); err != nil {
			return err
		}
		var err error
		out, err = s.getTemplate(ctx, tx, t.ID)
		return err
	})
	return out, err
}

func (s *Store) insertTemplate(ctx context.Context, tx *sql.Tx, t chores.TaskTemplate) error {
	if _, err := tx.ExecContext(ctx, s.q(`insert into task_templates(id, title, condition, active) values(?,?,?,?)`),
		t.ID, t.Title, nullString(t.Condition), t.Active); err != nil {
		return translate(err)
	}
	return s.replaceAssignments(ctx, tx, t.ID, t.AssignedUserIDs)
}

// TemplatePatch holds the fields to change. A non-nil AssignedUserIDs replaces the
// whole assignment list.
type TemplatePatch struct {
	Title           *string
	Condition       *string
	Active          *bool
	AssignedUserIDs *[]string
}

func (s *Store) UpdateTemplate(ctx context.Context, id string, p TemplatePatch) (chores.TaskTemplate, error) {
	var out chores.TaskTemplate
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := s.getTemplate(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Title != nil {
			t.Title = *p.Title
		}
		if p.Condition != nil {
			t.Condition = *p.Condition
		}
		if p.Active != nil {
			t.Active = *p.Active
		}
		if err := chores.ValidateTemplate(t); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`update task_templates set title=?, condition=?, active=? where id=?`),
			t.Title, nullString(t.Condition), t.Active, id); err != nil {
			return translate(err)
		}
		if p.AssignedUserIDs != nil {
			if err := s.replaceAssignments(ctx, tx, id, *p.AssignedUserIDs); err != nil {
				return err
			}
		}
		out, err = s.getTemplate(ctx, tx, id)
		return err
	})
	return out, err
}

// DeleteTemplate refuses templates that already have task instances; deactivate those instead.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, s.q(`select count(*) from task_instances where template_id=?`), id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: template %q has %d task instances", chores.ErrConflict, id, n)
		}
		if _, err := tx.ExecContext(ctx, s.q(`delete from task_template_assignments where task_template_id=?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`delete from task_templates where id=?`), id)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res)
	})
}

func (s *Store) replaceAssignments(ctx context.Context, tx *sql.Tx, templateID string, userIDs []string) error {
	if _, err := tx.ExecContext(ctx, s.q(`delete from task_template_assignments where task_template_id=?`), templateID); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, uid := range userIDs {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		if _, err := tx.ExecContext(ctx, s.q(`insert into task_template_assignments(task_template_id, user_id) values(?,?)`),
			templateID, uid); err != nil {
			return translate(err)
		}
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
