package store

import (
	"context"
	"database/sql"
	"fmt"

	"choretrack/internal/chores"
)

func (s *Store) ListUsers(ctx context.Context) ([]chores.User, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name, login, role from users order by name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []chores.User{}
	for rows.Next() {
		var u chores.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Login, &u.Role); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&n)
	return n, err
}

func (s *Store) GetUser(ctx context.Context, id string) (chores.User, error) {
	return s.userWhere(ctx, s.db, `id=?`, id)
}

// UserByLogin matches the login exactly.
func (s *Store) UserByLogin(ctx context.Context, login string) (chores.User, error) {
	return s.userWhere(ctx, s.db, `login=?`, login)
}

func (s *Store) userWhere(ctx context.Context, ex execer, cond string, arg any) (chores.User, error) {
	var u chores.User
	err := ex.QueryRowContext(ctx, s.q(`select id, name, login, role from users where `+cond), arg).
		Scan(&u.ID, &u.Name, &u.Login, &u.Role)
	if err != nil {
		return chores.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u chores.User) (chores.User, error) {
	if err := chores.ValidateUser(u); err != nil {
		return chores.User{}, err
	}
	if err := s.insertUser(ctx, s.db, u); err != nil {
		return chores.User{}, err
	}
	return u, nil
}

func (s *Store) insertUser(ctx context.Context, ex execer, u chores.User) error {
	_, err := ex.ExecContext(ctx, s.q(`insert into users(id, name, login, role) values(?,?,?,?)`),
		u.ID, u.Name, u.Login, u.Role)
	return translate(err)
}

// UserPatch holds the fields to change; nil fields are left as they are.
type UserPatch struct {
	Name  *string
	Login *string
	Role  *chores.Role
}

func (s *Store) UpdateUser(ctx context.Context, id string, p UserPatch) (chores.User, error) {
	var out chores.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		u, err := s.userWhere(ctx, tx, `id=?`, id)
		if err != nil {
			return err
		}
		if p.Name != nil {
			u.Name = *p.Name
		}
		if p.Login != nil {
			u.Login = *p.Login
		}
		if p.Role != nil {
			u.Role = *p.Role
		}
		if err := chores.ValidateUser(u); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`update users set name=?, login=?, role=? where id=?`),
			u.Name, u.Login, u.Role, id); err != nil {
			return translate(err)
		}
		out = u
		return nil
	})
	return out, err
}

// DeleteUser removes the user together with their assignments, quotas, task instances
// and sessions.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"task_template_assignments", "daily_quotas", "task_instances", "sessions"} {
			if _, err := tx.ExecContext(ctx, s.q(fmt.Sprintf(`delete from %s where user_id=?`, table)), id); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx, s.q(`delete from users where id=?`), id)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res)
	})
}
