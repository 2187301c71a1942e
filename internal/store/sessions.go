package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"choretrack/internal/chores"
)

// Session ties a browser cookie to a family member.
type Session struct {
	Token         string
	User          chores.User
	AdminUnlocked bool
	ExpiresAt     time.Time
}

// CanAdmin reports whether the session may use admin endpoints.
func (s Session) CanAdmin() bool { return s.User.IsParent() || s.AdminUnlocked }

func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, time.Time, error) {
	// 32 random bytes, base64 URL encoded
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	now := s.now()
	expires := now.Add(ttl)
	_, err := s.db.ExecContext(ctx, s.q(`insert into sessions(token, user_id, admin_unlocked, created_at, expires_at) values(?,?,?,?,?)`),
		token, userID, false, now.Unix(), expires.Unix())
	if err != nil {
		return "", time.Time{}, translate(err)
	}
	return token, expires, nil
}

// SessionByToken resolves a live session.
func (s *Store) SessionByToken(ctx context.Context, token string) (Session, error) {
	var (
		sess    Session
		expires int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`select s.token, s.admin_unlocked, s.expires_at, u.id, u.name, u.login, u.role
		from sessions s join users u on u.id=s.user_id
		where s.token=? and s.expires_at > ?`), token, s.now().Unix()).
		Scan(&sess.Token, &sess.AdminUnlocked, &expires, &sess.User.ID, &sess.User.Name, &sess.User.Login, &sess.User.Role)
	if err != nil {
		return Session{}, translate(err)
	}
	sess.ExpiresAt = time.Unix(expires, 0)
	return sess, nil
}

func (s *Store) UnlockAdmin(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, s.q(`update sessions set admin_unlocked=? where token=?`), true, token)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.q(`delete from sessions where token=?`), token)
	return err
}

// PurgeExpiredSessions drops sessions past their expiry.
func (s *Store) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`delete from sessions where expires_at <= ?`), s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
