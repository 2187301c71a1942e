package main

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"choretrack/internal/chores"
)

func (a *api) passwordOK(pw string) bool {
	return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(pw)) == nil
}

// Auth handlers
func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct{ Login, Password string }
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Login) == "" || req.Password == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	if !a.passwordOK(req.Password) {
		writeError(w, 401, "invalid credentials")
		return
	}
	u, err := a.store.UserByLogin(r.Context(), strings.TrimSpace(req.Login))
	if err != nil {
		if !errors.Is(err, chores.ErrNotFound) {
			a.log.Error("login lookup", zap.Error(err))
		}
		writeError(w, 401, "invalid credentials")
		return
	}
	token, exp, err := a.store.CreateSession(r.Context(), u.ID, a.sessionTTL)
	if err != nil {
		a.log.Error("create session", zap.Error(err))
		writeError(w, 500, "internal error")
		return
	}
	a.setSessionCookie(w, token, exp)
	a.log.Info("login", zap.String("user", u.ID))
	writeJSON(w, 200, map[string]any{"ok": true, "user": u, "admin": u.IsParent()})
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		_ = a.store.DeleteSession(r.Context(), c.Value)
	}
	a.clearSessionCookie(w)
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessionFromCookie(r)
	if err != nil {
		// For anonymous users return 200 with user: null to avoid noisy 401s on the login page
		writeJSON(w, 200, map[string]any{"user": nil})
		return
	}
	writeJSON(w, 200, map[string]any{"user": s.User, "admin": s.CanAdmin(), "expires_at": s.ExpiresAt.UTC()})
}

// POST /api/admin/unlock { password }
func (a *api) handleAdminUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct{ Password string }
	if err := readJSON(w, r, &req); err != nil || req.Password == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	s := session(r)
	if s.CanAdmin() {
		writeJSON(w, 200, map[string]any{"ok": true, "admin": true})
		return
	}
	if !a.passwordOK(req.Password) {
		writeError(w, 403, "wrong password")
		return
	}
	if err := a.store.UnlockAdmin(r.Context(), s.Token); err != nil {
		a.fail(w, "unlock admin", err)
		return
	}
	a.log.Info("admin unlocked", zap.String("user", s.User.ID))
	writeJSON(w, 200, map[string]any{"ok": true, "admin": true})
}
