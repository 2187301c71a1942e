package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"choretrack/internal/chores"
	"choretrack/internal/config"
	"choretrack/internal/store"
)

type api struct {
	store *store.Store
	log   *zap.Logger
	bus   *EventBus

	passwordHash []byte
	cookieName   string
	cookieSecure bool
	sessionTTL   time.Duration
	loc          *time.Location
	historyStart chores.Day

	now   func() time.Time
	newID func() string

	// rate limiting buckets per IP:key
	rlMu    sync.Mutex
	rl      map[string]*rateBucket
	rlSweep time.Time
}

func newAPI(cfg config.Config, st *store.Store, log *zap.Logger) (*api, error) {
	hash := []byte(cfg.SharedPasswordHash)
	if len(hash) == 0 {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.SharedPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, errors.New("SHARED_PASSWORD_HASH is not a bcrypt hash")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &api{
		store:        st,
		log:          log,
		bus:          NewEventBus(),
		passwordHash: hash,
		cookieName:   cfg.SessionCookieName,
		cookieSecure: cfg.CookieSecure,
		sessionTTL:   cfg.SessionTTL,
		loc:          loc,
		historyStart: cfg.HistoryStartDay(),
		now:          time.Now,
		newID:        uuid.NewString,
		rl:           map[string]*rateBucket{},
	}, nil
}

func (a *api) routes(mux *http.ServeMux) {
	// auth
	mux.HandleFunc("POST /api/auth/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.HandleFunc("GET /api/auth/me", a.handleMe)
	mux.HandleFunc("PATCH /api/me", a.requireAuth(a.handleUpdateMe))
	mux.HandleFunc("POST /api/admin/unlock", a.withRateLimit("unlock", 10, time.Minute, a.requireAuth(a.handleAdminUnlock)))

	mux.HandleFunc("GET /api/health", a.handleHealth)

	// member views
	mux.HandleFunc("GET /api/state", a.requireAuth(a.handleState))
	mux.HandleFunc("GET /api/users", a.requireAuth(a.handleListUsers))
	mux.HandleFunc("GET /api/templates", a.requireAuth(a.handleListTemplates))
	mux.HandleFunc("GET /api/quotas", a.requireAuth(a.handleListQuotas))
	mux.HandleFunc("GET /api/today", a.requireAuth(a.handleToday))
	mux.HandleFunc("GET /api/calendar", a.requireAuth(a.handleCalendar))
	mux.HandleFunc("GET /api/stats", a.requireAuth(a.handleStats))
	mux.HandleFunc("GET /api/events", a.requireAuth(a.handleEvents))

	// task instances
	mux.HandleFunc("GET /api/instances", a.requireAuth(a.handleListInstances))
	mux.HandleFunc("POST /api/instances", a.requireAuth(a.handlePickInstance))
	mux.HandleFunc("POST /api/instances/{id}/done", a.requireAuth(a.handleCompleteInstance))
	mux.HandleFunc("POST /api/instances/{id}/move", a.requireAuth(a.handleMoveInstance))

	// admin
	mux.HandleFunc("POST /api/admin/users", a.requireAdmin(a.handleAdminCreateUser))
	mux.HandleFunc("PATCH /api/admin/users/{id}", a.requireAdmin(a.handleAdminUpdateUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}", a.requireAdmin(a.handleAdminDeleteUser))
	mux.HandleFunc("POST /api/admin/templates", a.requireAdmin(a.handleAdminCreateTemplate))
	mux.HandleFunc("PATCH /api/admin/templates/{id}", a.requireAdmin(a.handleAdminUpdateTemplate))
	mux.HandleFunc("DELETE /api/admin/templates/{id}", a.requireAdmin(a.handleAdminDeleteTemplate))
	mux.HandleFunc("PUT /api/admin/quotas", a.requireAdmin(a.handleAdminUpsertQuota))
	mux.HandleFunc("DELETE /api/admin/instances", a.requireAdmin(a.handleAdminClearInstances))
}

// today is the current date in the household time zone.
func (a *api) today() chores.Day { return chores.DayOf(a.now(), a.loc) }

type rateBucket struct {
	count   int
	resetAt time.Time
}

// clientIP drops the port so every connection from one host shares a bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *api) allow(ip, key string, max int, window time.Duration) bool {
	now := a.now()
	rk := ip + ":" + key
	a.rlMu.Lock()
	defer a.rlMu.Unlock()
	if now.After(a.rlSweep) {
		for k, b := range a.rl {
			if now.After(b.resetAt) {
				delete(a.rl, k)
			}
		}
		a.rlSweep = now.Add(time.Minute)
	}
	b, ok := a.rl[rk]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{count: 0, resetAt: now.Add(window)}
		a.rl[rk] = b
	}
	if b.count >= max {
		return false
	}
	b.count++
	return true
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(clientIP(r), name, max, window) {
			writeError(w, 429, "too many requests")
			return
		}
		next(w, r)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// fail maps domain errors onto statuses; anything else is logged and hidden.
func (a *api) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, chores.ErrNotFound):
		writeError(w, 404, "not found")
	case errors.Is(err, chores.ErrInvalid):
		writeError(w, 400, err.Error())
	case errors.Is(err, chores.ErrConflict), errors.Is(err, chores.ErrNotPending):
		writeError(w, 409, err.Error())
	default:
		a.log.Error(op, zap.Error(err))
		writeError(w, 500, "internal error")
	}
}

// cookie/session helpers
func (a *api) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
	})
}

func (a *api) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

type sessionKey struct{}

func (a *api) sessionFromCookie(r *http.Request) (store.Session, error) {
	c, err := r.Cookie(a.cookieName)
	if err != nil || c.Value == "" {
		return store.Session{}, chores.ErrNotFound
	}
	return a.store.SessionByToken(r.Context(), c.Value)
}

// session returns the session attached by requireAuth.
func session(r *http.Request) store.Session {
	s, _ := r.Context().Value(sessionKey{}).(store.Session)
	return s
}

// requireAuth wraps a handler and enforces a valid session
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := a.sessionFromCookie(r)
		if err != nil {
			if !errors.Is(err, chores.ErrNotFound) {
				a.log.Error("resolve session", zap.Error(err))
			}
			writeError(w, 401, "unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	}
}

// requireAdmin admits parents and sessions unlocked with the admin password.
func (a *api) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !session(r).CanAdmin() {
			writeError(w, 403, "forbidden")
			return
		}
		next(w, r)
	})
}

func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Int64("dur_ms", time.Since(start).Milliseconds()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

// Implement http.Flusher if underlying writer supports it (needed for SSE)
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
