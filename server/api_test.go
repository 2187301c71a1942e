package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"choretrack/internal/chores"
	"choretrack/internal/config"
	"choretrack/internal/seed"
	"choretrack/internal/store"
)

type testEnv struct {
	t   *testing.T
	api *api
	h   http.Handler
}

// newTestEnv serves the default family from a fresh sqlite database on Tuesday 2024-12-03.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fam, err := seed.Default()
	require.NoError(t, err)
	_, err = seed.Apply(ctx, st, fam)
	require.NoError(t, err)

	cfg := config.Config{
		Timezone:          "UTC",
		SharedPassword:    "1234",
		SessionTTL:        time.Hour,
		SessionCookieName: "test_sess",
		HistoryStart:      "2024-11-26",
	}
	a, err := newAPI(cfg, st, zap.NewNop())
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2024, 12, 3, 10, 0, 0, 0, time.UTC) }

	mux := http.NewServeMux()
	a.routes(mux)
	return &testEnv{t: t, api: a, h: mux}
}

func (e *testEnv) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(login string) *http.Cookie {
	e.t.Helper()
	rec := e.do("POST", "/api/auth/login", map[string]string{"login": login, "password": "1234"}, nil)
	require.Equal(e.t, 200, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test_sess" {
			return c
		}
	}
	e.t.Fatal("no session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) pick(c *http.Cookie, templateID string) chores.TaskInstance {
	e.t.Helper()
	rec := e.do("POST", "/api/instances", map[string]string{"template_id": templateID}, c)
	require.Equal(e.t, 201, rec.Code, rec.Body.String())
	return decode[chores.TaskInstance](e.t, rec)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do("POST", "/api/auth/login", map[string]string{"login": "Nani", "password": "wrong"}, nil)
	assert.Equal(t, 401, rec.Code)
	rec = e.do("POST", "/api/auth/login", map[string]string{"login": "nobody", "password": "1234"}, nil)
	assert.Equal(t, 401, rec.Code)
	rec = e.do("POST", "/api/auth/login", map[string]string{"login": "Nani"}, nil)
	assert.Equal(t, 400, rec.Code)

	anon := decode[map[string]any](t, e.do("GET", "/api/auth/me", nil, nil))
	assert.Nil(t, anon["user"])

	c := e.login("Nani")
	me := decode[struct {
		User  chores.User `json:"user"`
		Admin bool        `json:"admin"`
	}](t, e.do("GET", "/api/auth/me", nil, c))
	assert.Equal(t, "nani", me.User.ID)
	assert.False(t, me.Admin)

	rec = e.do("POST", "/api/auth/logout", nil, c)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, 401, e.do("GET", "/api/state", nil, c).Code)
}

func TestUnauthorizedEnvelope(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do("GET", "/api/today", nil, nil)
	require.Equal(t, 401, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "unauthorized", body["error"])
}

func TestPickCompleteMove(t *testing.T) {
	e := newTestEnv(t)
	c := e.login("Nani")

	pe := e.pick(c, "pe")
	assert.Equal(t, chores.StatusPending, pe.Status)
	assert.Equal(t, "2024-12-03", pe.Date.String())
	reading := e.pick(c, "reading")

	assert.Equal(t, 409, e.do("POST", "/api/instances", map[string]string{"template_id": "pe"}, c).Code, "picked twice")
	assert.Equal(t, 400, e.do("POST", "/api/instances", map[string]string{"template_id": "english"}, c).Code, "not assigned")
	assert.Equal(t, 404, e.do("POST", "/api/instances", map[string]string{"template_id": "chess"}, c).Code)

	today := decode[chores.TodayView](t, e.do("GET", "/api/today", nil, c))
	assert.Equal(t, 3, today.Required)
	assert.Equal(t, "0/3", today.Completion)
	assert.Len(t, today.Unused, 1)

	rec := e.do("POST", "/api/instances/"+pe.ID+"/done", nil, c)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, chores.StatusDone, decode[chores.TaskInstance](t, rec).Status)
	assert.Equal(t, 409, e.do("POST", "/api/instances/"+pe.ID+"/done", nil, c).Code)
	assert.Equal(t, 409, e.do("POST", "/api/instances/"+pe.ID+"/move", nil, c).Code)

	rec = e.do("POST", "/api/instances/"+reading.ID+"/move", nil, c)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	moved := decode[struct {
		Moved chores.TaskInstance `json:"moved"`
		Next  chores.TaskInstance `json:"next"`
	}](t, rec)
	assert.Equal(t, chores.StatusMoved, moved.Moved.Status)
	assert.Equal(t, "2024-12-04", moved.Next.Date.String())
	assert.Equal(t, chores.StatusPending, moved.Next.Status)
	assert.Equal(t, 1, moved.Next.MoveCount)

	math := e.pick(c, "math")
	require.Equal(t, 200, e.do("POST", "/api/instances/"+math.ID+"/done", nil, c).Code)

	today = decode[chores.TodayView](t, e.do("GET", "/api/today", nil, c))
	assert.Equal(t, "2/3", today.Completion)
	assert.Equal(t, 3, today.Picked)

	tomorrow := decode[[]chores.TaskInstance](t, e.do("GET", "/api/instances?user=nani&date=2024-12-04", nil, c))
	require.Len(t, tomorrow, 1)
	assert.Equal(t, moved.Next.ID, tomorrow[0].ID)

	assert.Equal(t, 400, e.do("GET", "/api/instances?from=yesterday", nil, c).Code)
	assert.Equal(t, 404, e.do("POST", "/api/instances/missing/done", nil, c).Code)
}

func TestTransitionNeedsOwnerOrAdmin(t *testing.T) {
	e := newTestEnv(t)
	nani := e.login("Nani")
	roman := e.login("Roman")
	parent := e.login("Rodion")

	inst := e.pick(nani, "pe")
	assert.Equal(t, 403, e.do("POST", "/api/instances/"+inst.ID+"/done", nil, roman).Code)
	assert.Equal(t, 200, e.do("POST", "/api/instances/"+inst.ID+"/done", nil, parent).Code)

	rec := e.do("POST", "/api/instances", map[string]string{"template_id": "math", "user_id": "nani"}, roman)
	assert.Equal(t, 403, rec.Code)
	rec = e.do("POST", "/api/instances", map[string]string{"template_id": "math", "user_id": "nani"}, parent)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	assert.Equal(t, "nani", decode[chores.TaskInstance](t, rec).UserID)
}

func TestAdminGating(t *testing.T) {
	e := newTestEnv(t)
	child := e.login("Roman")

	newUser := map[string]string{"name": "Guest", "login": "Guest", "role": "child"}
	assert.Equal(t, 403, e.do("POST", "/api/admin/users", newUser, child).Code)
	assert.Equal(t, 403, e.do("POST", "/api/admin/unlock", map[string]string{"password": "nope"}, child).Code)
	require.Equal(t, 200, e.do("POST", "/api/admin/unlock", map[string]string{"password": "1234"}, child).Code)

	rec := e.do("POST", "/api/admin/users", newUser, child)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	guest := decode[chores.User](t, rec)
	assert.NotEmpty(t, guest.ID)
	assert.Equal(t, 409, e.do("POST", "/api/admin/users", newUser, child).Code, "login taken")

	rec = e.do("PATCH", "/api/admin/users/"+guest.ID, map[string]string{"name": "Visitor"}, child)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "Visitor", decode[chores.User](t, rec).Name)

	assert.Equal(t, 400, e.do("DELETE", "/api/admin/users/roman", nil, child).Code, "cannot delete yourself")
	assert.Equal(t, 200, e.do("DELETE", "/api/admin/users/"+guest.ID, nil, child).Code)
	assert.Equal(t, 404, e.do("DELETE", "/api/admin/users/"+guest.ID, nil, child).Code)
}

func TestDeleteUserRemovesHistory(t *testing.T) {
	e := newTestEnv(t)
	parent := e.login("Rodion")
	nani := e.login("Nani")
	e.pick(nani, "pe")

	require.Equal(t, 200, e.do("DELETE", "/api/admin/users/nani", nil, parent).Code)
	left := decode[[]chores.TaskInstance](t, e.do("GET", "/api/instances?user=nani", nil, parent))
	assert.Empty(t, left)
	assert.Equal(t, 401, e.do("GET", "/api/state", nil, nani).Code, "sessions go with the user")
}

func TestAdminTemplatesAndQuotas(t *testing.T) {
	e := newTestEnv(t)
	parent := e.login("Rodion")
	nani := e.login("Nani")

	rec := e.do("POST", "/api/admin/templates", map[string]any{
		"title": "Piano", "condition": "30 minutes", "assigned_user_ids": []string{"nani"},
	}, parent)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	piano := decode[chores.TaskTemplate](t, rec)
	assert.True(t, piano.Active)

	rec = e.do("PATCH", "/api/admin/templates/"+piano.ID, map[string]any{"active": false}, parent)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, 400, e.do("POST", "/api/instances", map[string]string{"template_id": piano.ID}, nani).Code, "inactive")

	e.pick(nani, "pe")
	assert.Equal(t, 409, e.do("DELETE", "/api/admin/templates/pe", nil, parent).Code)
	assert.Equal(t, 200, e.do("DELETE", "/api/admin/templates/"+piano.ID, nil, parent).Code)

	quota := map[string]any{"user_id": "nani", "weekday": 2, "tasks_required": 1}
	assert.Equal(t, 403, e.do("PUT", "/api/admin/quotas", quota, nani).Code)
	require.Equal(t, 200, e.do("PUT", "/api/admin/quotas", quota, parent).Code)
	quota["tasks_required"] = 4
	assert.Equal(t, 400, e.do("PUT", "/api/admin/quotas", quota, parent).Code)

	today := decode[chores.TodayView](t, e.do("GET", "/api/today", nil, nani))
	assert.Equal(t, "0/1", today.Completion)

	rec = e.do("DELETE", "/api/admin/instances", nil, parent)
	require.Equal(t, 200, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["deleted"])
}

func TestCalendarAndStats(t *testing.T) {
	e := newTestEnv(t)
	nani := e.login("Nani")
	pe := e.pick(nani, "pe")
	require.Equal(t, 200, e.do("POST", "/api/instances/"+pe.ID+"/done", nil, nani).Code)

	rec := e.do("GET", "/api/calendar?month=2024-12", nil, nani)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	view := decode[chores.MonthView](t, rec)
	assert.Equal(t, "nani", view.UserID)
	require.Len(t, view.Days, 31)
	assert.Equal(t, 1, view.Days[2].Done)
	assert.True(t, view.Days[2].Today)

	assert.Equal(t, 400, e.do("GET", "/api/calendar?month=december", nil, nani).Code)
	assert.Equal(t, 404, e.do("GET", "/api/calendar?user=ghost", nil, nani).Code)

	rec = e.do("GET", "/api/stats?month=2024-12", nil, nani)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	report := decode[statsReport](t, rec)
	require.Len(t, report.Users, 3, "the parent has no quota")
	require.NotNil(t, report.Champion)
	assert.Equal(t, "nani", report.Champion.User.ID)
	assert.Equal(t, 1, report.Champion.Done)
}

func TestStateAndProfile(t *testing.T) {
	e := newTestEnv(t)
	c := e.login("Nani")
	e.pick(c, "pe")

	state := decode[struct {
		Today     chores.Day            `json:"today"`
		Users     []chores.User         `json:"users"`
		Templates []chores.TaskTemplate `json:"templates"`
		Quotas    []chores.DailyQuota   `json:"quotas"`
		Instances []chores.TaskInstance `json:"instances"`
	}](t, e.do("GET", "/api/state", nil, c))
	assert.Equal(t, "2024-12-03", state.Today.String())
	assert.Len(t, state.Users, 4)
	assert.Len(t, state.Templates, 4)
	assert.Len(t, state.Quotas, 21)
	assert.Len(t, state.Instances, 1)

	rec := e.do("PATCH", "/api/me", map[string]string{"name": "  Nanette "}, c)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "Nanette", decode[chores.User](t, rec).Name)
	assert.Equal(t, 400, e.do("PATCH", "/api/me", map[string]string{"name": " "}, c).Code)
	assert.Equal(t, 400, e.do("PATCH", "/api/me", map[string]string{"role": "parent"}, c).Code, "unknown field")
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do("GET", "/api/health", nil, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["ok"])
}

func TestLoginRateLimit(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]string{"login": "Nani", "password": "wrong"}
	for i := 0; i < 30; i++ {
		require.Equal(t, 401, e.do("POST", "/api/auth/login", body, nil).Code)
	}
	assert.Equal(t, 429, e.do("POST", "/api/auth/login", body, nil).Code)
}

func TestRateLimitPerHost(t *testing.T) {
	e := newTestEnv(t)
	now := time.Date(2024, 12, 3, 10, 0, 0, 0, time.UTC)
	e.api.now = func() time.Time { return now }

	attempt := func(remote string) int {
		body, _ := json.Marshal(map[string]string{"login": "Nani", "password": "wrong"})
		req := httptest.NewRequest("POST", "/api/admin/unlock", bytes.NewReader(body))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		e.h.ServeHTTP(rec, req)
		return rec.Code
	}
	for port := 40000; port < 40010; port++ {
		assert.Equal(t, 401, attempt(fmt.Sprintf("10.0.0.7:%d", port)))
	}
	assert.Equal(t, 429, attempt("10.0.0.7:50000"), "new ports share the host bucket")
	assert.Equal(t, 401, attempt("10.0.0.8:40000"), "other hosts are unaffected")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 401, attempt("10.0.0.9:40000"))
	e.api.rlMu.Lock()
	_, stale := e.api.rl["10.0.0.7:unlock"]
	size := len(e.api.rl)
	e.api.rlMu.Unlock()
	assert.False(t, stale, "expired buckets are swept")
	assert.Equal(t, 1, size)
}
