package main

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"choretrack/internal/chores"
	"choretrack/internal/store"
)

// viewedUser resolves ?user=, defaulting to the caller.
func (a *api) viewedUser(w http.ResponseWriter, r *http.Request) (chores.User, bool) {
	id := r.URL.Query().Get("user")
	if id == "" {
		return session(r).User, true
	}
	u, err := a.store.GetUser(r.Context(), id)
	if err != nil {
		a.fail(w, "get user", err)
		return chores.User{}, false
	}
	return u, true
}

// monthParam parses ?month=YYYY-MM, defaulting to the current month.
func (a *api) monthParam(w http.ResponseWriter, r *http.Request) (chores.Month, bool) {
	v := r.URL.Query().Get("month")
	if v == "" {
		return a.today().Month(), true
	}
	m, err := chores.ParseMonth(v)
	if err != nil {
		writeError(w, 400, "bad month")
		return chores.Month{}, false
	}
	return m, true
}

// GET /api/state
func (a *api) handleState(w http.ResponseWriter, r *http.Request) {
	var (
		users     []chores.User
		templates []chores.TaskTemplate
		quotas    []chores.DailyQuota
		instances []chores.TaskInstance
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { users, err = a.store.ListUsers(ctx); return })
	g.Go(func() (err error) { templates, err = a.store.ListTemplates(ctx); return })
	g.Go(func() (err error) { quotas, err = a.store.ListQuotas(ctx, ""); return })
	g.Go(func() (err error) { instances, err = a.store.ListInstances(ctx, store.InstanceFilter{}); return })
	if err := g.Wait(); err != nil {
		a.fail(w, "load state", err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"me":        session(r).User,
		"admin":     session(r).CanAdmin(),
		"today":     a.today(),
		"users":     users,
		"templates": templates,
		"quotas":    quotas,
		"instances": instances,
	})
}

// GET /api/quotas?user=
func (a *api) handleListQuotas(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListQuotas(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		a.fail(w, "list quotas", err)
		return
	}
	writeJSON(w, 200, items)
}

// GET /api/today?user=
func (a *api) handleToday(w http.ResponseWriter, r *http.Request) {
	u, ok := a.viewedUser(w, r)
	if !ok {
		return
	}
	day := a.today()
	var (
		quotas    []chores.DailyQuota
		templates []chores.TaskTemplate
		instances []chores.TaskInstance
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { quotas, err = a.store.ListQuotas(ctx, u.ID); return })
	g.Go(func() (err error) { templates, err = a.store.ListTemplates(ctx); return })
	g.Go(func() (err error) {
		instances, err = a.store.ListInstances(ctx, store.InstanceFilter{UserID: u.ID, Date: day})
		return
	})
	if err := g.Wait(); err != nil {
		a.fail(w, "today", err)
		return
	}
	writeJSON(w, 200, chores.Today(u.ID, day, quotas, templates, instances))
}

// GET /api/calendar?user=&month=
func (a *api) handleCalendar(w http.ResponseWriter, r *http.Request) {
	u, ok := a.viewedUser(w, r)
	if !ok {
		return
	}
	m, ok := a.monthParam(w, r)
	if !ok {
		return
	}
	var (
		quotas    []chores.DailyQuota
		instances []chores.TaskInstance
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { quotas, err = a.store.ListQuotas(ctx, u.ID); return })
	g.Go(func() (err error) {
		instances, err = a.store.ListInstances(ctx, store.InstanceFilter{UserID: u.ID, From: m.First(), To: m.Last()})
		return
	})
	if err := g.Wait(); err != nil {
		a.fail(w, "calendar", err)
		return
	}
	view := chores.MonthCalendar(u.ID, m, quotas, instances, chores.CalendarOptions{
		HistoryStart: a.historyStart,
		Today:        a.today(),
	})
	writeJSON(w, 200, view)
}

// GET /api/stats?month=
func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	m, ok := a.monthParam(w, r)
	if !ok {
		return
	}
	report, err := monthReport(r.Context(), a.store, m)
	if err != nil {
		a.fail(w, "stats", err)
		return
	}
	writeJSON(w, 200, report)
}
