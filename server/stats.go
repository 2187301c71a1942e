package main

import (
	"context"

	"golang.org/x/sync/errgroup"

	"choretrack/internal/chores"
	"choretrack/internal/store"
)

type statsReport struct {
	Month    chores.Month       `json:"month"`
	Users    []chores.UserStats `json:"users"`
	Champion *chores.UserStats  `json:"champion"`
	Outsider *chores.UserStats  `json:"outsider"`
}

// monthReport totals the month for every member and names the leaders.
func monthReport(ctx context.Context, st *store.Store, m chores.Month) (statsReport, error) {
	var (
		users     []chores.User
		quotas    []chores.DailyQuota
		instances []chores.TaskInstance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { users, err = st.ListUsers(gctx); return })
	g.Go(func() (err error) { quotas, err = st.ListQuotas(gctx, ""); return })
	g.Go(func() (err error) {
		instances, err = st.ListInstances(gctx, store.InstanceFilter{From: m.First(), To: m.Last()})
		return
	})
	if err := g.Wait(); err != nil {
		return statsReport{}, err
	}
	r := statsReport{Month: m, Users: chores.MonthStats(users, m, quotas, instances)}
	if champ, out, ok := chores.Leaders(r.Users); ok {
		r.Champion, r.Outsider = &champ, &out
	}
	return r, nil
}
