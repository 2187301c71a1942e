package chores

// UserStats is one member's totals for a month.
type UserStats struct {
	User           User    `json:"user"`
	Required       int     `json:"required"`
	Done           int     `json:"done"`
	Moves          int     `json:"moves"`
	CompletionRate float64 `json:"completion_rate"`
}

// MonthStats totals every user's month. Users with nothing required that month are left out.
func MonthStats(users []User, m Month, quotas []DailyQuota, instances []TaskInstance) []UserStats {
	type tally struct{ done, moves int }
	counts := map[string]*tally{}
	for _, i := range instances {
		if !m.Contains(i.Date) {
			continue
		}
		t := counts[i.UserID]
		if t == nil {
			t = &tally{}
			counts[i.UserID] = t
		}
		switch i.Status {
		case StatusDone:
			t.done++
		case StatusMoved:
			t.moves++
		}
	}

	out := []UserStats{}
	for _, u := range users {
		s := UserStats{User: u}
		for d := m.First(); m.Contains(d); d = d.AddDays(1) {
			s.Required += QuotaFor(quotas, u.ID, d.Weekday())
		}
		if s.Required == 0 {
			continue
		}
		if t := counts[u.ID]; t != nil {
			s.Done, s.Moves = t.done, t.moves
		}
		s.CompletionRate = float64(s.Done) / float64(s.Required) * 100
		out = append(out, s)
	}
	return out
}

// Leaders picks the highest and lowest completion rate; earlier entries win ties.
// ok is false when stats is empty.
func Leaders(stats []UserStats) (champion, outsider UserStats, ok bool) {
	if len(stats) == 0 {
		return UserStats{}, UserStats{}, false
	}
	champion, outsider = stats[0], stats[0]
	for _, s := range stats[1:] {
		if s.CompletionRate > champion.CompletionRate {
			champion = s
		}
		if s.CompletionRate < outsider.CompletionRate {
			outsider = s
		}
	}
	return champion, outsider, true
}
