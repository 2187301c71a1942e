package chores

import "sort"

// SlotStatus is the state of one quota slot in a calendar cell.
type SlotStatus string

const (
	SlotDone    SlotStatus = "done"
	SlotPending SlotStatus = "pending"
	SlotMoved   SlotStatus = "moved"
	SlotEmpty   SlotStatus = "empty"
	SlotFailed  SlotStatus = "failed" // unfilled slot on a day that has passed
)

type Slot struct {
	Status     SlotStatus `json:"status"`
	InstanceID string     `json:"instance_id,omitempty"`
	TemplateID string     `json:"template_id,omitempty"`
}

// DayCell summarizes one user's day on the calendar.
type DayCell struct {
	Date          Day            `json:"date"`
	Weekday       int            `json:"weekday"`
	Required      int            `json:"required"`
	Done          int            `json:"done"`
	Pending       int            `json:"pending"`
	Moved         int            `json:"moved"`
	Empty         bool           `json:"empty"`
	BeforeHistory bool           `json:"before_history"`
	Past          bool           `json:"past"`
	Today         bool           `json:"today"`
	Slots         []Slot         `json:"slots"`
	Carried       []TaskInstance `json:"carried"`
}

type CalendarOptions struct {
	// HistoryStart is the first day with reported counts; zero means no cutoff.
	HistoryStart Day
	Today        Day
}

type MonthView struct {
	UserID     string    `json:"user_id"`
	Month      Month     `json:"month"`
	LeadBlanks int       `json:"lead_blanks"`
	Days       []DayCell `json:"days"`
	TotalMoves int       `json:"total_moves"`
}

// MonthCalendar lays out userID's month. Pending instances that were carried over from a
// previous day are reported apart from the quota slots.
func MonthCalendar(userID string, m Month, quotas []DailyQuota, instances []TaskInstance, opts CalendarOptions) MonthView {
	byDay := map[string][]TaskInstance{}
	v := MonthView{
		UserID:     userID,
		Month:      m,
		LeadBlanks: int(m.First().Weekday()),
		Days:       make([]DayCell, 0, m.Days()),
	}
	for _, i := range instances {
		if i.UserID != userID || !m.Contains(i.Date) {
			continue
		}
		byDay[i.Date.String()] = append(byDay[i.Date.String()], i)
		if i.Status == StatusMoved {
			v.TotalMoves++
		}
	}

	for d := m.First(); m.Contains(d); d = d.AddDays(1) {
		cell := DayCell{
			Date:    d,
			Weekday: int(d.Weekday()),
			Today:   !opts.Today.IsZero() && d.Equal(opts.Today),
			Past:    !opts.Today.IsZero() && d.Before(opts.Today),
			Slots:   []Slot{},
			Carried: []TaskInstance{},
		}
		cell.BeforeHistory = !opts.HistoryStart.IsZero() && d.Before(opts.HistoryStart)
		required := QuotaFor(quotas, userID, d.Weekday())
		if cell.BeforeHistory || required == 0 {
			cell.Empty = true
			v.Days = append(v.Days, cell)
			continue
		}

		dayInstances := byDay[d.String()]
		cell.Required = required
		cell.Done = CountStatus(dayInstances, StatusDone)
		cell.Pending = CountStatus(dayInstances, StatusPending)
		cell.Moved = CountStatus(dayInstances, StatusMoved)

		var regular []TaskInstance
		for _, i := range dayInstances {
			if i.Carried() {
				cell.Carried = append(cell.Carried, i)
			} else {
				regular = append(regular, i)
			}
		}
		sort.SliceStable(regular, func(a, b int) bool {
			return statusRank(regular[a].Status) < statusRank(regular[b].Status)
		})
		for n := 0; n < required; n++ {
			switch {
			case n < len(regular):
				cell.Slots = append(cell.Slots, Slot{
					Status:     SlotStatus(regular[n].Status),
					InstanceID: regular[n].ID,
					TemplateID: regular[n].TemplateID,
				})
			case cell.Past:
				cell.Slots = append(cell.Slots, Slot{Status: SlotFailed})
			default:
				cell.Slots = append(cell.Slots, Slot{Status: SlotEmpty})
			}
		}
		v.Days = append(v.Days, cell)
	}
	return v
}

// done sorts first, then pending, then moved
func statusRank(s Status) int {
	switch s {
	case StatusDone:
		return 0
	case StatusPending:
		return 1
	}
	return 2
}
