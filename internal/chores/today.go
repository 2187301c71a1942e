package chores

import (
	"fmt"
	"time"
)

// QuotaFor returns the tasks required of userID on weekday; a missing quota means none.
func QuotaFor(quotas []DailyQuota, userID string, weekday time.Weekday) int {
	for _, q := range quotas {
		if q.UserID == userID && q.Weekday == int(weekday) {
			return q.TasksRequired
		}
	}
	return 0
}

// InstancesOn filters instances belonging to userID on day, preserving order.
func InstancesOn(instances []TaskInstance, userID string, day Day) []TaskInstance {
	out := []TaskInstance{}
	for _, i := range instances {
		if i.UserID == userID && i.Date.Equal(day) {
			out = append(out, i)
		}
	}
	return out
}

// CountStatus counts instances with status s.
func CountStatus(instances []TaskInstance, s Status) int {
	n := 0
	for _, i := range instances {
		if i.Status == s {
			n++
		}
	}
	return n
}

// Completion formats done against required, e.g. "2/3".
func Completion(done, required int) string { return fmt.Sprintf("%d/%d", done, required) }

// TodayView is what a member sees for a single day.
type TodayView struct {
	UserID     string         `json:"user_id"`
	Date       Day            `json:"date"`
	Required   int            `json:"required"`
	Picked     int            `json:"picked"`
	Done       int            `json:"done"`
	Pending    int            `json:"pending"`
	Completion string         `json:"completion"`
	Instances  []TaskInstance `json:"instances"`
	Available  []TaskTemplate `json:"available"`
	Unused     []TaskTemplate `json:"unused"`
}

// Today assembles the day view of userID.
func Today(userID string, day Day, quotas []DailyQuota, templates []TaskTemplate, instances []TaskInstance) TodayView {
	own := InstancesOn(instances, userID, day)
	v := TodayView{
		UserID:    userID,
		Date:      day,
		Required:  QuotaFor(quotas, userID, day.Weekday()),
		Picked:    len(own),
		Done:      CountStatus(own, StatusDone),
		Pending:   CountStatus(own, StatusPending),
		Instances: own,
		Available: []TaskTemplate{},
		Unused:    []TaskTemplate{},
	}
	v.Completion = Completion(v.Done, v.Required)

	picked := make(map[string]bool, len(own))
	for _, i := range own {
		picked[i.TemplateID] = true
	}
	for _, t := range templates {
		if !t.Active || !t.AssignedTo(userID) {
			continue
		}
		v.Available = append(v.Available, t)
		if !picked[t.ID] {
			v.Unused = append(v.Unused, t)
		}
	}
	return v
}
