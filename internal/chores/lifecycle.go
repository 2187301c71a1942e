package chores

import (
	"fmt"
	"strings"
)

// NewInstance returns a fresh pending instance of templateID for userID on day.
func NewInstance(id, userID, templateID string, day Day) TaskInstance {
	return TaskInstance{
		ID:         id,
		UserID:     userID,
		TemplateID: templateID,
		Date:       day,
		Status:     StatusPending,
	}
}

// Complete marks a pending instance done.
func Complete(inst TaskInstance) (TaskInstance, error) {
	if inst.Status != StatusPending {
		return inst, fmt.Errorf("%w: %s is %s", ErrNotPending, inst.ID, inst.Status)
	}
	inst.Status = StatusDone
	return inst, nil
}

// Move closes a pending instance as moved and opens its continuation on the next day.
// Both carry the incremented move count.
func Move(inst TaskInstance, nextID string) (moved, next TaskInstance, err error) {
	if inst.Status != StatusPending {
		return inst, TaskInstance{}, fmt.Errorf("%w: %s is %s", ErrNotPending, inst.ID, inst.Status)
	}
	moved = inst
	moved.Status = StatusMoved
	moved.MoveCount = inst.MoveCount + 1

	next = NewInstance(nextID, inst.UserID, inst.TemplateID, inst.Date.AddDays(1))
	next.MoveCount = moved.MoveCount
	return moved, next, nil
}

// CanPick checks that template t may be picked by userID on a day that already holds existing.
func CanPick(t TaskTemplate, userID string, existing []TaskInstance) error {
	if !t.Active {
		return fmt.Errorf("%w: template %q is inactive", ErrInvalid, t.ID)
	}
	if !t.AssignedTo(userID) {
		return fmt.Errorf("%w: template %q is not assigned to %q", ErrInvalid, t.ID, userID)
	}
	for _, i := range existing {
		if i.UserID == userID && i.TemplateID == t.ID {
			return fmt.Errorf("%w: template %q already picked for %s", ErrConflict, t.ID, i.Date)
		}
	}
	return nil
}

func ValidateUser(u User) error {
	switch {
	case strings.TrimSpace(u.ID) == "":
		return fmt.Errorf("%w: user id required", ErrInvalid)
	case strings.TrimSpace(u.Name) == "":
		return fmt.Errorf("%w: name required", ErrInvalid)
	case strings.TrimSpace(u.Login) == "":
		return fmt.Errorf("%w: login required", ErrInvalid)
	case !u.Role.Valid():
		return fmt.Errorf("%w: role must be parent or child", ErrInvalid)
	}
	return nil
}

func ValidateTemplate(t TaskTemplate) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: template id required", ErrInvalid)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalid)
	}
	return nil
}

func ValidateQuota(q DailyQuota) error {
	if q.UserID == "" {
		return fmt.Errorf("%w: user id required", ErrInvalid)
	}
	if q.Weekday < 0 || q.Weekday > 6 {
		return fmt.Errorf("%w: weekday must be 0-6", ErrInvalid)
	}
	if q.TasksRequired < 0 || q.TasksRequired > MaxTasksRequired {
		return fmt.Errorf("%w: tasks required must be 0-%d", ErrInvalid, MaxTasksRequired)
	}
	return nil
}
