package chores

import "errors"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

func (r Role) Valid() bool { return r == RoleParent || r == RoleChild }

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusMoved   Status = "moved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDone, StatusMoved:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusMoved }

// User is a family member.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
	Role  Role   `json:"role"`
}

func (u User) IsParent() bool { return u.Role == RoleParent }

// TaskTemplate is a reusable chore definition.
type TaskTemplate struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Condition       string   `json:"condition,omitempty"`
	Active          bool     `json:"active"`
	AssignedUserIDs []string `json:"assigned_user_ids"`
}

// AssignedTo reports whether userID may pick this template.
func (t TaskTemplate) AssignedTo(userID string) bool {
	for _, id := range t.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// DailyQuota is the number of tasks a user must complete on a weekday (0 = Sunday).
type DailyQuota struct {
	UserID        string `json:"user_id"`
	Weekday       int    `json:"weekday"`
	TasksRequired int    `json:"tasks_required"`
}

// TaskInstance is one dated occurrence of a template for a user.
type TaskInstance struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	TemplateID string `json:"template_id"`
	Date       Day    `json:"date"`
	Status     Status `json:"status"`
	MoveCount  int    `json:"move_count"`
}

// Carried reports whether the instance arrived by being moved from an earlier day.
func (i TaskInstance) Carried() bool { return i.Status == StatusPending && i.MoveCount > 0 }

const MaxTasksRequired = 3

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalid    = errors.New("invalid")
	ErrConflict   = errors.New("conflict")
	ErrNotPending = errors.New("task instance is not pending")
)
