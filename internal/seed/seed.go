// Package seed loads a household definition into an empty database.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"choretrack/internal/chores"
	"choretrack/internal/store"
)

//go:embed family.yaml
var defaultFamily []byte

type Family struct {
	Users     []User     `yaml:"users"`
	Templates []Template `yaml:"templates"`
	Quotas    []Quota    `yaml:"quotas"`
}

type User struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Login string `yaml:"login"`
	Role  string `yaml:"role"`
}

type Template struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Condition string   `yaml:"condition"`
	Active    *bool    `yaml:"active"` // defaults to true
	Assigned  []string `yaml:"assigned"`
}

// Quota applies the same week plan to several users.
type Quota struct {
	Users []string       `yaml:"users"`
	Week  map[string]int `yaml:"week"`
}

// Store is the subset of the persistence layer seeding needs.
type Store interface {
	SeedHousehold(ctx context.Context, h store.Household) (bool, error)
}

// Default returns the household compiled into the binary.
func Default() (Family, error) { return Parse(bytes.NewReader(defaultFamily)) }

func Load(path string) (Family, error) {
	f, err := os.Open(path)
	if err != nil {
		return Family{}, err
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (Family, error) {
	var fam Family
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fam); err != nil {
		return Family{}, fmt.Errorf("decode family: %w", err)
	}
	return fam, nil
}

// Weekday parses an English weekday name.
func Weekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", chores.ErrInvalid, name)
}

// DailyQuotas expands the week plans into one quota per user and weekday.
func (f Family) DailyQuotas() ([]chores.DailyQuota, error) {
	var out []chores.DailyQuota
	for _, q := range f.Quotas {
		for _, uid := range q.Users {
			for d := time.Sunday; d <= time.Saturday; d++ {
				n, ok := lookupDay(q.Week, d)
				if !ok {
					continue
				}
				out = append(out, chores.DailyQuota{UserID: uid, Weekday: int(d), TasksRequired: n})
			}
		}
		for name := range q.Week {
			if _, err := Weekday(name); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func lookupDay(week map[string]int, d time.Weekday) (int, bool) {
	for name, n := range week {
		if strings.EqualFold(strings.TrimSpace(name), d.String()) {
			return n, true
		}
	}
	return 0, false
}

// Household converts the definition into domain values and validates all of them.
func (f Family) Household() (store.Household, error) {
	var h store.Household
	for _, u := range f.Users {
		user := chores.User{ID: u.ID, Name: u.Name, Login: u.Login, Role: chores.Role(u.Role)}
		if err := chores.ValidateUser(user); err != nil {
			return store.Household{}, fmt.Errorf("user %q: %w", u.ID, err)
		}
		h.Users = append(h.Users, user)
	}
	for _, t := range f.Templates {
		active := true
		if t.Active != nil {
			active = *t.Active
		}
		tpl := chores.TaskTemplate{
			ID:              t.ID,
			Title:           t.Title,
			Condition:       t.Condition,
			Active:          active,
			AssignedUserIDs: t.Assigned,
		}
		if err := chores.ValidateTemplate(tpl); err != nil {
			return store.Household{}, fmt.Errorf("template %q: %w", t.ID, err)
		}
		h.Templates = append(h.Templates, tpl)
	}
	quotas, err := f.DailyQuotas()
	if err != nil {
		return store.Household{}, err
	}
	for _, q := range quotas {
		if err := chores.ValidateQuota(q); err != nil {
			return store.Household{}, fmt.Errorf("quota %s/%d: %w", q.UserID, q.Weekday, err)
		}
	}
	h.Quotas = quotas
	return h, nil
}

// Apply writes the family when no users exist yet and reports whether it did. Nothing is
// written when any part of the family is invalid.
func Apply(ctx context.Context, st Store, f Family) (bool, error) {
	h, err := f.Household()
	if err != nil {
		return false, err
	}
	return st.SeedHousehold(ctx, h)
}
