package main

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"choretrack/internal/chores"
	"choretrack/internal/store"
)

func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListUsers(r.Context())
	if err != nil {
		a.fail(w, "list users", err)
		return
	}
	writeJSON(w, 200, items)
}

// POST /api/admin/users { id?, name, login, role }
func (a *api) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string      `json:"id"`
		Name  string      `json:"name"`
		Login string      `json:"login"`
		Role  chores.Role `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Role == "" {
		req.Role = chores.RoleChild
	}
	u := chores.User{
		ID:    strings.TrimSpace(req.ID),
		Name:  strings.TrimSpace(req.Name),
		Login: strings.TrimSpace(req.Login),
		Role:  req.Role,
	}
	if u.ID == "" {
		u.ID = a.newID()
	}
	u, err := a.store.CreateUser(r.Context(), u)
	if err != nil {
		a.fail(w, "admin create user", err)
		return
	}
	a.bus.Publish(Event{Type: "user.created", UserID: u.ID, Payload: u})
	writeJSON(w, 201, u)
}

// PATCH /api/admin/users/{id} { name?, login?, role? }
func (a *api) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  *string      `json:"name"`
		Login *string      `json:"login"`
		Role  *chores.Role `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Name == nil && req.Login == nil && req.Role == nil {
		writeError(w, 400, "nothing to update")
		return
	}
	p := store.UserPatch{Role: req.Role}
	if req.Name != nil {
		v := strings.TrimSpace(*req.Name)
		p.Name = &v
	}
	if req.Login != nil {
		v := strings.TrimSpace(*req.Login)
		p.Login = &v
	}
	u, err := a.store.UpdateUser(r.Context(), r.PathValue("id"), p)
	if err != nil {
		a.fail(w, "admin update user", err)
		return
	}
	a.bus.Publish(Event{Type: "user.updated", UserID: u.ID, Payload: u})
	writeJSON(w, 200, u)
}

func (a *api) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == session(r).User.ID {
		writeError(w, 400, "cannot delete yourself")
		return
	}
	if err := a.store.DeleteUser(r.Context(), id); err != nil {
		a.fail(w, "admin delete user", err)
		return
	}
	a.log.Info("user deleted", zap.String("user", id), zap.String("by", session(r).User.ID))
	a.bus.Publish(Event{Type: "user.deleted", UserID: id})
	writeJSON(w, 200, map[string]any{"ok": true})
}

// PUT /api/admin/quotas { user_id, weekday, tasks_required }
func (a *api) handleAdminUpsertQuota(w http.ResponseWriter, r *http.Request) {
	var q chores.DailyQuota
	if err := readJSON(w, r, &q); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if err := a.store.UpsertQuota(r.Context(), q); err != nil {
		a.fail(w, "admin upsert quota", err)
		return
	}
	a.bus.Publish(Event{Type: "quota.updated", UserID: q.UserID, Payload: q})
	writeJSON(w, 200, q)
}

// DELETE /api/admin/instances
func (a *api) handleAdminClearInstances(w http.ResponseWriter, r *http.Request) {
	n, err := a.store.DeleteAllInstances(r.Context())
	if err != nil {
		a.fail(w, "admin clear instances", err)
		return
	}
	a.log.Warn("task history cleared", zap.Int64("deleted", n), zap.String("by", session(r).User.ID))
	a.bus.Publish(Event{Type: "instances.cleared"})
	writeJSON(w, 200, map[string]any{"ok": true, "deleted": n})
}
