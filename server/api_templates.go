package main

import (
	"net/http"
	"strings"

	"choretrack/internal/chores"
	"choretrack/internal/store"
)

func (a *api) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListTemplates(r.Context())
	if err != nil {
		a.fail(w, "list templates", err)
		return
	}
	writeJSON(w, 200, items)
}

// POST /api/admin/templates { id?, title, condition?, active?, assigned_user_ids }
func (a *api) handleAdminCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID              string   `json:"id"`
		Title           string   `json:"title"`
		Condition       string   `json:"condition"`
		Active          *bool    `json:"active"`
		AssignedUserIDs []string `json:"assigned_user_ids"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	t := chores.TaskTemplate{
		ID:              strings.TrimSpace(req.ID),
		Title:           strings.TrimSpace(req.Title),
		Condition:       strings.TrimSpace(req.Condition),
		Active:          req.Active == nil || *req.Active,
		AssignedUserIDs: req.AssignedUserIDs,
	}
	if t.ID == "" {
		t.ID = a.newID()
	}
	t, err := a.store.CreateTemplate(r.Context(), t)
	if err != nil {
		a.fail(w, "admin create template", err)
		return
	}
	a.bus.Publish(Event{Type: "template.created", Payload: t})
	writeJSON(w, 201, t)
}

// PATCH /api/admin/templates/{id}
func (a *api) handleAdminUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title           *string   `json:"title"`
		Condition       *string   `json:"condition"`
		Active          *bool     `json:"active"`
		AssignedUserIDs *[]string `json:"assigned_user_ids"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	p := store.TemplatePatch{Active: req.Active, AssignedUserIDs: req.AssignedUserIDs}
	if req.Title != nil {
		v := strings.TrimSpace(*req.Title)
		p.Title = &v
	}
	if req.Condition != nil {
		v := strings.TrimSpace(*req.Condition)
		p.Condition = &v
	}
	t, err := a.store.UpdateTemplate(r.Context(), r.PathValue("id"), p)
	if err != nil {
		a.fail(w, "admin update template", err)
		return
	}
	a.bus.Publish(Event{Type: "template.updated", Payload: t})
	writeJSON(w, 200, t)
}

func (a *api) handleAdminDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.store.DeleteTemplate(r.Context(), id); err != nil {
		a.fail(w, "admin delete template", err)
		return
	}
	a.bus.Publish(Event{Type: "template.deleted", Payload: map[string]string{"id": id}})
	writeJSON(w, 200, map[string]any{"ok": true})
}
