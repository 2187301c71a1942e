package main

import (
	"net/http"

	"choretrack/internal/chores"
	"choretrack/internal/store"
)

// GET /api/instances?user=&date=&from=&to=
func (a *api) handleListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.InstanceFilter{UserID: q.Get("user")}
	for _, p := range []struct {
		name string
		dst  *chores.Day
	}{{"date", &f.Date}, {"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		d, err := chores.ParseDay(v)
		if err != nil {
			writeError(w, 400, "bad "+p.name)
			return
		}
		*p.dst = d
	}
	items, err := a.store.ListInstances(r.Context(), f)
	if err != nil {
		a.fail(w, "list instances", err)
		return
	}
	writeJSON(w, 200, items)
}

// POST /api/instances { template_id, user_id? }
// Picks a template for today. Only admins may pick on behalf of someone else.
func (a *api) handlePickInstance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
		UserID     string `json:"user_id"`
	}
	if err := readJSON(w, r, &req); err != nil || req.TemplateID == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	s := session(r)
	userID := s.User.ID
	if req.UserID != "" && req.UserID != userID {
		if !s.CanAdmin() {
			writeError(w, 403, "forbidden")
			return
		}
		userID = req.UserID
	}
	inst, err := a.store.PickInstance(r.Context(), chores.NewInstance(a.newID(), userID, req.TemplateID, a.today()))
	if err != nil {
		a.fail(w, "pick instance", err)
		return
	}
	a.bus.Publish(Event{Type: "instance.created", UserID: inst.UserID, Payload: inst})
	writeJSON(w, 201, inst)
}

// canTransition loads the instance and checks that the caller owns it or is an admin.
func (a *api) canTransition(w http.ResponseWriter, r *http.Request) bool {
	inst, err := a.store.GetInstance(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, "get instance", err)
		return false
	}
	s := session(r)
	if inst.UserID != s.User.ID && !s.CanAdmin() {
		writeError(w, 403, "forbidden")
		return false
	}
	return true
}

// POST /api/instances/{id}/done
func (a *api) handleCompleteInstance(w http.ResponseWriter, r *http.Request) {
	if !a.canTransition(w, r) {
		return
	}
	inst, err := a.store.CompleteInstance(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, "complete instance", err)
		return
	}
	a.bus.Publish(Event{Type: "instance.updated", UserID: inst.UserID, Payload: inst})
	writeJSON(w, 200, inst)
}

// POST /api/instances/{id}/move
// Closes the instance as moved and returns it with its continuation on the next day.
func (a *api) handleMoveInstance(w http.ResponseWriter, r *http.Request) {
	if !a.canTransition(w, r) {
		return
	}
	moved, next, err := a.store.MoveInstance(r.Context(), r.PathValue("id"), a.newID())
	if err != nil {
		a.fail(w, "move instance", err)
		return
	}
	a.bus.Publish(Event{Type: "instance.updated", UserID: moved.UserID, Payload: moved})
	a.bus.Publish(Event{Type: "instance.created", UserID: next.UserID, Payload: next})
	writeJSON(w, 200, map[string]any{"moved": moved, "next": next})
}
