package main

import (
	"net/http"
	"strings"

	"choretrack/internal/store"
)

// PATCH /api/me { name }
// Updates the current member's display name. Login and role stay admin-only.
func (a *api) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	me := session(r).User
	var req struct {
		Name *string `json:"name"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Name == nil {
		writeError(w, 400, "nothing to update")
		return
	}
	v := strings.TrimSpace(*req.Name)
	if v == "" {
		writeError(w, 400, "name required")
		return
	}
	u, err := a.store.UpdateUser(r.Context(), me.ID, store.UserPatch{Name: &v})
	if err != nil {
		a.fail(w, "update me", err)
		return
	}
	a.bus.Publish(Event{Type: "user.updated", UserID: u.ID, Payload: u})
	writeJSON(w, 200, u)
}
