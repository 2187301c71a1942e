package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn("health: db ping", zap.Error(err))
		writeJSON(w, 503, map[string]any{"ok": false, "db": "down", "ts": time.Now().UTC().Format(time.RFC3339)})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "db": a.store.Driver(), "ts": time.Now().UTC().Format(time.RFC3339)})
}
