package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/engine/driver"
)

type roundSource interface {
	Recent(ctx context.Context, limit int) ([]driver.RoundRecord, error)
}

type stateResponse struct {
	Enabled bool `json:"enabled"`
	engine.State
	Round  *engine.RoundInfo `json:"round,omitempty"`
	Shards int               `json:"shards"`
}

// stateHandler serves the live engine state. mgr is nil when no event kind
// is playable.
func stateHandler(mgr *engine.Manager, shards func() int) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var resp stateResponse
		if mgr != nil {
			resp.Enabled = true
			resp.State = mgr.State()
			if info, ok := mgr.ActiveRound(); ok {
				resp.Round = &info
			}
		}
		if shards != nil {
			resp.Shards = shards()
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func roundsHandler(src roundSource) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if src == nil {
			http.Error(rw, "round index disabled", http.StatusServiceUnavailable)
			return
		}
		limit := 20
		if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 500 {
				http.Error(rw, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		recs, err := src.Recent(ctx, limit)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "rounds": recs})
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
