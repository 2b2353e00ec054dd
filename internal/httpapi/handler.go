// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi exposes the sync service over HTTP: trigger a sync,
// read run history and the current trip set, and apply user actions
// (archive, restore, dismiss) that the next consolidation respects.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/blueharbor/tripsync/internal/models"
	"github.com/blueharbor/tripsync/internal/runlog"
	"github.com/blueharbor/tripsync/internal/syncer"
)

// SyncRunner triggers a sync run. Implemented by syncer.Syncer.
type SyncRunner interface {
	Run(ctx context.Context, user string) (*syncer.Result, error)
}

// RunHistory reads past runs. Implemented by runlog.Store.
type RunHistory interface {
	Recent(ctx context.Context, userID string, limit int) ([]runlog.Run, error)
}

// TripActions is the slice of the trip store the API needs.
type TripActions interface {
	ActiveTrips(ctx context.Context, user string) ([]models.Trip, error)
	ArchiveTrip(ctx context.Context, user, tripID string) error
	RestoreTrip(ctx context.Context, user, tripID string) error
	ArchiveSegment(ctx context.Context, user, tripID, segmentID string) error
	RestoreSegment(ctx context.Context, user, tripID, segmentID string) error
	DismissAlert(ctx context.Context, user, tripID, alertID string) error
}

// Handler routes API requests to the syncer and stores.
type Handler struct {
	syncer SyncRunner
	runs   RunHistory
	trips  TripActions
	known  func(user string) bool
}

// NewHandler creates the API handler. known reports whether a user is
// configured; requests for unknown users get 404.
func NewHandler(s SyncRunner, runs RunHistory, trips TripActions, known func(user string) bool) *Handler {
	return &Handler{syncer: s, runs: runs, trips: trips, known: known}
}

// ServeSync handles POST /sync/{user}: runs a full sync and returns the
// resulting trips. The run is synchronous; callers poll /runs for
// history.
func (h *Handler) ServeSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, rest, ok := h.userFromPath(w, r.URL.Path, "/sync/")
	if !ok || rest != "" {
		if ok {
			http.NotFound(w, r)
		}
		return
	}

	res, err := h.syncer.Run(r.Context(), user)
	if err != nil {
		slog.Error("sync request failed", "user", user, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status":  res.Status,
			"message": res.Message,
			"log":     res.Log,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   res.Status,
		"message":  res.Message,
		"trips":    res.Trips,
		"archived": res.Archived,
		"log":      res.Log,
	})
}

// ServeRuns handles GET /runs/{user}?limit=N.
func (h *Handler) ServeRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, rest, ok := h.userFromPath(w, r.URL.Path, "/runs/")
	if !ok || rest != "" {
		if ok {
			http.NotFound(w, r)
		}
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := h.runs.Recent(r.Context(), user, limit)
	if err != nil {
		slog.Error("run history lookup failed", "user", user, "error", err)
		http.Error(w, "run history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// ServeTrips handles trip reads and user actions:
//
//	GET  /trips/{user}
//	POST /trips/{user}/{tripID}/archive
//	POST /trips/{user}/{tripID}/restore
//	POST /trips/{user}/{tripID}/segments/{segmentID}/archive
//	POST /trips/{user}/{tripID}/segments/{segmentID}/restore
//	POST /trips/{user}/{tripID}/alerts/{alertID}/dismiss
func (h *Handler) ServeTrips(w http.ResponseWriter, r *http.Request) {
	user, rest, ok := h.userFromPath(w, r.URL.Path, "/trips/")
	if !ok {
		return
	}

	if rest == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		trips, err := h.trips.ActiveTrips(r.Context(), user)
		if err != nil {
			slog.Error("trip list failed", "user", user, "error", err)
			http.Error(w, "trips unavailable", http.StatusInternalServerError)
			return
		}
		if trips == nil {
			trips = []models.Trip{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"trips": trips})
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(rest, "/")
	var err error
	switch {
	case len(parts) == 2 && parts[1] == "archive":
		err = h.trips.ArchiveTrip(r.Context(), user, parts[0])
	case len(parts) == 2 && parts[1] == "restore":
		err = h.trips.RestoreTrip(r.Context(), user, parts[0])
	case len(parts) == 4 && parts[1] == "segments" && parts[3] == "archive":
		err = h.trips.ArchiveSegment(r.Context(), user, parts[0], parts[2])
	case len(parts) == 4 && parts[1] == "segments" && parts[3] == "restore":
		err = h.trips.RestoreSegment(r.Context(), user, parts[0], parts[2])
	case len(parts) == 4 && parts[1] == "alerts" && parts[3] == "dismiss":
		err = h.trips.DismissAlert(r.Context(), user, parts[0], parts[2])
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		slog.Error("trip action failed", "user", user, "path", r.URL.Path, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// userFromPath strips prefix, validates the user element, and returns the
// remaining path (without leading slash). ok=false means a response was
// already written.
func (h *Handler) userFromPath(w http.ResponseWriter, path, prefix string) (user, rest string, ok bool) {
	trimmed := strings.TrimPrefix(path, prefix)
	user, rest, _ = strings.Cut(trimmed, "/")
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return "", "", false
	}
	if h.known != nil && !h.known(user) {
		http.Error(w, "unknown user", http.StatusNotFound)
		return "", "", false
	}
	return user, rest, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

// Serve starts the API server on the given port. It binds the port
// immediately and signals readiness via the returned channel before
// starting to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/sync/", handler.ServeSync)
	mux.HandleFunc("/runs/", handler.ServeRuns)
	mux.HandleFunc("/trips/", handler.ServeTrips)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind API port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("API server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("API server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	return ready, nil
}
