// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/tallywatch/middleware"
	"github.com/danielhkuo/tallywatch/models"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// ManifestStatus reports the state of the manifest synchronizer.
type ManifestStatus interface {
	Status() models.ManifestStatusResponse
}

// RunLister reads the sync journal.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

type SyncHandler struct {
	manifest ManifestStatus
	runs     RunLister
}

func NewSyncHandler(manifest ManifestStatus, runs RunLister) *SyncHandler {
	return &SyncHandler{manifest: manifest, runs: runs}
}

// GetManifest handles GET /manifest
func (h *SyncHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, h.manifest.Status())
}

// GetRuns handles GET /sync/runs?limit=N
// Returns journaled refresh cycles, newest first
func (h *SyncHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = min(parsed, maxRunLimit)
	}

	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		slog.Error("failed to query sync runs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}

	middleware.JSONResponse(w, http.StatusOK, runs)
}
