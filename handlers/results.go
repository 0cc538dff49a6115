// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/danielhkuo/tallywatch/metadata"
	"github.com/danielhkuo/tallywatch/middleware"
	"github.com/danielhkuo/tallywatch/models"
	"github.com/danielhkuo/tallywatch/tally"
	"github.com/danielhkuo/tallywatch/tracker"
)

// SnapshotSource provides the latest published snapshot.
type SnapshotSource interface {
	Latest() (tracker.Snapshot, bool)
}

type ResultsHandler struct {
	snapshots SnapshotSource
	catalog   *metadata.Catalog
}

func NewResultsHandler(snapshots SnapshotSource, catalog *metadata.Catalog) *ResultsHandler {
	if catalog == nil {
		catalog = metadata.Empty()
	}
	return &ResultsHandler{snapshots: snapshots, catalog: catalog}
}

// GetResults handles GET /results
// Returns 503 until enough districts have reported for a seat apportionment
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshots.Latest()
	if !ok || snapshot.Apportionment == nil {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "not enough data yet")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SnapshotResponse{
		ComputedAt:    snapshot.ComputedAt,
		ElectionType:  snapshot.Election,
		Occasion:      snapshot.Occasion,
		Adjusted:      snapshot.Adjusted,
		Votes:         snapshot.Votes,
		Apportionment: snapshot.Apportionment,
	})
}

// GetRegions handles GET /results/regions?level=N
// Groups the reported districts by region level (0-3, default 1)
func (h *ResultsHandler) GetRegions(w http.ResponseWriter, r *http.Request) {
	n := 1
	if raw := r.URL.Query().Get("level"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "level must be a number")
			return
		}
		n = parsed
	}

	snapshot, ok := h.snapshots.Latest()
	if !ok {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "not enough data yet")
		return
	}

	level, err := h.catalog.Level(snapshot.Election, n)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	regions := []models.RegionResult{}
	for _, group := range tally.GroupBy(snapshot.Districts, level.Key) {
		regions = append(regions, models.RegionResult{
			Key:    group.Key,
			Name:   level.Name(group.Key),
			Result: group.Result,
		})
	}

	middleware.JSONResponse(w, http.StatusOK, regions)
}
