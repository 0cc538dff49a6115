// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/tallywatch/handlers"
	"github.com/danielhkuo/tallywatch/metadata"
	"github.com/danielhkuo/tallywatch/middleware"
)

type Deps struct {
	Snapshots handlers.SnapshotSource
	Catalog   *metadata.Catalog
	Manifest  handlers.ManifestStatus
	Runs      handlers.RunLister
}

func NewRouter(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	resultsHandler := handlers.NewResultsHandler(deps.Snapshots, deps.Catalog)
	syncHandler := handlers.NewSyncHandler(deps.Manifest, deps.Runs)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Results
	mux.HandleFunc("GET /results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /results/regions", middleware.WithLogging(resultsHandler.GetRegions))

	// Synchronization state
	mux.HandleFunc("GET /manifest", middleware.WithLogging(syncHandler.GetManifest))
	mux.HandleFunc("GET /sync/runs", middleware.WithLogging(syncHandler.GetRuns))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tallywatch API v1"))
	})

	return mux
}
