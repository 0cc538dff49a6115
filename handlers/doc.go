// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP handlers of the read-only results API.

# Handler Types

Each handler is a struct over the small interfaces it reads from:

  - ResultsHandler: national totals, seat apportionment and per-region totals
  - SyncHandler: manifest status and the sync journal

	resultsHandler := handlers.NewResultsHandler(tracker, catalog)
	syncHandler := handlers.NewSyncHandler(synchronizer, journal)

# Endpoints

	GET /results               → GetResults (503 until seats can be apportioned)
	GET /results/regions?level → GetRegions (level 0-3, default 1)
	GET /manifest              → GetManifest
	GET /sync/runs?limit       → GetRuns (newest first, at most 200)

Nothing here triggers a refresh. Handlers only read what the tracker last
published.
*/
package handlers
