// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines the HTTP routes of the results API.

	mux := router.NewRouter(router.Deps{
		Snapshots: tracker,
		Catalog:   catalog,
		Manifest:  synchronizer,
		Runs:      journal,
	})

# Endpoints

	GET /health          - Liveness
	GET /results         - National totals and seat apportionment
	GET /results/regions - Totals per region level
	GET /manifest        - Manifest synchronizer status
	GET /sync/runs       - Recent refresh cycles

Every route is read-only; the API never triggers a refresh.
*/
package router
