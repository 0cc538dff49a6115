// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db is the sync journal: the persisted manifest ETag and one row per
refresh cycle.

	journal, err := db.Open(db.TypeSQLite, "results/tallywatch.db")

Both sqlite (modernc.org/sqlite) and postgres (lib/pq) are supported.
Migrations under migrations/ are embedded and applied with goose on Open.

# Tables

  - sync_state: key/value pairs, currently the manifest ETag
  - sync_run: started_at, finished_at, outcome, entries, fetched, error

Queries are written with ? placeholders and rebound for postgres.
*/
package db
