// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main is the entry point of tallywatch, a live tracker for Swedish
election results.

tallywatch mirrors the election authority's published result archives into a
local content-addressed cache, decodes them, and prints national totals and
the projected seat apportionment of the Riksdag. With -f it keeps polling and
reprints whenever the published manifest changes.

# Running

	go run . -e RD slutlig

Follow a preliminary count every 30 seconds and serve the API on port 8080:

	go run . -f -delay 30 -p 8080 preliminär

# Configuration

Every flag falls back to an environment variable (a .env file is read first):

  - RESULTS_URL (-u): base URL of the result files
  - CACHE_DIR (-c): cache directory (default: results)
  - METADATA_PATH (-m): participating parties CSV
  - ELECTION (-e): RD, RF or KF
  - OCCASION (positional): preliminär or slutlig
  - LEVEL (-l), COLLECTION_LEVEL (-s): region levels of the report tables
  - WEDNESDAY (-w): add the 2018 Wednesday count
  - FOLLOW (-f), DELAY (-delay): keep refreshing
  - PORT (-p): HTTP API port, 0 disables it
  - DATABASE_TYPE (-t), DATABASE_URL (-d): sync journal, sqlite or postgres

# Architecture

  - manifest: conditional manifest fetch and reconstruction from the cache
  - blobstore: content-addressed cache of result archives
  - ingest: archive decoding and record validation
  - districts: memoized bundle materialization
  - tally: aggregation, adjustment, apportionment and blocks
  - metadata: party and region names
  - report: console report
  - tracker: refresh cycle and latest snapshot
  - db: sync journal and persisted ETag
  - handlers, router, middleware: read-only HTTP API
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
