// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the record, result, and API types shared by the
tracker's packages.

# Manifest Types

  - ManifestEntry: content hash and logical path of one published bundle

# Record Types

Decoded from the authority's result archives:

  - Bundle: the {Region, VoteRecord, SeatRecord} triple of one archive
  - VoteRecord: per-district vote distributions for a region
  - District: one voting district; Distribution is nil until it reports
  - SeatRecord: update metadata and seat allocation for a region
  - Region: the area a bundle covers

# Result Types

Derived on demand, never persisted:

  - AggregationResult: party totals, valid/invalid votes, district counts
  - Apportionment: seats per party plus final-round diagnostics

# API Types

  - SnapshotResponse: latest cycle result served over HTTP
  - RegionResult: one row of a per-region breakdown
  - ManifestStatusResponse: synchronizer state
  - SyncRun: one journal row
  - ErrorResponse: error, message

# Constants

Counting occasions:

	OccasionPreliminary = "preliminär"
	OccasionFinal       = "slutlig"

Election types:

	ElectionRiksdag   = "RD"
	ElectionRegion    = "RF"
	ElectionMunicipal = "KF"
*/
package models
