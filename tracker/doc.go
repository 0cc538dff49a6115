// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tracker runs refresh cycles.

A cycle refreshes the manifest, downloads archives missing from the cache,
and, when the manifest changed since the last successful analysis,
aggregates the bundles of the configured election and occasion, apportions
seats, prints the report and publishes the snapshot read by the API.
Every cycle is journaled.
*/
package tracker
