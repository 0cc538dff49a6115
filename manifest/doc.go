// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package manifest keeps the list of published result archives current.

The authority publishes index.md5, one line per archive:

	<32 hex digest>  <logical path>

# Refresh

Synchronizer.Refresh sends a conditional GET with the last ETag. A 304
leaves everything untouched. A 200 with a well-formed body replaces the
manifest in full, saves it to disk, and evicts decoded bundles that are no
longer listed. A body identical to the current one counts as unchanged.

# Reconstruction

When the manifest cannot be fetched or parsed (fewer than three entries, a
malformed line), it is rebuilt from the blobs already in the cache. Each
cached archive is decoded and the latest record per (election, region,
occasion) wins. The rebuilt manifest gets synthesized paths, with the
occasion's initial and the region name stripped of diacritics:

	./<occasion initial>/<election>/<date stamp>_<region name>_<code>_<election>.zip

The date stamp defaults to DefaultDateStamp, "Val_20220911".

The ETag is cleared so the next refresh fetches in full.
*/
package manifest
