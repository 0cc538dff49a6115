// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package manifest

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/tallywatch/ingest"
	"github.com/danielhkuo/tallywatch/models"
)

// DefaultDateStamp is the file name prefix of reconstructed entries: the
// authority's "Val_" marker and the election day.
const DefaultDateStamp = "Val_20220911"

// BlobSource lists and reads cached blobs.
type BlobSource interface {
	Hashes() ([]string, error)
	Read(hash string) ([]byte, error)
}

// Reconstruct builds a manifest from the blobs already in the cache. For each
// (election type, region, occasion) it keeps the blob whose seat record was
// updated last; on equal times the first blob in hash order wins. Blobs that
// cannot be decoded are skipped.
func Reconstruct(blobs BlobSource, decoder ingest.Decoder, dateStamp string) ([]models.ManifestEntry, error) {
	if dateStamp == "" {
		dateStamp = DefaultDateStamp
	}

	hashes, err := blobs.Hashes()
	if err != nil {
		return nil, err
	}

	type candidate struct {
		hash    string
		updated time.Time
		name    string
	}

	var order []models.RecordKey
	latest := make(map[models.RecordKey]candidate)

	for _, hash := range hashes {
		data, err := blobs.Read(hash)
		if err != nil {
			slog.Warn("skipping unreadable blob", "hash", hash, "error", err)
			continue
		}
		bundle, err := decoder.Decode(data)
		if err != nil {
			slog.Warn("skipping undecodable blob", "hash", hash, "error", err)
			continue
		}

		key := bundle.Seats.Key()
		current, ok := latest[key]
		if !ok {
			order = append(order, key)
		} else if !bundle.Seats.UpdatedAt.After(current.updated) {
			continue
		}
		latest[key] = candidate{hash: hash, updated: bundle.Seats.UpdatedAt, name: bundle.Region.Name}
	}

	entries := make([]models.ManifestEntry, 0, len(order))
	for _, key := range order {
		c := latest[key]
		entries = append(entries, models.ManifestEntry{
			Hash: c.hash,
			Path: ReconstructedPath(key, c.name, dateStamp),
		})
	}
	return entries, nil
}

// ReconstructedPath is the logical path downstream consumers expect for a
// reconstructed entry.
func ReconstructedPath(key models.RecordKey, regionName, dateStamp string) string {
	initial := ""
	if r, size := utf8.DecodeRuneInString(key.Occasion); size > 0 {
		initial = string(r)
	}
	return fmt.Sprintf("./%s/%s/%s_%s_%s_%s.zip",
		initial, key.ElectionType, dateStamp, StripDiacritics(regionName), key.RegionCode, key.ElectionType)
}
