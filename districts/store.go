// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package districts

import (
	"fmt"
	"iter"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/tallywatch/ingest"
	"github.com/danielhkuo/tallywatch/models"
)

// EntrySource provides the current manifest.
type EntrySource interface {
	Entries() []models.ManifestEntry
}

// BlobReader reads a cached blob by hash.
type BlobReader interface {
	Read(hash string) ([]byte, error)
}

// Store materializes bundles for the entries of the current manifest and
// keeps each decoded bundle in memory, keyed by content hash.
type Store struct {
	entries EntrySource
	blobs   BlobReader
	decoder ingest.Decoder

	mu      sync.RWMutex
	decoded map[string]models.Bundle
	group   singleflight.Group

	// generation counts Retain calls; kept is the set of the last one.
	generation uint64
	kept       map[string]struct{}
}

func NewStore(entries EntrySource, blobs BlobReader, decoder ingest.Decoder) *Store {
	return &Store{
		entries: entries,
		blobs:   blobs,
		decoder: decoder,
		decoded: make(map[string]models.Bundle),
	}
}

// List returns the manifest entries currently known.
func (s *Store) List() []models.ManifestEntry {
	return s.entries.Entries()
}

// Materialize returns the bundle stored under hash, decoding it on first use.
// Concurrent calls for the same hash share one decode.
func (s *Store) Materialize(hash string) (models.Bundle, error) {
	s.mu.RLock()
	bundle, ok := s.decoded[hash]
	s.mu.RUnlock()
	if ok {
		return bundle, nil
	}

	v, err, _ := s.group.Do(hash, func() (interface{}, error) {
		s.mu.RLock()
		cached, ok := s.decoded[hash]
		generation := s.generation
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		data, err := s.blobs.Read(hash)
		if err != nil {
			return models.Bundle{}, err
		}
		decoded, err := s.decoder.Decode(data)
		if err != nil {
			return models.Bundle{}, fmt.Errorf("bundle %s: %w", hash, err)
		}

		s.mu.Lock()
		if s.retains(hash, generation) {
			s.decoded[hash] = decoded
		}
		s.mu.Unlock()
		return decoded, nil
	})
	if err != nil {
		return models.Bundle{}, err
	}
	return v.(models.Bundle), nil
}

// Bundles yields the bundle of every manifest entry in manifest order. The
// manifest is read when iteration starts, so ranging again after a refresh
// sees the new set. Iteration stops after the first error.
func (s *Store) Bundles() iter.Seq2[models.Bundle, error] {
	return func(yield func(models.Bundle, error) bool) {
		for _, entry := range s.List() {
			bundle, err := s.Materialize(entry.Hash)
			if err != nil {
				yield(models.Bundle{}, fmt.Errorf("failed to read %s: %w", entry.Path, err))
				return
			}
			if !yield(bundle, nil) {
				return
			}
		}
	}
}

// retains reports whether a bundle decoded since generation may be cached.
// A Retain in between that left hash out wins. Callers hold s.mu.
func (s *Store) retains(hash string, generation uint64) bool {
	if s.generation == generation {
		return true
	}
	_, ok := s.kept[hash]
	return ok
}

// Retain drops decoded bundles whose hash is not in hashes, including ones
// still being decoded.
func (s *Store) Retain(hashes map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.kept = hashes
	for hash := range s.decoded {
		if _, ok := hashes[hash]; !ok {
			delete(s.decoded, hash)
		}
	}
}

// Len reports how many bundles are decoded in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decoded)
}
