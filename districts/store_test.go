// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package districts

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/tallywatch/ingest"
	"github.com/danielhkuo/tallywatch/models"
)

type staticEntries struct {
	mu      sync.Mutex
	entries []models.ManifestEntry
}

func (s *staticEntries) Entries() []models.ManifestEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ManifestEntry(nil), s.entries...)
}

func (s *staticEntries) set(entries ...models.ManifestEntry) {
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

type memoryBlobs map[string][]byte

func (m memoryBlobs) Read(hash string) ([]byte, error) {
	data, ok := m[hash]
	if !ok {
		return nil, fmt.Errorf("no blob %s", hash)
	}
	return data, nil
}

// countingDecoder decodes a blob's bytes as the region code.
func countingDecoder(calls *atomic.Int32) ingest.Decoder {
	return ingest.DecoderFunc(func(data []byte) (models.Bundle, error) {
		calls.Add(1)
		if string(data) == "broken" {
			return models.Bundle{}, ingest.ErrRecordIncomplete
		}
		return models.Bundle{Region: models.Region{Code: string(data)}}, nil
	})
}

func TestMaterializeMemoizes(t *testing.T) {
	var calls atomic.Int32
	entries := &staticEntries{}
	store := NewStore(entries, memoryBlobs{"h1": []byte("01")}, countingDecoder(&calls))

	for i := 0; i < 3; i++ {
		bundle, err := store.Materialize("h1")
		if err != nil {
			t.Fatalf("Materialize failed: %v", err)
		}
		if bundle.Region.Code != "01" {
			t.Errorf("Expected region 01, got %q", bundle.Region.Code)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("Expected one decode, got %d", calls.Load())
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 decoded bundle, got %d", store.Len())
	}
}

func TestMaterializeConcurrent(t *testing.T) {
	var calls atomic.Int32
	store := NewStore(&staticEntries{}, memoryBlobs{"h1": []byte("01")}, countingDecoder(&calls))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Materialize("h1"); err != nil {
				t.Errorf("Materialize failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("Expected concurrent requests to share one decode, got %d", calls.Load())
	}
}

func TestMaterializeErrors(t *testing.T) {
	var calls atomic.Int32
	store := NewStore(&staticEntries{}, memoryBlobs{"bad": []byte("broken")}, countingDecoder(&calls))

	if _, err := store.Materialize("bad"); !errors.Is(err, ingest.ErrRecordIncomplete) {
		t.Errorf("Expected ErrRecordIncomplete, got %v", err)
	}
	if _, err := store.Materialize("missing"); err == nil {
		t.Error("Expected error for missing blob")
	}
	if store.Len() != 0 {
		t.Errorf("Expected failures not to be memoized, got %d", store.Len())
	}
}

func TestBundlesRestartable(t *testing.T) {
	var calls atomic.Int32
	entries := &staticEntries{}
	entries.set(
		models.ManifestEntry{Hash: "h1", Path: "./a.zip"},
		models.ManifestEntry{Hash: "h2", Path: "./b.zip"},
	)
	blobs := memoryBlobs{"h1": []byte("01"), "h2": []byte("02"), "h3": []byte("03")}
	store := NewStore(entries, blobs, countingDecoder(&calls))

	collect := func() []string {
		var codes []string
		for bundle, err := range store.Bundles() {
			if err != nil {
				t.Fatalf("Bundles failed: %v", err)
			}
			codes = append(codes, bundle.Region.Code)
		}
		return codes
	}

	first := collect()
	second := collect()
	if fmt.Sprint(first) != "[01 02]" || fmt.Sprint(second) != "[01 02]" {
		t.Errorf("Expected [01 02] twice, got %v and %v", first, second)
	}

	entries.set(
		models.ManifestEntry{Hash: "h2", Path: "./b.zip"},
		models.ManifestEntry{Hash: "h3", Path: "./c.zip"},
	)
	if got := collect(); fmt.Sprint(got) != "[02 03]" {
		t.Errorf("Expected new manifest to be seen, got %v", got)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 decodes, got %d", calls.Load())
	}
}

func TestBundlesFailFast(t *testing.T) {
	var calls atomic.Int32
	entries := &staticEntries{}
	entries.set(
		models.ManifestEntry{Hash: "h1", Path: "./a.zip"},
		models.ManifestEntry{Hash: "bad", Path: "./bad.zip"},
		models.ManifestEntry{Hash: "h2", Path: "./b.zip"},
	)
	store := NewStore(entries, memoryBlobs{"h1": []byte("01"), "bad": []byte("broken"), "h2": []byte("02")}, countingDecoder(&calls))

	var seen []string
	var failure error
	for bundle, err := range store.Bundles() {
		if err != nil {
			failure = err
			break
		}
		seen = append(seen, bundle.Region.Code)
	}

	if !errors.Is(failure, ingest.ErrRecordIncomplete) {
		t.Errorf("Expected ErrRecordIncomplete, got %v", failure)
	}
	if fmt.Sprint(seen) != "[01]" {
		t.Errorf("Expected iteration to stop at the bad bundle, got %v", seen)
	}
}

func TestRetain(t *testing.T) {
	var calls atomic.Int32
	store := NewStore(&staticEntries{}, memoryBlobs{"h1": []byte("01"), "h2": []byte("02")}, countingDecoder(&calls))
	store.Materialize("h1")
	store.Materialize("h2")

	store.Retain(map[string]struct{}{"h2": {}})

	if store.Len() != 1 {
		t.Errorf("Expected 1 decoded bundle, got %d", store.Len())
	}
	store.Materialize("h1")
	if calls.Load() != 3 {
		t.Errorf("Expected evicted bundle to be decoded again, got %d decodes", calls.Load())
	}
}

func TestRetainDuringDecode(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	decoder := ingest.DecoderFunc(func(data []byte) (models.Bundle, error) {
		close(started)
		<-release
		return models.Bundle{Region: models.Region{Code: string(data)}}, nil
	})
	store := NewStore(&staticEntries{}, memoryBlobs{"h1": []byte("01")}, decoder)

	done := make(chan error, 1)
	go func() {
		bundle, err := store.Materialize("h1")
		if err == nil && bundle.Region.Code != "01" {
			err = fmt.Errorf("unexpected region %q", bundle.Region.Code)
		}
		done <- err
	}()

	<-started
	store.Retain(map[string]struct{}{"h2": {}})
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected bundle evicted mid-decode not to be cached, got %d", store.Len())
	}
}

func TestRetainDuringDecodeKeepsListed(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	decoder := ingest.DecoderFunc(func(data []byte) (models.Bundle, error) {
		close(started)
		<-release
		return models.Bundle{Region: models.Region{Code: string(data)}}, nil
	})
	store := NewStore(&staticEntries{}, memoryBlobs{"h1": []byte("01")}, decoder)

	done := make(chan error, 1)
	go func() {
		_, err := store.Materialize("h1")
		done <- err
	}()

	<-started
	store.Retain(map[string]struct{}{"h1": {}})
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Expected retained bundle to be cached, got %d", store.Len())
	}
}
