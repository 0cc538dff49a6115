// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/danielhkuo/tallywatch/models"
	"github.com/danielhkuo/tallywatch/testutil"
)

func TestEnsureFetchesOnce(t *testing.T) {
	authority := testutil.NewAuthority(t)
	hash := authority.AddFile("./s/RD/a.zip", []byte("archive-a"))
	store := New(t.TempDir(), authority.URL(), nil)
	ctx := context.Background()

	outcome, err := store.Ensure(ctx, hash, "./s/RD/a.zip")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if outcome != Fetched {
		t.Errorf("Expected Fetched, got %v", outcome)
	}

	outcome, err = store.Ensure(ctx, hash, "./s/RD/a.zip")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if outcome != AlreadyPresent {
		t.Errorf("Expected AlreadyPresent, got %v", outcome)
	}
	if n := authority.Requests("./s/RD/a.zip"); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}

	data, err := store.Read(hash)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "archive-a" {
		t.Errorf("Expected stored bytes, got %q", data)
	}
}

func TestEnsurePresentMakesNoRequest(t *testing.T) {
	authority := testutil.NewAuthority(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc123"), []byte("cached"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	store := New(dir, authority.URL(), nil)

	outcome, err := store.Ensure(context.Background(), "abc123", "./s/RD/missing.zip")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if outcome != AlreadyPresent {
		t.Errorf("Expected AlreadyPresent, got %v", outcome)
	}
	if n := authority.FileRequests(); n != 0 {
		t.Errorf("Expected no requests, got %d", n)
	}
}

func TestEnsureDownloadFailed(t *testing.T) {
	authority := testutil.NewAuthority(t)
	dir := t.TempDir()
	store := New(dir, authority.URL(), nil)

	_, err := store.Ensure(context.Background(), "deadbeef", "./s/RD/missing.zip")
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("Expected ErrDownloadFailed, got %v", err)
	}
	if store.Has("deadbeef") {
		t.Error("Expected nothing stored after failed download")
	}

	hashes, err := store.Hashes()
	if err != nil {
		t.Fatalf("Hashes failed: %v", err)
	}
	if len(hashes) != 0 {
		t.Errorf("Expected empty cache, got %v", hashes)
	}
}

func TestEnsureInvalidHash(t *testing.T) {
	store := New(t.TempDir(), testutil.NewAuthority(t).URL(), nil)
	for _, hash := range []string{"", "../etc", "index.md5", `a\b`} {
		if _, err := store.Ensure(context.Background(), hash, "x"); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("Ensure(%q): expected ErrInvalidHash, got %v", hash, err)
		}
	}
}

func TestWriteIfAbsentFirstWriterWins(t *testing.T) {
	store := New(t.TempDir(), nil, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	written := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.writeIfAbsent("samehash", []byte("content"))
			if err != nil {
				t.Errorf("writeIfAbsent failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				written++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if written != 1 {
		t.Errorf("Expected exactly one writer to win, got %d", written)
	}
	hashes, _ := store.Hashes()
	if !reflect.DeepEqual(hashes, []string{"samehash"}) {
		t.Errorf("Expected only the blob in the cache, got %v", hashes)
	}
}

func TestEnsureAll(t *testing.T) {
	authority := testutil.NewAuthority(t)
	h1 := authority.AddFile("./s/RD/1.zip", []byte("one"))
	h2 := authority.AddFile("./s/RD/2.zip", []byte("two"))
	h3 := authority.AddFile("./s/RD/3.zip", []byte("three"))
	store := New(t.TempDir(), authority.URL(), nil)

	entries := []models.ManifestEntry{
		{Hash: h1, Path: "./s/RD/1.zip"},
		{Hash: h2, Path: "./s/RD/2.zip"},
		{Hash: h2, Path: "./s/RD/2.zip"},
		{Hash: h3, Path: "./s/RD/3.zip"},
	}

	fetched, err := store.EnsureAll(context.Background(), entries, 2)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	if len(fetched) != 3 {
		t.Errorf("Expected 3 fetched entries, got %d", len(fetched))
	}
	if n := authority.Requests("./s/RD/2.zip"); n != 1 {
		t.Errorf("Expected duplicate hash fetched once, got %d", n)
	}

	fetched, err = store.EnsureAll(context.Background(), entries, 2)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	if len(fetched) != 0 {
		t.Errorf("Expected nothing fetched on second pass, got %d", len(fetched))
	}
	if n := authority.FileRequests(); n != 3 {
		t.Errorf("Expected 3 file requests in total, got %d", n)
	}
}

func TestEnsureAllFailure(t *testing.T) {
	authority := testutil.NewAuthority(t)
	h1 := authority.AddFile("./s/RD/1.zip", []byte("one"))
	store := New(t.TempDir(), authority.URL(), nil)

	entries := []models.ManifestEntry{
		{Hash: h1, Path: "./s/RD/1.zip"},
		{Hash: "feedface", Path: "./s/RD/missing.zip"},
	}

	_, err := store.EnsureAll(context.Background(), entries, 1)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("Expected ErrDownloadFailed, got %v", err)
	}
	if store.Has("feedface") {
		t.Error("Expected missing blob not to be stored")
	}
}

func TestHashesSkipsDotFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"bbb", "aaa", "index.md5", ".aaa.123.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	hashes, err := New(dir, nil, nil).Hashes()
	if err != nil {
		t.Fatalf("Hashes failed: %v", err)
	}
	if !reflect.DeepEqual(hashes, []string{"aaa", "bbb"}) {
		t.Errorf("Expected [aaa bbb], got %v", hashes)
	}
}

func TestHashesMissingDir(t *testing.T) {
	hashes, err := New(filepath.Join(t.TempDir(), "none"), nil, nil).Hashes()
	if err != nil || len(hashes) != 0 {
		t.Errorf("Expected empty list for missing dir, got %v (%v)", hashes, err)
	}
}

func TestReadNotFound(t *testing.T) {
	_, err := New(t.TempDir(), nil, nil).Read("nothere")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
