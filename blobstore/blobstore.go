// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package blobstore is a content-addressed cache of result archives, one file
// per md5 digest. Files are written once and never modified.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/tallywatch/models"
)

var (
	ErrDownloadFailed = errors.New("download failed")
	ErrNotFound       = errors.New("blob not found")
	ErrInvalidHash    = errors.New("invalid content hash")
)

// Outcome of an Ensure call
type Outcome int

const (
	AlreadyPresent Outcome = iota
	Fetched
)

func (o Outcome) String() string {
	if o == Fetched {
		return "fetched"
	}
	return "already_present"
}

// Store keeps one file per content hash under dir. A blob is written once and
// never replaced; hashes are assumed to be derived from content.
type Store struct {
	dir     string
	baseURL *url.URL
	client  *http.Client
}

func New(dir string, baseURL *url.URL, client *http.Client) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{dir: dir, baseURL: baseURL, client: client}
}

// Dir returns the directory blobs are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Has reports whether a blob for hash is stored locally.
func (s *Store) Has(hash string) bool {
	if validHash(hash) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(s.dir, hash))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the stored bytes for hash.
func (s *Store) Read(hash string) ([]byte, error) {
	if err := validHash(hash); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, hash))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", hash, err)
	}
	return data, nil
}

// Hashes lists stored blobs in lexical order. Names containing a dot (the
// manifest file, in-flight temp files) are not blobs.
func (s *Store) Hashes() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	hashes := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.Contains(entry.Name(), ".") {
			continue
		}
		hashes = append(hashes, entry.Name())
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Ensure makes sure the blob for hash is stored locally, downloading
// logicalPath relative to the base URL when it is not. A stored blob is never
// fetched again.
func (s *Store) Ensure(ctx context.Context, hash, logicalPath string) (Outcome, error) {
	if err := validHash(hash); err != nil {
		return AlreadyPresent, err
	}
	if s.Has(hash) {
		return AlreadyPresent, nil
	}

	slog.Info("downloading blob", "path", logicalPath, "hash", hash)

	data, err := s.download(ctx, logicalPath)
	if err != nil {
		return AlreadyPresent, fmt.Errorf("%w: %s: %v", ErrDownloadFailed, logicalPath, err)
	}

	written, err := s.writeIfAbsent(hash, data)
	if err != nil {
		return AlreadyPresent, err
	}
	if !written {
		return AlreadyPresent, nil
	}
	return Fetched, nil
}

// EnsureAll runs Ensure for every distinct hash in entries, at most workers at
// a time, and returns the entries that were downloaded. The first failure
// cancels the remaining downloads.
func (s *Store) EnsureAll(ctx context.Context, entries []models.ManifestEntry, workers int) ([]models.ManifestEntry, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if workers <= 0 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		fetched []models.ManifestEntry
		seen    = make(map[string]bool, len(entries))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, entry := range entries {
		if seen[entry.Hash] {
			continue
		}
		seen[entry.Hash] = true

		g.Go(func() error {
			outcome, err := s.Ensure(gctx, entry.Hash, entry.Path)
			if err != nil {
				return err
			}
			if outcome == Fetched {
				mu.Lock()
				fetched = append(fetched, entry)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fetched, err
	}
	return fetched, nil
}

func (s *Store) download(ctx context.Context, logicalPath string) ([]byte, error) {
	ref, err := url.Parse(logicalPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	target := s.baseURL.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// writeIfAbsent links a fully written temp file into place. os.Link fails
// when the target exists, so the first writer of a hash wins.
func (s *Store) writeIfAbsent(hash string, data []byte) (bool, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+hash+".*.tmp")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, fmt.Errorf("failed to write blob %s: %w", hash, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to write blob %s: %w", hash, err)
	}

	err = os.Link(tmpName, filepath.Join(s.dir, hash))
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store blob %s: %w", hash, err)
	}
	return true, nil
}

func validHash(hash string) error {
	if hash == "" || strings.ContainsAny(hash, `/\.`) {
		return fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	return nil
}
