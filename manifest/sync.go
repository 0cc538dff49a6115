// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/danielhkuo/tallywatch/ingest"
	"github.com/danielhkuo/tallywatch/models"
)

var (
	ErrManifestUnavailable = errors.New("manifest unavailable")
	ErrMalformedManifest   = errors.New("malformed manifest")
)

// minEntries is the smallest manifest accepted from the server. Anything
// shorter is a placeholder response.
const minEntries = 3

// Outcome of a Refresh call
type Outcome int

const (
	Unchanged Outcome = iota
	Changed
	Reconstructed
)

func (o Outcome) String() string {
	switch o {
	case Changed:
		return "changed"
	case Reconstructed:
		return "reconstructed"
	default:
		return "unchanged"
	}
}

// Evictor drops decoded records whose hash is no longer listed.
type Evictor interface {
	Retain(hashes map[string]struct{})
}

// StateStore persists the validation token between runs.
type StateStore interface {
	LoadETag(ctx context.Context) (string, error)
	SaveETag(ctx context.Context, etag string) error
}

type Options struct {
	BaseURL   *url.URL
	Client    *http.Client
	LocalPath string
	Blobs     BlobSource
	Decoder   ingest.Decoder
	Evictor   Evictor
	State     StateStore
	DateStamp string
}

// Synchronizer holds the current manifest and refreshes it from the
// authority with conditional requests.
type Synchronizer struct {
	opts Options

	mu          sync.RWMutex
	entries     []models.ManifestEntry
	etag        string
	hasManifest bool
	lastOutcome Outcome
	refreshedAt time.Time
}

func New(opts Options) *Synchronizer {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.DateStamp == "" {
		opts.DateStamp = DefaultDateStamp
	}
	return &Synchronizer{opts: opts}
}

// SetEvictor registers the decode cache to prune after a refresh. The store
// that owns that cache usually reads its entries from s, so it cannot be
// passed to New.
func (s *Synchronizer) SetEvictor(e Evictor) {
	s.mu.Lock()
	s.opts.Evictor = e
	s.mu.Unlock()
}

// Load restores the manifest saved by a previous run, and its validation
// token when one was stored. A missing file leaves the synchronizer empty.
func (s *Synchronizer) Load(ctx context.Context) error {
	entries, err := Load(s.opts.LocalPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	etag := ""
	if s.opts.State != nil {
		etag, err = s.opts.State.LoadETag(ctx)
		if err != nil {
			slog.Warn("failed to load manifest etag", "error", err)
			etag = ""
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.etag = etag
	s.hasManifest = true
	s.mu.Unlock()

	slog.Info("restored manifest", "entries", len(entries), "etag", etag)
	return nil
}

// Entries returns a copy of the current manifest.
func (s *Synchronizer) Entries() []models.ManifestEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ManifestEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Status reports the synchronizer's state for display.
func (s *Synchronizer) Status() models.ManifestStatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := models.ManifestStatusResponse{
		Entries:     len(s.entries),
		ETag:        s.etag,
		RefreshedAt: s.refreshedAt,
	}
	if !s.refreshedAt.IsZero() {
		status.LastOutcome = s.lastOutcome.String()
	}
	return status
}

// Refresh makes one conditional request for the manifest. A "not modified"
// answer returns Unchanged. Any usable answer replaces the manifest in full.
// When the manifest cannot be fetched or parsed, it is rebuilt from the cache
// instead and Reconstructed is returned.
func (s *Synchronizer) Refresh(ctx context.Context) (Outcome, error) {
	entries, etag, notModified, err := s.fetch(ctx)
	if err != nil {
		slog.Warn("manifest unusable, reconstructing from cache", "error", err)
		return s.reconstruct(ctx)
	}
	if notModified {
		s.finish(Unchanged)
		return Unchanged, nil
	}

	if etag != "" {
		slog.Info("saving manifest", "etag", etag, "entries", len(entries))
	}
	// The held manifest and etag only move once the file is on disk, so a
	// failed save is retried unconditionally on the next refresh.
	if err := Save(s.opts.LocalPath, entries); err != nil {
		return Unchanged, err
	}

	s.mu.Lock()
	same := s.hasManifest && equalEntries(s.entries, entries)
	s.entries = entries
	s.etag = etag
	s.hasManifest = true
	s.mu.Unlock()

	s.saveETag(ctx, etag)
	s.evict(entries)

	outcome := Changed
	if same {
		outcome = Unchanged
	}
	s.finish(outcome)
	return outcome, nil
}

func (s *Synchronizer) fetch(ctx context.Context) (entries []models.ManifestEntry, etag string, notModified bool, err error) {
	target := s.opts.BaseURL.ResolveReference(&url.URL{Path: FileName})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}

	s.mu.RLock()
	if s.hasManifest && s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	s.mu.RUnlock()

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		io.Copy(io.Discard, resp.Body)
		return nil, "", true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", false, fmt.Errorf("%w: status %d", ErrManifestUnavailable, resp.StatusCode)
	}

	entries, err = Parse(resp.Body)
	if err != nil {
		return nil, "", false, err
	}
	if len(entries) < minEntries {
		return nil, "", false, fmt.Errorf("%w: only %d entries", ErrMalformedManifest, len(entries))
	}

	return entries, resp.Header.Get("ETag"), false, nil
}

// reconstruct replaces the manifest with one built from the cache. The
// validation token is dropped so the next fetch is unconditional.
func (s *Synchronizer) reconstruct(ctx context.Context) (Outcome, error) {
	entries, err := Reconstruct(s.opts.Blobs, s.opts.Decoder, s.opts.DateStamp)
	if err != nil {
		return Unchanged, fmt.Errorf("failed to reconstruct manifest: %w", err)
	}
	slog.Info("reconstructed manifest", "entries", len(entries))

	if err := Save(s.opts.LocalPath, entries); err != nil {
		return Unchanged, err
	}

	s.mu.Lock()
	same := s.hasManifest && equalEntries(s.entries, entries)
	s.entries = entries
	s.etag = ""
	s.hasManifest = true
	s.mu.Unlock()

	s.saveETag(ctx, "")
	s.evict(entries)

	if same {
		s.finish(Unchanged)
		return Unchanged, nil
	}
	s.finish(Reconstructed)
	return Reconstructed, nil
}

func (s *Synchronizer) saveETag(ctx context.Context, etag string) {
	if s.opts.State == nil {
		return
	}
	if err := s.opts.State.SaveETag(ctx, etag); err != nil {
		slog.Warn("failed to save manifest etag", "error", err)
	}
}

func (s *Synchronizer) evict(entries []models.ManifestEntry) {
	s.mu.RLock()
	evictor := s.opts.Evictor
	s.mu.RUnlock()
	if evictor == nil {
		return
	}
	keep := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keep[e.Hash] = struct{}{}
	}
	evictor.Retain(keep)
}

func (s *Synchronizer) finish(outcome Outcome) {
	s.mu.Lock()
	s.lastOutcome = outcome
	s.refreshedAt = time.Now()
	s.mu.Unlock()
}
