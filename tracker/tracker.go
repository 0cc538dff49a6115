// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/tallywatch/manifest"
	"github.com/danielhkuo/tallywatch/metadata"
	"github.com/danielhkuo/tallywatch/models"
	"github.com/danielhkuo/tallywatch/report"
	"github.com/danielhkuo/tallywatch/tally"
)

// OutcomeFailed is journaled for cycles that ended in an error.
const OutcomeFailed = "failed"

// Refresher keeps the manifest current.
type Refresher interface {
	Refresh(ctx context.Context) (manifest.Outcome, error)
	Entries() []models.ManifestEntry
}

// Fetcher makes sure every manifest entry is cached locally.
type Fetcher interface {
	EnsureAll(ctx context.Context, entries []models.ManifestEntry, workers int) ([]models.ManifestEntry, error)
}

// BundleSource yields the decoded bundles of the current manifest.
type BundleSource interface {
	Bundles() iter.Seq2[models.Bundle, error]
}

// Journal records finished cycles.
type Journal interface {
	RecordRun(ctx context.Context, run models.SyncRun) (models.SyncRun, error)
}

type Config struct {
	Election        string
	Occasion        string
	Follow          bool
	Delay           time.Duration
	Level           int
	CollectionLevel int
	Wednesday       bool
	Workers         int
}

type Deps struct {
	Manifest Refresher
	Blobs    Fetcher
	Bundles  BundleSource
	Catalog  *metadata.Catalog
	Journal  Journal
	// Output receives the console report. Nil disables it.
	Output io.Writer
}

// Snapshot is the result of the last successful analysis.
type Snapshot struct {
	ComputedAt    time.Time
	Election      string
	Occasion      string
	Adjusted      bool
	Districts     []models.District
	Votes         models.AggregationResult
	Apportionment *models.Apportionment
}

// Tracker runs refresh cycles and publishes the latest snapshot.
type Tracker struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	// stale is set while the manifest has changed since the last
	// successful analysis. Only Cycle touches it.
	stale bool

	mu     sync.RWMutex
	latest *Snapshot
}

func New(cfg Config, deps Deps) *Tracker {
	if deps.Catalog == nil {
		deps.Catalog = metadata.Empty()
	}
	return &Tracker{cfg: cfg, deps: deps, now: time.Now, stale: true}
}

// Latest returns the last published snapshot.
func (t *Tracker) Latest() (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == nil {
		return Snapshot{}, false
	}
	return *t.latest, true
}

// Cycle performs one refresh: sync the manifest, fetch new blobs, and, when
// anything changed since the last successful analysis, recompute and publish
// the snapshot. The cache is never modified by a failed cycle beyond blobs
// that were completely downloaded.
func (t *Tracker) Cycle(ctx context.Context) error {
	run := models.SyncRun{StartedAt: t.now()}

	outcome, err := t.deps.Manifest.Refresh(ctx)
	if err != nil {
		return t.fail(ctx, run, fmt.Errorf("failed to refresh manifest: %w", err))
	}
	run.Outcome = outcome.String()
	if outcome != manifest.Unchanged {
		t.stale = true
	}

	entries := t.deps.Manifest.Entries()
	run.ManifestEntries = len(entries)

	if !t.stale {
		slog.Debug("manifest unchanged, skipping analysis")
		t.record(ctx, run)
		return nil
	}

	fetched, err := t.deps.Blobs.EnsureAll(ctx, entries, t.cfg.Workers)
	run.Fetched = len(fetched)
	if err != nil {
		return t.fail(ctx, run, fmt.Errorf("failed to fetch result files: %w", err))
	}

	snapshot, err := t.analyze()
	if err != nil {
		return t.fail(ctx, run, err)
	}
	t.stale = false

	t.mu.Lock()
	t.latest = &snapshot
	t.mu.Unlock()

	slog.Info("snapshot updated",
		"outcome", run.Outcome,
		"entries", run.ManifestEntries,
		"fetched", run.Fetched,
		"districts", len(snapshot.Districts),
		"valid_votes", snapshot.Votes.ValidVotes,
	)

	if t.deps.Output != nil {
		if err := report.Write(t.deps.Output, t.deps.Catalog, t.reportInput(snapshot)); err != nil {
			slog.Warn("failed to write report", "error", err)
		}
	}

	t.record(ctx, run)
	return nil
}

func (t *Tracker) analyze() (Snapshot, error) {
	snapshot := Snapshot{
		ComputedAt: t.now(),
		Election:   t.cfg.Election,
		Occasion:   t.cfg.Occasion,
		Adjusted:   t.cfg.Wednesday,
	}

	for bundle, err := range t.deps.Bundles.Bundles() {
		if err != nil {
			return Snapshot{}, err
		}
		if bundle.Seats.Occasion != t.cfg.Occasion || bundle.Votes.ElectionType != t.cfg.Election {
			continue
		}
		snapshot.Districts = append(snapshot.Districts, bundle.Votes.Districts...)
	}

	snapshot.Votes = tally.Aggregate(snapshot.Districts)
	if t.cfg.Wednesday {
		snapshot.Votes = tally.Adjust(snapshot.Votes, tally.WednesdayVotes2018)
	}

	apportionment, err := tally.Apportion(snapshot.Votes.PartyVotes, snapshot.Votes.ValidVotes)
	switch {
	case errors.Is(err, tally.ErrNoEligibleParties):
		slog.Info("not enough data yet for seat apportionment")
	case err != nil:
		return Snapshot{}, err
	default:
		snapshot.Apportionment = &apportionment
	}

	return snapshot, nil
}

func (t *Tracker) reportInput(s Snapshot) report.Input {
	return report.Input{
		Election:        s.Election,
		Occasion:        s.Occasion,
		ComputedAt:      s.ComputedAt,
		Adjusted:        s.Adjusted,
		Districts:       s.Districts,
		Votes:           s.Votes,
		Apportionment:   s.Apportionment,
		Level:           t.cfg.Level,
		CollectionLevel: t.cfg.CollectionLevel,
	}
}

func (t *Tracker) fail(ctx context.Context, run models.SyncRun, err error) error {
	run.Error = err.Error()
	t.record(ctx, run)
	return err
}

func (t *Tracker) record(ctx context.Context, run models.SyncRun) {
	if t.deps.Journal == nil {
		return
	}
	run.FinishedAt = t.now()
	if run.Error != "" {
		run.Outcome = OutcomeFailed
	}
	if _, err := t.deps.Journal.RecordRun(ctx, run); err != nil {
		slog.Warn("failed to record sync run", "error", err)
	}
}

// Run performs cycles until ctx is done. Without Follow it runs a single
// cycle and returns its error. With Follow, cycle errors are logged and the
// next cycle starts after Delay.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		err := t.Cycle(ctx)
		if !t.cfg.Follow {
			return err
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("refresh cycle failed", "error", err)
		}

		timer := time.NewTimer(t.cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
