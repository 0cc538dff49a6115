// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package manifest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/danielhkuo/tallywatch/blobstore"
	"github.com/danielhkuo/tallywatch/ingest"
	"github.com/danielhkuo/tallywatch/models"
	"github.com/danielhkuo/tallywatch/testutil"
)

type fixture struct {
	authority *testutil.Authority
	blobs     *blobstore.Store
	sync      *Synchronizer
	local     string
	evicted   []map[string]struct{}
}

func (f *fixture) Retain(hashes map[string]struct{}) {
	f.evicted = append(f.evicted, hashes)
}

type memoryState struct {
	etag  string
	saves int
}

func (m *memoryState) LoadETag(context.Context) (string, error) { return m.etag, nil }

func (m *memoryState) SaveETag(_ context.Context, etag string) error {
	m.etag = etag
	m.saves++
	return nil
}

func newFixture(t *testing.T, state StateStore) *fixture {
	t.Helper()

	dir := t.TempDir()
	f := &fixture{authority: testutil.NewAuthority(t), local: filepath.Join(dir, FileName)}
	f.blobs = blobstore.New(dir, f.authority.URL(), nil)
	f.sync = New(Options{
		BaseURL:   f.authority.URL(),
		LocalPath: f.local,
		Blobs:     f.blobs,
		Decoder:   ingest.NewZipDecoder(),
		Evictor:   f,
		State:     state,
	})
	return f
}

func bundle(t *testing.T, region, name, occasion string, updated time.Time) []byte {
	t.Helper()
	return testutil.BuildBundle(t, testutil.Bundle{
		ElectionType: models.ElectionRiksdag,
		Occasion:     occasion,
		RegionCode:   region,
		RegionName:   name,
		UpdatedAt:    updated,
	})
}

const threeEntries = "aaa ./s/RD/a.zip\nbbb ./s/RD/b.zip\nccc ./s/RD/c.zip\n"

func TestRefreshChangedThenNotModified(t *testing.T) {
	state := &memoryState{}
	f := newFixture(t, state)
	f.authority.SetManifest(threeEntries, `"v1"`)
	ctx := context.Background()

	outcome, err := f.sync.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if outcome != Changed {
		t.Errorf("Expected Changed, got %v", outcome)
	}
	if len(f.sync.Entries()) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(f.sync.Entries()))
	}
	if state.etag != `"v1"` {
		t.Errorf("Expected etag to be saved, got %q", state.etag)
	}
	if len(f.evicted) != 1 || len(f.evicted[0]) != 3 {
		t.Errorf("Expected one eviction pass over 3 hashes, got %v", f.evicted)
	}

	if err := os.Remove(f.local); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	outcome, err = f.sync.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("Expected Unchanged, got %v", outcome)
	}
	if _, err := os.Stat(f.local); !errors.Is(err, fs.ErrNotExist) {
		t.Error("Expected no write of the local manifest on not-modified")
	}
	if state.saves != 1 {
		t.Errorf("Expected etag saved once, got %d", state.saves)
	}
	if hashes, _ := f.blobs.Hashes(); len(hashes) != 0 {
		t.Errorf("Expected no cache writes, got %v", hashes)
	}
	if status := f.sync.Status(); status.LastOutcome != "unchanged" || status.ETag != `"v1"` {
		t.Errorf("Expected unchanged status with etag, got %+v", status)
	}
}

func TestRefreshSaveFailureKeepsPreviousManifest(t *testing.T) {
	state := &memoryState{}
	f := newFixture(t, state)
	f.authority.SetManifest(threeEntries, `"v1"`)
	ctx := context.Background()

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	f.local = filepath.Join(blocker, FileName)
	f.sync = New(Options{
		BaseURL:   f.authority.URL(),
		LocalPath: f.local,
		Blobs:     f.blobs,
		Decoder:   ingest.NewZipDecoder(),
		Evictor:   f,
		State:     state,
	})

	if _, err := f.sync.Refresh(ctx); err == nil {
		t.Fatal("Expected error when the local manifest cannot be written")
	}
	if len(f.sync.Entries()) != 0 {
		t.Errorf("Expected no entries after a failed save, got %v", f.sync.Entries())
	}
	if status := f.sync.Status(); status.ETag != "" {
		t.Errorf("Expected etag not to be held after a failed save, got %q", status.ETag)
	}
	if state.saves != 0 || len(f.evicted) != 0 {
		t.Errorf("Expected no etag save or eviction, got %d saves and %v", state.saves, f.evicted)
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	outcome, err := f.sync.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if outcome != Changed {
		t.Errorf("Expected the unchanged server manifest to be reported as Changed, got %v", outcome)
	}
	if len(f.sync.Entries()) != 3 || state.etag != `"v1"` {
		t.Errorf("Expected 3 entries and etag v1, got %d and %q", len(f.sync.Entries()), state.etag)
	}
}

func TestReconstructionSaveFailureKeepsPreviousManifest(t *testing.T) {
	state := &memoryState{etag: `"old"`}
	f := newFixture(t, state)
	ctx := context.Background()

	data := bundle(t, "01", "Stockholms län", models.OccasionFinal, time.Date(2022, 9, 11, 20, 0, 0, 0, time.UTC))
	hash := f.authority.AddFile("./s/RD/x.zip", data)
	if _, err := f.blobs.Ensure(ctx, hash, "./s/RD/x.zip"); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	f.authority.SetFailing(true)

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	f.sync = New(Options{
		BaseURL:   f.authority.URL(),
		LocalPath: filepath.Join(blocker, FileName),
		Blobs:     f.blobs,
		Decoder:   ingest.NewZipDecoder(),
		Evictor:   f,
		State:     state,
	})

	if _, err := f.sync.Refresh(ctx); err == nil {
		t.Fatal("Expected error when the reconstructed manifest cannot be written")
	}
	if len(f.sync.Entries()) != 0 {
		t.Errorf("Expected no entries after a failed save, got %v", f.sync.Entries())
	}
	if state.etag != `"old"` || len(f.evicted) != 0 {
		t.Errorf("Expected state untouched, got etag %q and evictions %v", state.etag, f.evicted)
	}
}

func TestRefreshNewManifestReplacesInFull(t *testing.T) {
	f := newFixture(t, nil)
	f.authority.SetManifest(threeEntries, `"v1"`)
	ctx := context.Background()

	if _, err := f.sync.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	f.authority.SetManifest("ddd ./s/RD/a.zip\nbbb ./s/RD/b.zip\neee ./s/RD/e.zip\n", `"v2"`)
	outcome, err := f.sync.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if outcome != Changed {
		t.Errorf("Expected Changed, got %v", outcome)
	}

	loaded, err := Load(f.local)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, f.sync.Entries()) {
		t.Errorf("Expected local file to match held manifest, got %v", loaded)
	}
	if _, ok := f.evicted[1]["aaa"]; ok {
		t.Error("Expected hash aaa to be evicted")
	}
	if _, ok := f.evicted[1]["bbb"]; !ok {
		t.Error("Expected hash bbb to be retained")
	}
}

func TestRefreshSameBodyNewETagIsUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	f.authority.SetManifest(threeEntries, `"v1"`)
	ctx := context.Background()

	if _, err := f.sync.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	f.authority.SetManifest(threeEntries, `"v2"`)

	outcome, err := f.sync.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("Expected Unchanged, got %v", outcome)
	}
}

func TestRefreshRestoresETagFromState(t *testing.T) {
	state := &memoryState{etag: `"v1"`}
	f := newFixture(t, state)
	if err := Save(f.local, []models.ManifestEntry{{Hash: "aaa", Path: "./a.zip"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	f.authority.SetManifest(threeEntries, `"v1"`)
	ctx := context.Background()

	if err := f.sync.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	outcome, err := f.sync.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("Expected conditional request to be answered not-modified, got %v", outcome)
	}
	if len(f.sync.Entries()) != 1 {
		t.Errorf("Expected restored manifest to be kept, got %v", f.sync.Entries())
	}
}

func TestLoadWithoutLocalFile(t *testing.T) {
	f := newFixture(t, &memoryState{etag: `"stale"`})
	if err := f.sync.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(f.sync.Entries()) != 0 || f.sync.Status().ETag != "" {
		t.Errorf("Expected empty synchronizer, got %+v", f.sync.Status())
	}
}

func TestRefreshFallsBackToReconstruction(t *testing.T) {
	base := time.Date(2022, 9, 11, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		setup func(a *testutil.Authority)
	}{
		{"server error", func(a *testutil.Authority) { a.SetFailing(true) }},
		{"placeholder line", func(a *testutil.Authority) { a.SetManifest("aaa ./a.zip\nabc123   -\nccc ./c.zip\n", `"x"`) }},
		{"too few entries", func(a *testutil.Authority) { a.SetManifest("aaa ./a.zip\nbbb ./b.zip\n", `"x"`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &memoryState{etag: `"old"`}
			f := newFixture(t, state)
			data := bundle(t, "01", "Stockholms län", models.OccasionFinal, base)
			hash := f.authority.AddFile("./s/RD/x.zip", data)
			if _, err := f.blobs.Ensure(context.Background(), hash, "./s/RD/x.zip"); err != nil {
				t.Fatalf("Ensure failed: %v", err)
			}
			tt.setup(f.authority)

			outcome, err := f.sync.Refresh(context.Background())
			if err != nil {
				t.Fatalf("Refresh failed: %v", err)
			}
			if outcome != Reconstructed {
				t.Errorf("Expected Reconstructed, got %v", outcome)
			}

			want := []models.ManifestEntry{{Hash: hash, Path: "./s/RD/Val_20220911_Stockholms lan_01_RD.zip"}}
			if !reflect.DeepEqual(f.sync.Entries(), want) {
				t.Errorf("Expected %v, got %v", want, f.sync.Entries())
			}
			if state.etag != "" {
				t.Errorf("Expected etag to be cleared, got %q", state.etag)
			}
			if loaded, _ := Load(f.local); !reflect.DeepEqual(loaded, want) {
				t.Errorf("Expected reconstructed manifest on disk, got %v", loaded)
			}

			outcome, err = f.sync.Refresh(context.Background())
			if err != nil {
				t.Fatalf("Refresh failed: %v", err)
			}
			if outcome != Unchanged {
				t.Errorf("Expected repeated reconstruction to be Unchanged, got %v", outcome)
			}
		})
	}
}

func TestReconstructLatestWins(t *testing.T) {
	dir := t.TempDir()
	blobs := blobstore.New(dir, nil, nil)
	base := time.Date(2022, 9, 11, 20, 0, 0, 0, time.UTC)

	write := func(name string, data []byte) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	write("h1", bundle(t, "01", "Stockholm", models.OccasionFinal, base))
	write("h2", bundle(t, "01", "Stockholm", models.OccasionFinal, base.Add(time.Hour)))
	write("h3", bundle(t, "01", "Stockholm", models.OccasionFinal, base.Add(time.Hour)))
	write("h4", bundle(t, "01", "Stockholm", models.OccasionPreliminary, base))
	write("h5", []byte("not a zip"))
	write(FileName, []byte("ignored"))

	entries, err := Reconstruct(blobs, ingest.NewZipDecoder(), "")
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	want := []models.ManifestEntry{
		{Hash: "h2", Path: "./s/RD/Val_20220911_Stockholm_01_RD.zip"},
		{Hash: "h4", Path: "./p/RD/Val_20220911_Stockholm_01_RD.zip"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("Expected %v, got %v", want, entries)
	}

	again, err := Reconstruct(blobs, ingest.NewZipDecoder(), "")
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if !reflect.DeepEqual(again, entries) {
		t.Errorf("Expected deterministic result, got %v then %v", entries, again)
	}
}

func TestReconstructEmptyCache(t *testing.T) {
	entries, err := Reconstruct(blobstore.New(t.TempDir(), nil, nil), ingest.NewZipDecoder(), "")
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty manifest, got %v", entries)
	}
}

func TestReconstructedPath(t *testing.T) {
	key := models.RecordKey{ElectionType: models.ElectionMunicipal, RegionCode: "1480", Occasion: models.OccasionPreliminary}

	tests := []struct {
		dateStamp string
		want      string
	}{
		{"Val_20260913", "./p/KF/Val_20260913_Goteborg_1480_KF.zip"},
		{"20260913", "./p/KF/20260913_Goteborg_1480_KF.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.dateStamp, func(t *testing.T) {
			if got := ReconstructedPath(key, "Göteborg", tt.dateStamp); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	for outcome, want := range map[Outcome]string{Unchanged: "unchanged", Changed: "changed", Reconstructed: "reconstructed"} {
		if got := outcome.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}
