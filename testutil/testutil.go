// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/tallywatch/db"
)

// District describes one voting district inside a test bundle. A nil Votes
// map gives a district without a vote distribution.
type District struct {
	Code             string
	Name             string
	Type             string
	Reported         bool
	EligibleVoters   int
	MunicipalityCode string
	CountyCode       string
	ConstituencyCode string
	CircuitCode      string
	Votes            map[string]int
	Invalid          int
}

// Bundle describes one result archive.
type Bundle struct {
	ElectionType string
	Occasion     string
	RegionCode   string
	RegionName   string
	UpdatedAt    time.Time
	Districts    []District
}

// BuildBundle encodes b as the authority's zip archive of a vote file and a
// seat file.
func BuildBundle(t *testing.T, b Bundle) []byte {
	t.Helper()

	stamp := b.UpdatedAt.Format(time.RFC3339)

	districts := make([]map[string]any, 0, len(b.Districts))
	for _, d := range b.Districts {
		wire := map[string]any{
			"namn":                 d.Name,
			"valdistriktstyp":      d.Type,
			"valdistriktskod":      d.Code,
			"kommunkod":            d.MunicipalityCode,
			"lankod":               d.CountyCode,
			"valomradeskod":        d.ConstituencyCode,
			"kretskod":             d.CircuitCode,
			"antalRostberattigade": d.EligibleVoters,
			"rapporteringsTid":     nil,
			"rostfordelning":       nil,
		}
		if d.Reported {
			wire["rapporteringsTid"] = stamp
		}
		if d.Votes != nil {
			parties := []map[string]any{}
			valid := 0
			for code, votes := range d.Votes {
				parties = append(parties, map[string]any{"partikod": code, "antalRoster": votes})
				valid += votes
			}
			wire["rostfordelning"] = map[string]any{
				"rosterPaverkaMandat": map[string]any{
					"antalRoster": valid,
					"partiRoster": parties,
				},
				"rosterEjPaverkaMandat": map[string]any{
					"antalRoster": d.Invalid,
				},
			}
			wire["totaltAntalRoster"] = valid + d.Invalid
		}
		districts = append(districts, wire)
	}

	votes := map[string]any{
		"valtillfalle":           "20220911",
		"rakningstillfalle":      b.Occasion,
		"valtyp":                 b.ElectionType,
		"senasteUppdateringstid": stamp,
		"valdistrikt":            districts,
	}
	seats := map[string]any{
		"valtillfalle":           "20220911",
		"rakningstillfalle":      b.Occasion,
		"valtyp":                 b.ElectionType,
		"senasteUppdateringstid": stamp,
		"valomrade": map[string]any{
			"namn":             b.RegionName,
			"kod":              b.RegionCode,
			"rapporteringsTid": stamp,
		},
	}

	return BuildArchive(t, map[string]any{
		fmt.Sprintf("Val_20220911_%s_%s_rostfordelning.json", b.RegionCode, b.ElectionType): votes,
		fmt.Sprintf("Val_20220911_%s_%s_mandatfordelning.json", b.RegionCode, b.ElectionType): seats,
	})
}

// BuildArchive zips each value as a JSON file. String values are written as
// they are.
func BuildArchive(t *testing.T, files map[string]any) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, v := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create archive entry: %v", err)
		}
		if s, ok := v.(string); ok {
			_, err = w.Write([]byte(s))
		} else {
			err = json.NewEncoder(w).Encode(v)
		}
		if err != nil {
			t.Fatalf("Failed to write archive entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close archive: %v", err)
	}
	return buf.Bytes()
}

// Hash returns the md5 hex digest used as a blob's content hash.
func Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ManifestBody renders "hash path" lines.
func ManifestBody(lines ...[2]string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l[0] + "  " + l[1] + "\n")
	}
	return b.String()
}

// Authority is a fake result server. It serves a manifest with an ETag and
// answers conditional requests, and serves files by logical path.
type Authority struct {
	Server *httptest.Server

	mu       sync.Mutex
	manifest string
	etag     string
	failing  bool
	files    map[string][]byte
	requests map[string]int
}

// NewAuthority starts a fake server that is closed when the test ends.
func NewAuthority(t *testing.T) *Authority {
	t.Helper()

	a := &Authority{
		files:    make(map[string][]byte),
		requests: make(map[string]int),
	}
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.Server.Close)
	return a
}

// URL returns the base URL, with a trailing slash.
func (a *Authority) URL() *url.URL {
	u, _ := url.Parse(a.Server.URL + "/")
	return u
}

// SetManifest replaces the manifest body and its ETag.
func (a *Authority) SetManifest(body, etag string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manifest = body
	a.etag = etag
}

// SetFailing makes every request fail with 500.
func (a *Authority) SetFailing(failing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failing = failing
}

// AddFile publishes data at a logical path such as "./s/RD/x.zip" and returns
// its content hash.
func (a *Authority) AddFile(logicalPath string, data []byte) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[cleanPath(logicalPath)] = data
	return Hash(data)
}

// Requests returns how many requests were made for a logical path.
func (a *Authority) Requests(logicalPath string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[cleanPath(logicalPath)]
}

// FileRequests returns how many requests were made for anything but the
// manifest.
func (a *Authority) FileRequests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for p, n := range a.requests {
		if p != "/index.md5" {
			total += n
		}
	}
	return total
}

func (a *Authority) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := cleanPath(r.URL.Path)
	a.requests[p]++

	if a.failing {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}

	if p == "/index.md5" {
		if a.etag != "" && r.Header.Get("If-None-Match") == a.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if a.etag != "" {
			w.Header().Set("ETag", a.etag)
		}
		w.Write([]byte(a.manifest))
		return
	}

	data, ok := a.files[p]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "./"))
}

// OpenJournal opens a migrated sqlite journal in a temp directory.
func OpenJournal(t *testing.T) *db.Journal {
	t.Helper()

	j, err := db.Open(db.TypeSQLite, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Failed to open test journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
