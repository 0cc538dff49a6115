// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielhkuo/tallywatch/models"
)

// FileName is the manifest's name on the authority's server and in the cache.
const FileName = "index.md5"

// placeholderPath marks an entry whose file is not published yet.
const placeholderPath = "-"

// Parse reads a manifest body: one "hash path" pair per line, blank lines
// ignored. Any malformed line rejects the whole manifest.
func Parse(r io.Reader) ([]models.ManifestEntry, error) {
	var entries []models.ManifestEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d has %d fields: %q", ErrMalformedManifest, lineNo, len(fields), line)
		}
		if fields[1] == placeholderPath {
			return nil, fmt.Errorf("%w: line %d is missing a file name", ErrMalformedManifest, lineNo)
		}

		entries = append(entries, models.ManifestEntry{Hash: fields[0], Path: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}

	return entries, nil
}

// Format renders entries in the same two-field shape Parse accepts.
func Format(entries []models.ManifestEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.Hash)
		buf.WriteByte(' ')
		buf.WriteString(e.Path)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Save rewrites the local manifest file in full.
func Save(path string, entries []models.ManifestEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create manifest temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(Format(entries)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// Load reads a manifest saved by Save. A missing file is reported with
// fs.ErrNotExist.
func Load(path string) ([]models.ManifestEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

func equalEntries(a, b []models.ManifestEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
