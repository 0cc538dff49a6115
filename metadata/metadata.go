// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/danielhkuo/tallywatch/models"
)

var ErrUnknownLevel = errors.New("unknown region level")

// UnknownAbbreviation is shown for party codes missing from the catalog.
const UnknownAbbreviation = "??"

// Column positions in the participating-parties file.
const (
	colElection         = 0
	colConstituencyCode = 1
	colConstituencyName = 2
	colCircuitCode      = 3
	colCircuitName      = 4
	colCountyCode       = 5
	colCountyName       = 6
	colPartyName        = 7
	colAbbreviation     = 8
	colPartyCode        = 9
	colDate             = 11
)

// Party is one participating party.
type Party struct {
	Code         string
	Abbreviation string
	Name         string
}

// Level groups districts by one administrative region.
type Level struct {
	Number int
	Key    func(models.District) string
	Names  map[string]string
}

// Name returns the region name for code, or code itself when unknown.
func (l Level) Name(code string) string {
	if name, ok := l.Names[code]; ok {
		return name
	}
	return code
}

// levelKeys are the grouping keys of levels 0 through 3.
var levelKeys = []func(models.District) string{
	func(d models.District) string { return d.ConstituencyCode },
	func(d models.District) string { return d.CountyCode },
	func(d models.District) string { return d.CircuitCode },
	func(d models.District) string { return d.MunicipalityCode },
}

// Catalog holds party and region names for every election type.
type Catalog struct {
	parties map[string]Party
	levels  map[string][]map[string]string
}

// Empty returns a catalog without any names.
func Empty() *Catalog {
	return &Catalog{
		parties: make(map[string]Party),
		levels:  make(map[string][]map[string]string),
	}
}

// Load reads the catalog from path. A missing file gives an empty catalog.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("metadata file not found, names will fall back to codes", "path", path)
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata: %w", err)
	}
	defer f.Close()

	catalog, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	slog.Info("loaded election metadata", "path", path, "parties", len(catalog.parties))
	return catalog, nil
}

// Parse reads the semicolon separated participating-parties file. The first
// line is a header. When a party appears several times the row with the
// latest date wins.
func Parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}

	c := Empty()
	partyDates := make(map[string]time.Time)
	municipalities := make(map[string]string)

	for i, row := range rows {
		if len(row) <= colDate {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", i+2, colDate+1, len(row))
		}

		code := row[colPartyCode]
		date := parseDate(row[colDate])
		if _, seen := c.parties[code]; !seen || date.After(partyDates[code]) {
			c.parties[code] = Party{Code: code, Abbreviation: row[colAbbreviation], Name: row[colPartyName]}
			partyDates[code] = date
		}

		election := row[colElection]
		names, ok := c.levels[election]
		if !ok {
			names = []map[string]string{{}, {}, {}, nil}
			c.levels[election] = names
		}
		addName(names[0], row[colConstituencyCode], row[colConstituencyName])
		addName(names[1], row[colCountyCode], row[colCountyName])
		addName(names[2], row[colCircuitCode], row[colCircuitName])

		if election == models.ElectionMunicipal {
			addName(municipalities, row[colConstituencyCode], row[colConstituencyName])
		}
	}

	for _, names := range c.levels {
		names[3] = municipalities
	}
	return c, nil
}

func addName(names map[string]string, code, name string) {
	if code == "" {
		return
	}
	if _, ok := names[code]; !ok {
		names[code] = name
	}
}

func parseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Parties returns every known party keyed by code.
func (c *Catalog) Parties() map[string]Party {
	return c.parties
}

// Party looks up a party by code.
func (c *Catalog) Party(code string) (Party, bool) {
	p, ok := c.parties[code]
	return p, ok
}

// Abbreviate returns the party's abbreviation, or UnknownAbbreviation.
func (c *Catalog) Abbreviate(code string) string {
	if p, ok := c.parties[code]; ok {
		return p.Abbreviation
	}
	return UnknownAbbreviation
}

// PartyCode finds the code of the party with the given abbreviation. If two
// parties share it the lower code is returned.
func (c *Catalog) PartyCode(abbreviation string) (string, bool) {
	found := ""
	for _, p := range c.parties {
		if p.Abbreviation == abbreviation && (found == "" || p.Code < found) {
			found = p.Code
		}
	}
	return found, found != ""
}

// Level returns the grouping for level n (0 constituency, 1 county,
// 2 circuit, 3 municipality) of an election type. Unknown election types get
// a level without names.
func (c *Catalog) Level(election string, n int) (Level, error) {
	if n < 0 || n >= len(levelKeys) {
		return Level{}, fmt.Errorf("%w: %d", ErrUnknownLevel, n)
	}
	level := Level{Number: n, Key: levelKeys[n], Names: map[string]string{}}
	if names, ok := c.levels[election]; ok && names[n] != nil {
		level.Names = names[n]
	}
	return level, nil
}
