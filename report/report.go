// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/tallywatch/metadata"
	"github.com/danielhkuo/tallywatch/models"
	"github.com/danielhkuo/tallywatch/tally"
)

// NoEligibleParties is printed in place of the seat table before any
// counting has happened.
const NoEligibleParties = "No eligible parties, i.e. no votes yet counted."

// HeaderParties is the number of party columns in the tables.
const HeaderParties = 10

// Input is everything one console report shows.
type Input struct {
	Election   string
	Occasion   string
	ComputedAt time.Time
	Adjusted   bool

	// Districts is the unadjusted district set the votes tables group.
	Districts []models.District
	// Votes is the national result the seats were computed from.
	Votes         models.AggregationResult
	Apportionment *models.Apportionment

	// Level and CollectionLevel pick the region level of the votes table and
	// of the collection district table. Negative values skip the table.
	Level           int
	CollectionLevel int
}

// Write prints the report for in to w.
func Write(w io.Writer, catalog *metadata.Catalog, in Input) error {
	p := &printer{w: w, catalog: catalog}

	parties := make([]metadata.Party, 0, HeaderParties)
	for _, code := range tally.TopParties(in.Votes, HeaderParties) {
		party, ok := catalog.Party(code)
		if !ok {
			party = metadata.Party{Code: code, Abbreviation: catalog.Abbreviate(code)}
		}
		parties = append(parties, party)
	}

	p.printf("Updating @ %s (%s %s)\n", in.ComputedAt.Format(time.TimeOnly), in.Election, in.Occasion)
	p.printf("Valid votes %s, invalid %s, %s of %s districts counted",
		humanize.Comma(int64(in.Votes.ValidVotes)),
		humanize.Comma(int64(in.Votes.InvalidVotes)),
		humanize.Comma(int64(in.Votes.CountedDistricts)),
		humanize.Comma(int64(in.Votes.TotalDistricts)))
	if in.Adjusted {
		p.printf(" (adjusted)")
	}
	p.printf("\n")

	if in.Level >= 0 {
		p.printf("\nVotes\n\n")
		if err := p.votes(in.Election, in.Level, in.Districts, parties); err != nil {
			return err
		}
	}

	if in.CollectionLevel >= 0 {
		var collection []models.District
		for _, d := range in.Districts {
			if d.Type == models.DistrictTypeCollection {
				collection = append(collection, d)
			}
		}
		p.printf("\nUppsamling\n\n")
		if err := p.votes(in.Election, in.CollectionLevel, collection, parties); err != nil {
			return err
		}
	}

	p.printf("\nSeats\n\n")
	p.seats(in.Votes, in.Apportionment, parties)

	return p.err
}

type printer struct {
	w       io.Writer
	catalog *metadata.Catalog
	err     error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) header(parties []metadata.Party) {
	p.printf("%20s", " ")
	for _, party := range parties {
		p.printf("| %6s ", party.Abbreviation)
	}
	p.printf("|\n")
}

// count prints one row of party shares. Shares are of valid votes, or of all
// votes when onlyValid is false.
func (p *printer) count(r models.AggregationResult, parties []metadata.Party, label string, onlyValid bool) {
	base := r.ValidVotes
	if !onlyValid {
		base = r.TotalVotes()
	}
	p.printf("%20s", truncate(label, 20))
	for _, party := range parties {
		p.printf("|%s ", percent(tally.Share(r.PartyVotes[party.Code], base), 7))
	}
	p.printf("| %4d/%4d ", r.CountedDistricts, r.TotalDistricts)
	p.printf("| %s ", percent(tally.Turnout(r), 6))
	p.printf("|\n")
}

func (p *printer) votes(election string, n int, districts []models.District, parties []metadata.Party) error {
	level, err := p.catalog.Level(election, n)
	if err != nil {
		return err
	}

	p.header(parties)
	for _, group := range tally.GroupBy(districts, level.Key) {
		p.count(group.Result, parties, level.Name(group.Key), true)
	}

	total := tally.Aggregate(districts)
	p.count(total, parties, "TOTALT", false)
	p.count(total, parties, "OF VALID", true)
	return nil
}

func (p *printer) seats(votes models.AggregationResult, a *models.Apportionment, parties []metadata.Party) {
	if a == nil {
		p.printf("%s\n", NoEligibleParties)
		return
	}

	for _, round := range a.Closing {
		if round.RunnerUp == nil {
			p.printf("%2s: %.1f\n", p.catalog.Abbreviate(round.Winner.Party), round.Winner.Quotient)
			continue
		}
		p.printf("%2s före %2s: %.1f vs. %.1f\n",
			p.catalog.Abbreviate(round.Winner.Party),
			p.catalog.Abbreviate(round.RunnerUp.Party),
			round.Winner.Quotient, round.RunnerUp.Quotient)
	}

	standing := make([]string, 0, len(a.Standing))
	for _, q := range a.Standing {
		standing = append(standing, fmt.Sprintf("%2s: %.1f", p.catalog.Abbreviate(q.Party), q.Quotient))
	}
	p.printf("        %s\n", strings.Join(standing, ", "))

	p.header(parties)
	p.printf("%20s", "MANDAT")
	for _, party := range parties {
		p.printf("|%7d ", a.Seats[party.Code])
	}
	p.printf("|\n")

	for _, block := range tally.StandardBlocks {
		b := tally.SumBlock(block, votes, a.Seats, p.catalog.PartyCode)
		p.printf("%-14s: %s (%d)\n", b.Name, strings.TrimSpace(percent(b.Share, 7)), b.Seats)
	}
}

func percent(share float64, width int) string {
	return fmt.Sprintf("%*.1f%%", width-1, share*100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
