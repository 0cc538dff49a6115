// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"errors"
	"sort"

	"github.com/danielhkuo/tallywatch/models"
)

var ErrNoEligibleParties = errors.New("no eligible parties")

const (
	// Seats is the size of the chamber.
	Seats = 349
	// Threshold is the share of valid votes a party must exceed to take part.
	Threshold = 0.04
	// ClosingRounds is how many of the last rounds are kept for display.
	ClosingRounds = 8
	// FirstDivisor replaces 1 for parties without seats.
	FirstDivisor = 1.2
)

// Divisor returns the divisor for a party that already holds seats seats.
func Divisor(seats int) float64 {
	if seats == 0 {
		return FirstDivisor
	}
	return float64(2*seats + 1)
}

// Apportion distributes the full chamber.
func Apportion(votes map[string]int, validVotes int) (models.Apportionment, error) {
	return ApportionSeats(votes, validVotes, Seats)
}

// ApportionSeats distributes n seats by the modified Sainte-Laguë method among
// the parties whose share of validVotes exceeds Threshold. Each round gives a
// seat to the strictly largest quotient; equal quotients go to the party with
// the lower code.
func ApportionSeats(votes map[string]int, validVotes, n int) (models.Apportionment, error) {
	if validVotes <= 0 {
		return models.Apportionment{}, ErrNoEligibleParties
	}

	eligible := make([]string, 0, len(votes))
	for code, v := range votes {
		if float64(v)/float64(validVotes) > Threshold {
			eligible = append(eligible, code)
		}
	}
	if len(eligible) == 0 {
		return models.Apportionment{}, ErrNoEligibleParties
	}
	sort.Strings(eligible)

	seats := make(map[string]int, len(eligible))
	for _, code := range eligible {
		seats[code] = 0
	}

	quotient := func(code string) float64 {
		return float64(votes[code]) / Divisor(seats[code])
	}

	result := models.Apportionment{Seats: seats}
	for round := 1; round <= n; round++ {
		winner, runnerUp := leaders(eligible, quotient)

		r := models.Round{Number: round, Winner: winner, RunnerUp: runnerUp}
		result.FinalRound = r
		if round > n-ClosingRounds {
			result.Closing = append(result.Closing, r)
		}

		seats[winner.Party]++
	}

	result.Standing = make([]models.PartyQuotient, 0, len(eligible))
	for _, code := range eligible {
		result.Standing = append(result.Standing, models.PartyQuotient{Party: code, Quotient: quotient(code)})
	}
	sort.SliceStable(result.Standing, func(i, j int) bool {
		return result.Standing[i].Quotient > result.Standing[j].Quotient
	})

	return result, nil
}

// leaders returns the largest and second largest quotient. codes must be
// sorted; the earlier code keeps its place on a tie.
func leaders(codes []string, quotient func(string) float64) (models.PartyQuotient, *models.PartyQuotient) {
	var first models.PartyQuotient
	var second *models.PartyQuotient

	for i, code := range codes {
		q := models.PartyQuotient{Party: code, Quotient: quotient(code)}
		switch {
		case i == 0:
			first = q
		case q.Quotient > first.Quotient:
			prev := first
			second = &prev
			first = q
		case second == nil || q.Quotient > second.Quotient:
			second = &q
		}
	}
	return first, second
}
