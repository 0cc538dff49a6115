// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import "github.com/danielhkuo/tallywatch/models"

// Adjustment is a named table of per-party vote deltas.
type Adjustment struct {
	Name   string
	Deltas map[string]int
}

// WednesdayVotes2018 approximates the votes counted on the Wednesday after
// election day in 2018, a counting step that no longer exists.
var WednesdayVotes2018 = Adjustment{
	Name: "wednesday-2018",
	Deltas: map[string]int{
		"0002": 47544,
		"0004": 18407,
		"0055": 13655,
		"0005": 20403,
		"0001": 43088,
		"0003": 11862,
		"0068": 10294,
		"0110": 30147,
	},
}

// Total is the sum of all deltas.
func (a Adjustment) Total() int {
	total := 0
	for _, delta := range a.Deltas {
		total += delta
	}
	return total
}

// Adjust adds the table's deltas to the parties already present in result and
// the sum of every delta to the valid votes. Invalid votes, eligible voters
// and district counts are left alone.
func Adjust(result models.AggregationResult, table Adjustment) models.AggregationResult {
	adjusted := result
	adjusted.PartyVotes = make(map[string]int, len(result.PartyVotes))
	for code, votes := range result.PartyVotes {
		adjusted.PartyVotes[code] = votes + table.Deltas[code]
	}
	adjusted.ValidVotes = result.ValidVotes + table.Total()
	return adjusted
}
