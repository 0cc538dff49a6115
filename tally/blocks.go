// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import "github.com/danielhkuo/tallywatch/models"

// Block is a named group of parties, listed by abbreviation.
type Block struct {
	Name          string
	Abbreviations []string
}

// StandardBlocks are the groupings printed under the seat table.
var StandardBlocks = []Block{
	{Name: "Vänstern", Abbreviations: []string{"S", "C", "V", "MP"}},
	{Name: "Högern", Abbreviations: []string{"M", "L", "KD", "SD"}},
	{Name: "Alliansen", Abbreviations: []string{"M", "L", "KD", "C"}},
	{Name: "Far right", Abbreviations: []string{"M", "KD", "SD"}},
	{Name: "Gamla vänstern", Abbreviations: []string{"S", "V", "MP"}},
}

// BlockResult is a block's combined share of valid votes and seats.
type BlockResult struct {
	Name  string
	Votes int
	Share float64
	Seats int
}

// SumBlock combines the votes and seats of a block's parties. codeOf maps an
// abbreviation to a party code and reports false for unknown parties, which
// are left out.
func SumBlock(b Block, result models.AggregationResult, seats map[string]int, codeOf func(string) (string, bool)) BlockResult {
	out := BlockResult{Name: b.Name}
	for _, abbr := range b.Abbreviations {
		code, ok := codeOf(abbr)
		if !ok {
			continue
		}
		out.Votes += result.PartyVotes[code]
		out.Seats += seats[code]
	}
	out.Share = Share(out.Votes, result.ValidVotes)
	return out
}
