// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"sort"

	"github.com/danielhkuo/tallywatch/models"
)

// Aggregate sums the vote distributions of districts. Districts that have not
// reported still count toward TotalDistricts; eligible voters are summed only
// where a distribution exists. Filtering by election type and counting
// occasion is the caller's job.
func Aggregate(districts []models.District) models.AggregationResult {
	result := models.AggregationResult{
		PartyVotes:     make(map[string]int),
		TotalDistricts: len(districts),
	}

	for _, d := range districts {
		if d.Reported() {
			result.CountedDistricts++
		}
		if d.Distribution == nil {
			continue
		}

		for _, p := range d.Distribution.Parties {
			result.PartyVotes[p.Code] += p.Votes
			result.ValidVotes += p.Votes
		}
		result.InvalidVotes += d.Distribution.Invalid.Total
		if d.EligibleVoters != nil {
			result.EligibleVoters += *d.EligibleVoters
		}
	}

	return result
}

// Group is the aggregation of the districts sharing one key.
type Group struct {
	Key    string
	Result models.AggregationResult
}

// GroupBy partitions districts by key and aggregates each part. Groups are
// returned in ascending key order.
func GroupBy(districts []models.District, key func(models.District) string) []Group {
	parts := make(map[string][]models.District)
	for _, d := range districts {
		k := key(d)
		parts[k] = append(parts[k], d)
	}

	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, Group{Key: k, Result: Aggregate(parts[k])})
	}
	return groups
}

// Share returns votes as a fraction of total, or 0 when total is not positive.
func Share(votes, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(votes) / float64(total)
}

// Turnout is total votes over eligible voters of the counted districts.
func Turnout(r models.AggregationResult) float64 {
	return Share(r.TotalVotes(), r.EligibleVoters)
}

// TopParties returns up to n party codes ordered by descending votes, ties by
// ascending code.
func TopParties(r models.AggregationResult, n int) []string {
	codes := make([]string, 0, len(r.PartyVotes))
	for code := range r.PartyVotes {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, b := r.PartyVotes[codes[i]], r.PartyVotes[codes[j]]
		if a != b {
			return a > b
		}
		return codes[i] < codes[j]
	})
	if n >= 0 && len(codes) > n {
		codes = codes[:n]
	}
	return codes
}
