// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally turns district vote distributions into national results.

# Aggregation

Aggregate sums party votes, invalid votes and eligible voters over the
districts that have reported. GroupBy does the same per region key.

# Apportionment

Apportion distributes the 349 Riksdag seats with the modified Sainte-Laguë
method. Only parties with more than 4% of the valid votes take part. The
first divisor is 1.2, then 2n+1 for a party holding n seats. Equal
quotients go to the lower party code.

Besides the seats, the result keeps the last eight rounds with their
runner-up and the quotient of every party after the final round.

# Adjustments

Adjust adds fixed per-party deltas, such as the 2018 votes counted on the
Wednesday after election day, to an aggregation.

# Blocks

SumBlock totals votes and seats for a named group of parties.
*/
package tally
