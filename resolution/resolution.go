// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

// Package resolution turns a set of revealed votes into a single result.
// Everything here is pure and deterministic: tallies iterate the query's
// outcome declaration order, ties resolve to the lowest outcome index, and
// no floating point is involved anywhere.
package resolution

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/voter"
)

var (
	ErrNoVotes        = errors.New("no votes to resolve")
	ErrNoNumericVotes = errors.New("no numeric votes to resolve")
)

// Ballot is one revealed vote together with the voter's ledger values at
// resolution time.
type Ballot struct {
	Voter      alethea.Address
	Value      string
	Stake      *big.Int
	Reputation uint32
}

// Majority picks the outcome with the most votes. The outcome list must be
// the query's declared outcomes in their original order, ties resolve to the
// earliest declared outcome.
func Majority(outcomes []string, ballots []Ballot) (string, error) {
	if len(ballots) == 0 {
		return "", ErrNoVotes
	}
	counts := make(map[string]uint64, len(outcomes))
	for _, b := range ballots {
		counts[b.Value]++
	}

	winner := ""
	var best uint64
	for _, o := range outcomes {
		if c := counts[o]; c > best {
			best = c
			winner = o
		}
	}
	if winner == "" {
		return "", ErrNoVotes
	}
	return winner, nil
}

// WeightedByStake picks the outcome backed by the largest summed stake.
func WeightedByStake(outcomes []string, ballots []Ballot) (string, error) {
	if len(ballots) == 0 {
		return "", ErrNoVotes
	}
	weights := make(map[string]*big.Int, len(outcomes))
	for _, b := range ballots {
		w, ok := weights[b.Value]
		if !ok {
			w = new(big.Int)
			weights[b.Value] = w
		}
		w.Add(w, b.Stake)
	}

	winner := ""
	var best *big.Int
	for _, o := range outcomes {
		w, ok := weights[o]
		if !ok {
			continue
		}
		if best == nil || w.Cmp(best) > 0 {
			best = w
			winner = o
		}
	}
	if winner == "" {
		return "", ErrNoVotes
	}
	return winner, nil
}

// WeightedByReputation picks the outcome backed by the largest summed
// reputation weight.
func WeightedByReputation(outcomes []string, ballots []Ballot) (string, error) {
	if len(ballots) == 0 {
		return "", ErrNoVotes
	}
	weights := make(map[string]uint64, len(outcomes))
	for _, b := range ballots {
		weights[b.Value] += voter.WeightMillis(b.Reputation)
	}

	winner := ""
	var best uint64
	for _, o := range outcomes {
		if w := weights[o]; w > best {
			best = w
			winner = o
		}
	}
	if winner == "" {
		return "", ErrNoVotes
	}
	return winner, nil
}

// Median resolves to the median of the numeric vote values, the exact
// average of the middle pair when the count is even. Non-numeric values are
// ignored.
func Median(ballots []Ballot) (string, error) {
	var values []*big.Rat
	for _, b := range ballots {
		if v, ok := ParseNumeric(b.Value); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return "", ErrNoNumericVotes
	}

	sortRats(values)

	mid := len(values) / 2
	var m *big.Rat
	if len(values)%2 == 0 {
		m = new(big.Rat).Add(values[mid-1], values[mid])
		m.Quo(m, big.NewRat(2, 1))
	} else {
		m = values[mid]
	}
	return FormatRat(m), nil
}

func sortRats(values []*big.Rat) {
	// insertion sort keeps equal elements stable, input sizes are small
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j].Cmp(values[j-1]) < 0; j-- {
			values[j], values[j-1] = values[j-1], values[j]
		}
	}
}
