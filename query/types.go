// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package query

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
)

// Status is the lifecycle state of a query.
type Status uint8

const (
	StatusActive Status = iota
	StatusResolved
	StatusExpired
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusResolved:
		return "resolved"
	case StatusExpired:
		return "expired"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Phase is the voting phase of an active query.
type Phase uint8

const (
	PhaseCommit Phase = iota
	PhaseReveal
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseCommit:
		return "commit"
	case PhaseReveal:
		return "reveal"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Strategy selects how revealed votes aggregate into a result.
type Strategy uint8

const (
	StrategyMajority Strategy = iota
	StrategyMedian
	StrategyWeightedByStake
	StrategyWeightedByReputation
)

func (s Strategy) String() string {
	switch s {
	case StrategyMajority:
		return "majority"
	case StrategyMedian:
		return "median"
	case StrategyWeightedByStake:
		return "weighted-by-stake"
	case StrategyWeightedByReputation:
		return "weighted-by-reputation"
	default:
		return "unknown"
	}
}

// ParseStrategy parses the string form produced by Strategy.String. An empty
// string selects the majority default.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "majority":
		return StrategyMajority, nil
	case "median":
		return StrategyMedian, nil
	case "weighted-by-stake":
		return StrategyWeightedByStake, nil
	case "weighted-by-reputation":
		return StrategyWeightedByReputation, nil
	default:
		return 0, errors.Errorf("unknown strategy %q", s)
	}
}

// Query is a persisted resolution request. Commits and votes are stored in
// their own tables keyed by (query id, voter), not embedded here.
type Query struct {
	ID             uint64
	Description    string
	Outcomes       []string
	Strategy       Strategy
	MinVotes       uint32
	MaxVoters      uint32
	RewardAmount   *big.Int
	Creator        alethea.Address
	CreatedAt      uint64
	CommitPhaseEnd uint64
	RevealPhaseEnd uint64
	Deadline       uint64
	Phase          Phase
	Status         Status
	Result         string
	ResolvedAt     uint64
	SelectedVoters []alethea.Address
	HasCallback    bool
	CallbackTarget alethea.Address
	CallbackData   []byte
}

// IsSelected reports whether addr belongs to the voter panel of the query.
func (q *Query) IsSelected(addr alethea.Address) bool {
	for _, v := range q.SelectedVoters {
		if v == addr {
			return true
		}
	}
	return false
}

// IsValidOutcome reports whether value is one of the declared outcomes.
func (q *Query) IsValidOutcome(value string) bool {
	for _, o := range q.Outcomes {
		if o == value {
			return true
		}
	}
	return false
}

// DeadlinePassed reports whether the final deadline has passed at now.
func (q *Query) DeadlinePassed(now uint64) bool {
	return now >= q.Deadline
}

// AdvancePhase lazily moves the phase forward based on the supplied time and
// reports whether anything changed. Phases never move backwards.
func (q *Query) AdvancePhase(now uint64) bool {
	changed := false
	if q.Phase == PhaseCommit && now > q.CommitPhaseEnd {
		q.Phase = PhaseReveal
		changed = true
	}
	if q.Phase == PhaseReveal && now > q.RevealPhaseEnd {
		q.Phase = PhaseCompleted
		changed = true
	}
	return changed
}
