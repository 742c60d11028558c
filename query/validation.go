// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package query

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/resolution"
)

var (
	ErrNotFound  = errors.New("query not found")
	ErrNotActive = errors.New("query is not active")
)

// ValidateParams checks the user-supplied creation parameters. A zero
// deadline means no explicit deadline was provided. rewardRequired is false
// for market-driven queries which carry no reward.
func ValidateParams(description string, outcomes []string, reward *big.Int, rewardRequired bool, deadline, now uint64) error {
	if description == "" {
		return errors.New("description cannot be empty")
	}
	if len(description) > alethea.MaxDescriptionLength {
		return errors.Errorf("description too long (max %d characters)", alethea.MaxDescriptionLength)
	}

	if len(outcomes) == 0 {
		return errors.New("at least one outcome must be provided")
	}
	if len(outcomes) > alethea.MaxOutcomes {
		return errors.Errorf("too many outcomes (max %d)", alethea.MaxOutcomes)
	}
	seen := make(map[string]struct{}, len(outcomes))
	for _, o := range outcomes {
		if o == "" {
			return errors.New("outcome cannot be empty")
		}
		if len(o) > alethea.MaxOutcomeLength {
			return errors.Errorf("outcome too long (max %d characters)", alethea.MaxOutcomeLength)
		}
		if _, ok := seen[o]; ok {
			return errors.Errorf("duplicate outcome: %s", o)
		}
		seen[o] = struct{}{}
	}

	if rewardRequired && (reward == nil || reward.Sign() <= 0) {
		return errors.New("reward amount must be greater than zero")
	}

	if deadline != 0 {
		if deadline <= now {
			return errors.New("deadline must be in the future")
		}
		if deadline > now+alethea.MaxQueryDuration {
			return errors.New("deadline too far in the future (max 1 year)")
		}
	}
	return nil
}

// ValidateMinVotes bounds the minimum vote requirement against the number of
// registered voters.
func ValidateMinVotes(minVotes uint32, voterCount uint64) error {
	if minVotes == 0 {
		return errors.New("minimum votes must be at least 1")
	}
	if uint64(minVotes) > voterCount {
		return errors.Errorf("minimum votes (%d) exceeds total registered voters (%d)", minVotes, voterCount)
	}
	if voterCount > 10 && uint64(minVotes) > voterCount/2 {
		return errors.Errorf("minimum votes (%d) is more than 50%% of registered voters (%d)", minVotes, voterCount)
	}
	return nil
}

// ValidateStrategy rejects strategy/outcome combinations that cannot
// resolve. Median requires every outcome to parse as a number.
func ValidateStrategy(strategy Strategy, outcomes []string) error {
	if strategy != StrategyMedian {
		return nil
	}
	for _, o := range outcomes {
		if _, ok := resolution.ParseNumeric(o); !ok {
			return errors.Errorf("median strategy requires numeric outcomes, but %q is not numeric", o)
		}
	}
	return nil
}
