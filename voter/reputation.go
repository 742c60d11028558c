// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package voter

import "github.com/alethea-net/oracle/alethea"

// Tier classifies a reputation score into a coarse band.
type Tier uint8

const (
	TierNovice Tier = iota
	TierIntermediate
	TierExpert
	TierMaster
)

func (t Tier) String() string {
	switch t {
	case TierNovice:
		return "Novice"
	case TierIntermediate:
		return "Intermediate"
	case TierExpert:
		return "Expert"
	case TierMaster:
		return "Master"
	default:
		return "Unknown"
	}
}

// TierOf maps a reputation score to its tier.
func TierOf(reputation uint32) Tier {
	switch {
	case reputation <= 40:
		return TierNovice
	case reputation <= 70:
		return TierIntermediate
	case reputation <= 90:
		return TierExpert
	default:
		return TierMaster
	}
}

// Score derives the reputation score from the vote counters.
//
// The score is the accuracy percentage plus a participation bonus of up to
// 10 points, reached at 100 lifetime votes, capped at 100. All arithmetic is
// integer fixed-point in thousandths so every node computes the same score.
func Score(correctVotes, totalVotes uint64) uint32 {
	if totalVotes == 0 {
		return alethea.DefaultReputation
	}

	// accuracy and bonus in milli-points
	accuracyMillis := correctVotes * 100_000 / totalVotes
	bonusVotes := min(totalVotes, 100)
	bonusMillis := bonusVotes * 100

	millis := accuracyMillis + bonusMillis
	if millis > alethea.MaxReputation*1000 {
		millis = alethea.MaxReputation * 1000
	}
	return uint32(millis / 1000)
}

// ScoreWithDecay applies the inactivity decay on top of Score. A voter
// registered for more than 30 days with fewer than 10 lifetime votes loses
// 10% of the score.
func ScoreWithDecay(correctVotes, totalVotes, registeredAt, now uint64) uint32 {
	score := Score(correctVotes, totalVotes)

	if now <= registeredAt {
		return score
	}
	days := (now - registeredAt) / 86400
	if days > 30 && totalVotes < 10 {
		return score * 9 / 10
	}
	return score
}

// WeightMillis maps reputation to the vote weight used by weighted
// strategies, in thousandths. The range is [500, 2000], i.e. 0.5x to 2.0x.
func WeightMillis(reputation uint32) uint64 {
	if reputation > alethea.MaxReputation {
		reputation = alethea.MaxReputation
	}
	return 500 + uint64(reputation)*15
}

// RewardMultiplierMillis maps reputation to the reward multiplier applied to
// a voter's base reward share, in thousandths. The range is [800, 1200],
// i.e. up to a 20% penalty or bonus.
func RewardMultiplierMillis(reputation uint32) uint64 {
	if reputation > alethea.MaxReputation {
		reputation = alethea.MaxReputation
	}
	return 800 + uint64(reputation)*4
}
