// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package voter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		correct  uint64
		total    uint64
		expected uint32
	}{
		{"new voter", 0, 0, 50},
		{"all correct, low participation", 5, 5, 100},
		{"half correct", 5, 10, 51},
		{"all wrong", 0, 10, 1},
		{"full participation bonus", 80, 100, 90},
		{"bonus saturates past 100 votes", 160, 200, 90},
		{"capped at 100", 100, 100, 100},
		{"one of three", 1, 3, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Score(tt.correct, tt.total))
		})
	}
}

func TestScoreWithDecay(t *testing.T) {
	const day = uint64(86400)

	// fresh voter, no decay
	assert.Equal(t, uint32(100), ScoreWithDecay(5, 5, 0, 10*day))
	// inactive for over 30 days with few votes
	assert.Equal(t, uint32(90), ScoreWithDecay(5, 5, 0, 31*day))
	// long registered but enough votes
	assert.Equal(t, uint32(52), ScoreWithDecay(10, 20, 0, 31*day))
	// clock before registration
	assert.Equal(t, uint32(100), ScoreWithDecay(5, 5, 100*day, 0))
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, TierNovice, TierOf(0))
	assert.Equal(t, TierNovice, TierOf(40))
	assert.Equal(t, TierIntermediate, TierOf(41))
	assert.Equal(t, TierIntermediate, TierOf(70))
	assert.Equal(t, TierExpert, TierOf(71))
	assert.Equal(t, TierExpert, TierOf(90))
	assert.Equal(t, TierMaster, TierOf(91))
	assert.Equal(t, TierMaster, TierOf(100))
}

func TestWeightMillis(t *testing.T) {
	assert.Equal(t, uint64(500), WeightMillis(0))
	assert.Equal(t, uint64(1250), WeightMillis(50))
	assert.Equal(t, uint64(2000), WeightMillis(100))
	assert.Equal(t, uint64(2000), WeightMillis(200))
}

func TestRewardMultiplierMillis(t *testing.T) {
	assert.Equal(t, uint64(800), RewardMultiplierMillis(0))
	assert.Equal(t, uint64(1000), RewardMultiplierMillis(50))
	assert.Equal(t, uint64(1200), RewardMultiplierMillis(100))
	assert.Equal(t, uint64(1200), RewardMultiplierMillis(255))
}
