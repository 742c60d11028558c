// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package alethea

// Constants of the oracle protocol.
const (
	InitialMinStake         = 100  // token units required to register as a voter
	InitialMinVotesDefault  = 3    // default quorum for query resolution
	InitialQueryDuration    = 3600 // seconds, split evenly between commit and reveal
	InitialRewardPercentage = 1000 // bps, 10%
	InitialSlashPercentage  = 500  // bps, 5%
	InitialProtocolFee      = 100  // bps, 1%

	FullBasisPoints = 10000
	MaxSlashBps     = 5000 // 50%
	MaxProtocolFee  = 1000 // 10%

	MinQueryDuration = 60       // seconds
	MaxQueryDuration = 31536000 // seconds, 1 year

	MaxOutcomes          = 100
	MaxOutcomeLength     = 200
	MaxDescriptionLength = 1000
	MaxNameLength        = 100
	MaxMetadataURLLength = 500
	MaxCommitHashLength  = 128
	MaxMinVotes          = 1000

	DefaultReputation = 50 // fresh voters start in the middle of the scale
	MaxReputation     = 100

	// MarketPhaseDuration is the fixed commit (and reveal) window for queries
	// requested by an external market collaborator.
	MarketPhaseDuration = 3600 // seconds
)
