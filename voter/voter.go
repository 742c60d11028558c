// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package voter

import (
	"math/big"

	"github.com/alethea-net/oracle/alethea"
)

// Voter holds the ledger entry of a registered voter. Stake amounts are in
// base token units and never negative. LockedStake is always <= Stake.
type Voter struct {
	Address      alethea.Address
	Stake        *big.Int
	LockedStake  *big.Int
	Reputation   uint32
	TotalVotes   uint64
	CorrectVotes uint64
	RegisteredAt uint64
	Active       bool
	Name         string
	MetadataURL  string
}

// Available returns the stake not locked by in-flight votes.
func (v *Voter) Available() *big.Int {
	avail := new(big.Int).Sub(v.Stake, v.LockedStake)
	if avail.Sign() < 0 {
		return new(big.Int)
	}
	return avail
}

// Power is the selection weight of the voter, stake multiplied by reputation.
func (v *Voter) Power() *big.Int {
	return new(big.Int).Mul(v.Stake, new(big.Int).SetUint64(uint64(v.Reputation)))
}

// AccuracyBps returns the historical accuracy in basis points.
func (v *Voter) AccuracyBps() uint64 {
	if v.TotalVotes == 0 {
		return 0
	}
	return v.CorrectVotes * uint64(alethea.FullBasisPoints) / v.TotalVotes
}
