// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

// Package settlement computes the payouts and penalties of a resolved query.
//
// All arithmetic is integer arithmetic over basis points and reputation
// millis, so every node settling the same query arrives at the same amounts.
package settlement

import (
	"math/big"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/voter"
)

// Payout is one voter's share of a query reward.
type Payout struct {
	Voter  alethea.Address
	Amount *big.Int
}

// Claimant describes a correct voter entering reward distribution.
type Claimant struct {
	Voter      alethea.Address
	Stake      *big.Int
	Reputation uint32
}

// BpsShare computes amount*bps/10000.
func BpsShare(amount *big.Int, bps uint32) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return share.Div(share, big.NewInt(alethea.FullBasisPoints))
}

// SlashAmount computes the penalty for an incorrect voter, capped at the
// voter's stake.
func SlashAmount(stake *big.Int, slashBps uint32) *big.Int {
	amount := BpsShare(stake, slashBps)
	if amount.Cmp(stake) > 0 {
		return new(big.Int).Set(stake)
	}
	return amount
}

// ProtocolFee computes the fee retained by the treasury from a reward.
func ProtocolFee(reward *big.Int, feeBps uint32) *big.Int {
	return BpsShare(reward, feeBps)
}

// Equal splits the reward evenly among the claimants, then scales each share
// by the claimant's reputation multiplier and deducts the protocol fee.
func Equal(reward *big.Int, claimants []Claimant, feeBps uint32) []Payout {
	if len(claimants) == 0 {
		return nil
	}
	base := new(big.Int).Div(reward, big.NewInt(int64(len(claimants))))

	payouts := make([]Payout, 0, len(claimants))
	for _, c := range claimants {
		amount := applyMultiplier(base, c.Reputation)
		amount = deductFee(amount, feeBps)
		payouts = append(payouts, Payout{Voter: c.Voter, Amount: amount})
	}
	return payouts
}

// StakeWeighted splits the reward in proportion to each claimant's stake,
// then scales by the reputation multiplier and deducts the protocol fee.
func StakeWeighted(reward *big.Int, claimants []Claimant, feeBps uint32) []Payout {
	totalStake := new(big.Int)
	for _, c := range claimants {
		totalStake.Add(totalStake, c.Stake)
	}
	if totalStake.Sign() == 0 {
		return Equal(reward, claimants, feeBps)
	}

	payouts := make([]Payout, 0, len(claimants))
	for _, c := range claimants {
		base := new(big.Int).Mul(reward, c.Stake)
		base.Div(base, totalStake)
		amount := applyMultiplier(base, c.Reputation)
		amount = deductFee(amount, feeBps)
		payouts = append(payouts, Payout{Voter: c.Voter, Amount: amount})
	}
	return payouts
}

// ReputationWeighted splits the reward in proportion to each claimant's
// reputation weight and deducts the protocol fee. The weight already encodes
// reputation, so no extra multiplier applies.
func ReputationWeighted(reward *big.Int, claimants []Claimant, feeBps uint32) []Payout {
	totalWeight := new(big.Int)
	for _, c := range claimants {
		totalWeight.Add(totalWeight, new(big.Int).SetUint64(voter.WeightMillis(c.Reputation)))
	}
	if totalWeight.Sign() == 0 {
		return Equal(reward, claimants, feeBps)
	}

	payouts := make([]Payout, 0, len(claimants))
	for _, c := range claimants {
		base := new(big.Int).Mul(reward, new(big.Int).SetUint64(voter.WeightMillis(c.Reputation)))
		base.Div(base, totalWeight)
		amount := deductFee(base, feeBps)
		payouts = append(payouts, Payout{Voter: c.Voter, Amount: amount})
	}
	return payouts
}

// CapToBudget scales payouts down pro rata when their sum exceeds the
// budget, so a query never distributes more than its reward escrow.
func CapToBudget(payouts []Payout, budget *big.Int) []Payout {
	total := Total(payouts)
	if total.Sign() == 0 || total.Cmp(budget) <= 0 {
		return payouts
	}
	for _, p := range payouts {
		p.Amount.Mul(p.Amount, budget)
		p.Amount.Div(p.Amount, total)
	}
	return payouts
}

// Total sums the payout amounts.
func Total(payouts []Payout) *big.Int {
	total := new(big.Int)
	for _, p := range payouts {
		total.Add(total, p.Amount)
	}
	return total
}

func applyMultiplier(base *big.Int, reputation uint32) *big.Int {
	amount := new(big.Int).Mul(base, new(big.Int).SetUint64(voter.RewardMultiplierMillis(reputation)))
	return amount.Div(amount, big.NewInt(1000))
}

func deductFee(amount *big.Int, feeBps uint32) *big.Int {
	keep := new(big.Int).Mul(amount, big.NewInt(alethea.FullBasisPoints-int64(feeBps)))
	return keep.Div(keep, big.NewInt(alethea.FullBasisPoints))
}
