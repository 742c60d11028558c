// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package api

import (
	"math/big"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/query"
	"github.com/alethea-net/oracle/registry"
	"github.com/alethea-net/oracle/voter"
	"github.com/alethea-net/oracle/voting"
)

type RegisterVoterRequest struct {
	Caller      alethea.Address `json:"caller"`
	Stake       *big.Int        `json:"stake"`
	Name        string          `json:"name"`
	MetadataURL string          `json:"metadataUrl"`
}

type RegisterVoterForRequest struct {
	Caller      alethea.Address `json:"caller"`
	Voter       string          `json:"voter"`
	Stake       *big.Int        `json:"stake"`
	Name        string          `json:"name"`
	MetadataURL string          `json:"metadataUrl"`
}

type StakeRequest struct {
	Caller alethea.Address `json:"caller"`
	Amount *big.Int        `json:"amount"`
}

type CallerRequest struct {
	Caller alethea.Address `json:"caller"`
}

type CreateQueryRequest struct {
	Caller         alethea.Address  `json:"caller"`
	Description    string           `json:"description"`
	Outcomes       []string         `json:"outcomes"`
	Strategy       string           `json:"strategy"`
	MinVotes       uint32           `json:"minVotes,omitempty"`
	RewardAmount   *big.Int         `json:"rewardAmount"`
	Deadline       uint64           `json:"deadline,omitempty"`
	Duration       uint64           `json:"duration,omitempty"`
	CallbackTarget *alethea.Address `json:"callbackTarget,omitempty"`
	CallbackData   []byte           `json:"callbackData,omitempty"`
}

type CommitVoteRequest struct {
	Caller     alethea.Address `json:"caller"`
	CommitHash string          `json:"commitHash"`
}

type RevealVoteRequest struct {
	Caller     alethea.Address `json:"caller"`
	Value      string          `json:"value"`
	Salt       string          `json:"salt"`
	Confidence *uint8          `json:"confidence,omitempty"`
}

type SubmitVoteRequest struct {
	Caller     alethea.Address `json:"caller"`
	Value      string          `json:"value"`
	Confidence *uint8          `json:"confidence,omitempty"`
}

type UpdateParametersRequest struct {
	Caller          alethea.Address `json:"caller"`
	MinStake        *big.Int        `json:"minStake"`
	MinVotesDefault uint32          `json:"minVotesDefault"`
	QueryDuration   uint64          `json:"queryDuration"`
	RewardBps       uint32          `json:"rewardBps"`
	SlashBps        uint32          `json:"slashBps"`
	ProtocolFeeBps  uint32          `json:"protocolFeeBps"`
}

type Voter struct {
	Address      alethea.Address `json:"address"`
	Stake        *big.Int        `json:"stake"`
	LockedStake  *big.Int        `json:"lockedStake"`
	Reputation   uint32          `json:"reputation"`
	Tier         string          `json:"tier"`
	TotalVotes   uint64          `json:"totalVotes"`
	CorrectVotes uint64          `json:"correctVotes"`
	RegisteredAt uint64          `json:"registeredAt"`
	Active       bool            `json:"active"`
	Name         string          `json:"name,omitempty"`
	MetadataURL  string          `json:"metadataUrl,omitempty"`
}

func convertVoter(v *voter.Voter) *Voter {
	return &Voter{
		Address:      v.Address,
		Stake:        v.Stake,
		LockedStake:  v.LockedStake,
		Reputation:   v.Reputation,
		Tier:         voter.TierOf(v.Reputation).String(),
		TotalVotes:   v.TotalVotes,
		CorrectVotes: v.CorrectVotes,
		RegisteredAt: v.RegisteredAt,
		Active:       v.Active,
		Name:         v.Name,
		MetadataURL:  v.MetadataURL,
	}
}

type Query struct {
	ID             uint64            `json:"id"`
	Description    string            `json:"description"`
	Outcomes       []string          `json:"outcomes"`
	Strategy       string            `json:"strategy"`
	MinVotes       uint32            `json:"minVotes"`
	MaxVoters      uint32            `json:"maxVoters"`
	RewardAmount   *big.Int          `json:"rewardAmount"`
	Creator        alethea.Address   `json:"creator"`
	CreatedAt      uint64            `json:"createdAt"`
	CommitPhaseEnd uint64            `json:"commitPhaseEnd"`
	RevealPhaseEnd uint64            `json:"revealPhaseEnd"`
	Deadline       uint64            `json:"deadline"`
	Phase          string            `json:"phase"`
	Status         string            `json:"status"`
	Result         string            `json:"result,omitempty"`
	ResolvedAt     uint64            `json:"resolvedAt,omitempty"`
	SelectedVoters []alethea.Address `json:"selectedVoters"`
}

func convertQuery(q *query.Query) *Query {
	return &Query{
		ID:             q.ID,
		Description:    q.Description,
		Outcomes:       q.Outcomes,
		Strategy:       q.Strategy.String(),
		MinVotes:       q.MinVotes,
		MaxVoters:      q.MaxVoters,
		RewardAmount:   q.RewardAmount,
		Creator:        q.Creator,
		CreatedAt:      q.CreatedAt,
		CommitPhaseEnd: q.CommitPhaseEnd,
		RevealPhaseEnd: q.RevealPhaseEnd,
		Deadline:       q.Deadline,
		Phase:          q.Phase.String(),
		Status:         q.Status.String(),
		Result:         q.Result,
		ResolvedAt:     q.ResolvedAt,
		SelectedVoters: q.SelectedVoters,
	}
}

type Vote struct {
	Voter      alethea.Address `json:"voter"`
	Value      string          `json:"value"`
	Timestamp  uint64          `json:"timestamp"`
	Confidence *uint8          `json:"confidence,omitempty"`
}

func convertVote(v *voting.Vote) *Vote {
	out := &Vote{
		Voter:     v.Voter,
		Value:     v.Value,
		Timestamp: v.Timestamp,
	}
	if v.HasConfidence {
		c := v.Confidence
		out.Confidence = &c
	}
	return out
}

type Parameters struct {
	MinStake        *big.Int `json:"minStake"`
	MinVotesDefault uint32   `json:"minVotesDefault"`
	QueryDuration   uint64   `json:"queryDuration"`
	RewardBps       uint32   `json:"rewardBps"`
	SlashBps        uint32   `json:"slashBps"`
	ProtocolFeeBps  uint32   `json:"protocolFeeBps"`
}

func convertParams(p *registry.ProtocolParameters) *Parameters {
	return &Parameters{
		MinStake:        p.MinStake,
		MinVotesDefault: p.MinVotesDefault,
		QueryDuration:   p.QueryDuration,
		RewardBps:       p.RewardBps,
		SlashBps:        p.SlashBps,
		ProtocolFeeBps:  p.ProtocolFeeBps,
	}
}
