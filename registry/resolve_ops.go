// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package registry

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/query"
	"github.com/alethea-net/oracle/resolution"
	"github.com/alethea-net/oracle/settlement"
	"github.com/alethea-net/oracle/voting"
)

// ResolveQuery settles a query past its deadline. A query short of its vote
// requirement is expired instead.
func (r *Registry) ResolveQuery(queryID uint64, now uint64) (*query.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	return r.resolve(queryID, now)
}

// ExpireQuery forces expiration of a query past its deadline. Admin only.
func (r *Registry) ExpireQuery(caller alethea.Address, queryID uint64, now uint64) (*query.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	q, err := r.queries.Get(queryID)
	if err != nil {
		return nil, err
	}
	if q.Status != query.StatusActive {
		return nil, errors.Wrapf(query.ErrNotActive, "query %d is %v", queryID, q.Status)
	}
	if !q.DeadlinePassed(now) {
		return nil, ErrDeadlineNotDue
	}
	if err := r.expire(q, now); err != nil {
		return nil, err
	}
	return q, nil
}

// CancelQuery terminates a query and releases its participants. Admin only.
func (r *Registry) CancelQuery(caller alethea.Address, queryID uint64, now uint64) (*query.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	q, err := r.queries.Get(queryID)
	if err != nil {
		return nil, err
	}
	if q.Status != query.StatusActive {
		return nil, errors.Wrapf(query.ErrNotActive, "query %d is %v", queryID, q.Status)
	}
	if err := r.unlockParticipants(q.ID); err != nil {
		return nil, err
	}
	if err := r.refundReward(q); err != nil {
		return nil, err
	}
	if err := r.queries.MarkCancelled(q, now); err != nil {
		return nil, err
	}
	metricQueriesResolved().AddWithLabel(1, map[string]string{"outcome": "cancelled"})
	logger.Info("query cancelled", "id", q.ID, "by", caller)
	return q, nil
}

// CheckExpiredQueries sweeps the active set and expires every query past its
// deadline that missed the vote requirement. Failures are logged per item and
// never abort the sweep.
func (r *Registry) CheckExpiredQueries(now uint64) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	ids, err := r.queries.ActiveIDs()
	if err != nil {
		return nil, err
	}
	var expired []uint64
	for _, id := range ids {
		q, err := r.queries.Get(id)
		if err != nil {
			logger.Warn("expiry sweep failed to load query", "id", id, "err", err)
			continue
		}
		if q.Status != query.StatusActive || !q.DeadlinePassed(now) {
			continue
		}
		n, err := r.ballots.VoteCount(id)
		if err != nil {
			logger.Warn("expiry sweep failed to count votes", "id", id, "err", err)
			continue
		}
		if n >= q.MinVotes {
			continue
		}
		if err := r.expire(q, now); err != nil {
			logger.Warn("expiry sweep failed to expire query", "id", id, "err", err)
			continue
		}
		expired = append(expired, id)
	}
	return expired, nil
}

// AutoResolveQueries sweeps the active set and settles every query whose
// reveal window and deadline have both passed, expiring those short of votes.
// Failures are logged per item and never abort the sweep.
func (r *Registry) AutoResolveQueries(now uint64) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	ids, err := r.queries.ActiveIDs()
	if err != nil {
		return nil, err
	}
	var settled []uint64
	for _, id := range ids {
		q, err := r.queries.Get(id)
		if err != nil {
			logger.Warn("resolve sweep failed to load query", "id", id, "err", err)
			continue
		}
		if q.Status != query.StatusActive || now <= q.RevealPhaseEnd || !q.DeadlinePassed(now) {
			continue
		}
		if _, err := r.resolve(id, now); err != nil {
			logger.Warn("resolve sweep failed to settle query", "id", id, "err", err)
			continue
		}
		settled = append(settled, id)
	}
	return settled, nil
}

// HandleCreateQueryFromMarket processes an inbound query request from an
// external market collaborator. Failures drop the message with a log entry.
func (r *Registry) HandleCreateQueryFromMarket(marketID uint64, question string, outcomes []string, deadline uint64, callbackTarget alethea.Address, callbackData []byte, now uint64) (*query.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		logger.Warn("dropping market query request", "market", marketID, "err", err)
		return nil, err
	}
	params, err := r.state.getParams()
	if err != nil {
		return nil, err
	}
	count, err := r.voters.Count()
	if err != nil {
		return nil, err
	}
	q, err := r.queries.CreateFromMarket(marketID, question, outcomes, deadline,
		callbackTarget, callbackData, now, params.MinVotesDefault, count)
	if err != nil {
		logger.Warn("dropping market query request", "market", marketID, "err", err)
		return nil, err
	}
	metricQueriesCreated().Add(1)
	return q, nil
}

// HandleStakeDeposited processes an inbound token-ledger credit. Deposits
// for unknown voters are dropped with a log entry.
func (r *Registry) HandleStakeDeposited(addr alethea.Address, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		logger.Warn("dropping stake deposit", "addr", addr, "err", err)
		return
	}
	if _, err := r.voters.AddStake(addr, amount); err != nil {
		logger.Warn("dropping stake deposit", "addr", addr, "amount", amount, "err", err)
	}
}

func (r *Registry) resolve(id uint64, now uint64) (*query.Query, error) {
	q, err := r.queries.Get(id)
	if err != nil {
		return nil, err
	}
	if q.Status != query.StatusActive {
		return nil, errors.Wrapf(query.ErrNotActive, "query %d is %v", id, q.Status)
	}
	if !q.DeadlinePassed(now) {
		return nil, ErrDeadlineNotDue
	}

	votes, err := r.ballots.Votes(id)
	if err != nil {
		return nil, err
	}
	if uint32(len(votes)) < q.MinVotes {
		if err := r.expire(q, now); err != nil {
			return nil, err
		}
		return q, nil
	}

	params, err := r.state.getParams()
	if err != nil {
		return nil, err
	}
	result, err := r.tally(q, votes)
	if err != nil {
		return nil, err
	}
	if err := r.unlockParticipants(q.ID); err != nil {
		return nil, err
	}
	if err := r.queries.MarkResolved(q, result, now); err != nil {
		return nil, err
	}

	var correct, incorrect []alethea.Address
	for _, v := range votes {
		win := v.Value == result
		if err := r.voters.RecordOutcome(v.Voter, win); err != nil {
			return nil, err
		}
		if win {
			correct = append(correct, v.Voter)
		} else {
			incorrect = append(incorrect, v.Voter)
		}
	}

	if err := r.distribute(q, correct, params); err != nil {
		return nil, err
	}
	if err := r.slash(incorrect, params); err != nil {
		return nil, err
	}

	if q.HasCallback {
		cb := &ResolutionCallback{
			QueryID:    q.ID,
			Target:     q.CallbackTarget,
			Outcome:    result,
			ResolvedAt: now,
			Data:       q.CallbackData,
		}
		if err := r.outbox.SendResolution(cb); err != nil {
			return nil, errors.WithMessage(err, "failed to queue resolution callback")
		}
	}
	metricQueriesResolved().AddWithLabel(1, map[string]string{"outcome": "resolved"})
	logger.Info("query resolved", "id", q.ID, "result", result,
		"votes", len(votes), "correct", len(correct))
	return q, nil
}

// tally aggregates the votes under the query's strategy.
func (r *Registry) tally(q *query.Query, votes []*voting.Vote) (string, error) {
	ballots := make([]resolution.Ballot, 0, len(votes))
	for _, v := range votes {
		voterRec, err := r.voters.Get(v.Voter)
		if err != nil {
			return "", err
		}
		ballots = append(ballots, resolution.Ballot{
			Voter:      v.Voter,
			Value:      v.Value,
			Stake:      voterRec.Stake,
			Reputation: voterRec.Reputation,
		})
	}
	switch q.Strategy {
	case query.StrategyMedian:
		return resolution.Median(ballots)
	case query.StrategyWeightedByStake:
		return resolution.WeightedByStake(q.Outcomes, ballots)
	case query.StrategyWeightedByReputation:
		return resolution.WeightedByReputation(q.Outcomes, ballots)
	default:
		return resolution.Majority(q.Outcomes, ballots)
	}
}

// distribute credits pending rewards to the correct voters. The protocol fee
// goes to the treasury and whatever the payouts leave behind tops up the
// reward pool, so the escrowed reward is never over-distributed.
func (r *Registry) distribute(q *query.Query, correct []alethea.Address, params *ProtocolParameters) error {
	if q.RewardAmount.Sign() == 0 || len(correct) == 0 {
		return nil
	}
	claimants := make([]settlement.Claimant, 0, len(correct))
	for _, addr := range correct {
		v, err := r.voters.Get(addr)
		if err != nil {
			return err
		}
		claimants = append(claimants, settlement.Claimant{
			Voter:      addr,
			Stake:      v.Stake,
			Reputation: v.Reputation,
		})
	}

	var payouts []settlement.Payout
	switch q.Strategy {
	case query.StrategyWeightedByStake:
		payouts = settlement.StakeWeighted(q.RewardAmount, claimants, params.ProtocolFeeBps)
	case query.StrategyWeightedByReputation:
		payouts = settlement.ReputationWeighted(q.RewardAmount, claimants, params.ProtocolFeeBps)
	default:
		payouts = settlement.Equal(q.RewardAmount, claimants, params.ProtocolFeeBps)
	}

	fee := settlement.ProtocolFee(q.RewardAmount, params.ProtocolFeeBps)
	budget := new(big.Int).Sub(q.RewardAmount, fee)
	payouts = settlement.CapToBudget(payouts, budget)

	for _, p := range payouts {
		if p.Amount.Sign() == 0 {
			continue
		}
		if err := r.rewards.AddPending(p.Voter, p.Amount); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := r.rewards.AddTreasury(fee); err != nil {
			return err
		}
	}
	leftover := new(big.Int).Sub(budget, settlement.Total(payouts))
	if leftover.Sign() > 0 {
		if err := r.rewards.AddRewardPool(leftover); err != nil {
			return err
		}
	}
	return nil
}

// slash penalizes the incorrect voters and moves the slashed stake to the
// treasury.
func (r *Registry) slash(incorrect []alethea.Address, params *ProtocolParameters) error {
	for _, addr := range incorrect {
		v, err := r.voters.Get(addr)
		if err != nil {
			return err
		}
		amount := settlement.SlashAmount(v.Stake, params.SlashBps)
		if amount.Sign() == 0 {
			continue
		}
		slashed, deactivated, err := r.voters.Slash(addr, amount, params.MinStake)
		if err != nil {
			return err
		}
		if err := r.rewards.AddTreasury(slashed); err != nil {
			return err
		}
		metricStakeSlashed().Add(slashed.Int64())
		logger.Info("voter slashed", "addr", addr, "amount", slashed, "deactivated", deactivated)
	}
	return nil
}

// expire terminates an under-voted query and releases its participants.
func (r *Registry) expire(q *query.Query, now uint64) error {
	if err := r.unlockParticipants(q.ID); err != nil {
		return err
	}
	if err := r.refundReward(q); err != nil {
		return err
	}
	if err := r.queries.MarkExpired(q, now); err != nil {
		return err
	}
	metricQueriesResolved().AddWithLabel(1, map[string]string{"outcome": "expired"})
	logger.Info("query expired", "id", q.ID)
	return nil
}

// unlockParticipants releases the exact amounts locked at ballot time.
// Revealed votes share their commit's lock, so votes only release when no
// commit row exists for the voter.
func (r *Registry) unlockParticipants(queryID uint64) error {
	commits, err := r.ballots.Commits(queryID)
	if err != nil {
		return err
	}
	committed := make(map[alethea.Address]bool, len(commits))
	for _, c := range commits {
		committed[c.Voter] = true
		if err := r.voters.Unlock(c.Voter, c.Locked); err != nil {
			return err
		}
	}
	votes, err := r.ballots.Votes(queryID)
	if err != nil {
		return err
	}
	for _, v := range votes {
		if committed[v.Voter] {
			continue
		}
		if err := r.voters.Unlock(v.Voter, v.Locked); err != nil {
			return err
		}
	}
	return nil
}

// refundReward returns an unspent reward escrow to the query creator.
func (r *Registry) refundReward(q *query.Query) error {
	if q.RewardAmount.Sign() == 0 {
		return nil
	}
	return errors.WithMessage(r.tokens.Payout(q.Creator, q.RewardAmount), "reward refund failed")
}
