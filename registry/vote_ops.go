// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package registry

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/query"
	"github.com/alethea-net/oracle/voting"
)

// CreateQuery opens a new query funded by the caller's reward escrow.
func (r *Registry) CreateQuery(caller alethea.Address, p query.CreateParams, now uint64) (*query.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
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
	p.Creator = caller
	if p.RewardAmount != nil && p.RewardAmount.Sign() > 0 {
		if err := r.tokens.Deposit(caller, p.RewardAmount); err != nil {
			return nil, errors.WithMessage(err, "reward deposit failed")
		}
	}
	q, err := r.queries.Create(p, now, params.QueryDuration, params.MinVotesDefault, count)
	if err != nil {
		return nil, err
	}
	metricQueriesCreated().Add(1)
	return q, nil
}

// CreateQueryWithCallback opens a query that notifies target on resolution.
func (r *Registry) CreateQueryWithCallback(caller alethea.Address, p query.CreateParams, target alethea.Address, data []byte, now uint64) (*query.Query, error) {
	p.HasCallback = true
	p.CallbackTarget = target
	p.CallbackData = data
	return r.CreateQuery(caller, p, now)
}

// loadForVoting fetches the query and the caller's voter record and checks
// the caller sits on the query's panel.
func (r *Registry) loadForVoting(id uint64, caller alethea.Address) (*query.Query, error) {
	q, err := r.queries.Get(id)
	if err != nil {
		return nil, err
	}
	if q.Status != query.StatusActive {
		return nil, errors.Wrapf(query.ErrNotActive, "query %d is %v", id, q.Status)
	}
	v, err := r.voters.Get(caller)
	if err != nil {
		return nil, err
	}
	if !v.Active {
		return nil, errors.Wrapf(ErrNotSelected, "voter %v is inactive", caller)
	}
	if !q.IsSelected(caller) {
		return nil, ErrNotSelected
	}
	return q, nil
}

// CommitVote records a sealed ballot and locks part of the caller's stake.
func (r *Registry) CommitVote(caller alethea.Address, queryID uint64, commitHash string, now uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return err
	}
	q, err := r.loadForVoting(queryID, caller)
	if err != nil {
		return err
	}
	if q.Phase != query.PhaseCommit {
		return errors.Wrapf(ErrWrongPhase, "query %d is in %v phase", queryID, q.Phase)
	}
	if q.AdvancePhase(now) {
		if err := r.queries.Update(q); err != nil {
			return err
		}
		return ErrCommitPhaseOver
	}
	if err := voting.ValidateCommitHash(commitHash); err != nil {
		return err
	}
	prior, err := r.ballots.GetCommit(queryID, caller)
	if err != nil {
		return err
	}
	if prior != nil {
		return voting.ErrAlreadyCommitted
	}

	locked, err := r.lockStake(caller)
	if err != nil {
		return err
	}
	commit := &voting.Commit{
		Voter:       caller,
		CommitHash:  commitHash,
		CommittedAt: now,
		Locked:      locked,
	}
	if err := r.ballots.PutCommit(queryID, commit); err != nil {
		return err
	}
	if err := r.voters.RecordVote(caller); err != nil {
		return err
	}
	logger.Debug("vote committed", "query", queryID, "voter", caller, "locked", locked)
	return nil
}

// RevealVote opens a previously committed ballot.
func (r *Registry) RevealVote(caller alethea.Address, queryID uint64, value, salt string, confidence uint8, hasConfidence bool, now uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return err
	}
	q, err := r.loadForVoting(queryID, caller)
	if err != nil {
		return err
	}
	if q.AdvancePhase(now) {
		if err := r.queries.Update(q); err != nil {
			return err
		}
	}
	// AdvancePhase can skip straight past the reveal window, so the phase is
	// checked after catching up rather than trusting the stored one.
	switch q.Phase {
	case query.PhaseCommit:
		return errors.Wrap(ErrWrongPhase, "reveal phase has not started")
	case query.PhaseCompleted:
		return ErrRevealPhaseOver
	}

	commit, err := r.ballots.GetCommit(queryID, caller)
	if err != nil {
		return err
	}
	if commit == nil {
		return voting.ErrNoCommit
	}
	if commit.Revealed {
		return voting.ErrAlreadyRevealed
	}
	if !q.IsValidOutcome(value) {
		return errors.Wrapf(ErrInvalidOutcome, "%q", value)
	}
	if hasConfidence && confidence > 100 {
		return ErrBadConfidence
	}
	if voting.CommitHash(value, salt) != commit.CommitHash {
		return voting.ErrHashMismatch
	}

	vote := &voting.Vote{
		Voter:         caller,
		Value:         value,
		Salt:          salt,
		Timestamp:     now,
		Confidence:    confidence,
		HasConfidence: hasConfidence,
		Locked:        commit.Locked,
	}
	if err := r.ballots.PutVote(queryID, vote); err != nil {
		return err
	}
	commit.Revealed = true
	if err := r.ballots.PutCommit(queryID, commit); err != nil {
		return err
	}
	if err := r.ballots.BumpSubmitted(); err != nil {
		return err
	}
	metricVotesSubmitted().Add(1)
	logger.Debug("vote revealed", "query", queryID, "voter", caller, "value", value)
	return nil
}

// SubmitVote records a direct single-phase ballot before the query deadline.
func (r *Registry) SubmitVote(caller alethea.Address, queryID uint64, value string, confidence uint8, hasConfidence bool, now uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return err
	}
	q, err := r.loadForVoting(queryID, caller)
	if err != nil {
		return err
	}
	if q.DeadlinePassed(now) {
		return ErrDeadlinePassed
	}
	prior, err := r.ballots.GetVote(queryID, caller)
	if err != nil {
		return err
	}
	if prior != nil {
		return voting.ErrAlreadyVoted
	}
	committed, err := r.ballots.GetCommit(queryID, caller)
	if err != nil {
		return err
	}
	if committed != nil {
		return voting.ErrAlreadyCommitted
	}
	if !q.IsValidOutcome(value) {
		return errors.Wrapf(ErrInvalidOutcome, "%q", value)
	}
	if hasConfidence && confidence > 100 {
		return ErrBadConfidence
	}

	locked, err := r.lockStake(caller)
	if err != nil {
		return err
	}
	vote := &voting.Vote{
		Voter:         caller,
		Value:         value,
		Timestamp:     now,
		Confidence:    confidence,
		HasConfidence: hasConfidence,
		Locked:        locked,
	}
	if err := r.ballots.PutVote(queryID, vote); err != nil {
		return err
	}
	if err := r.voters.RecordVote(caller); err != nil {
		return err
	}
	if err := r.ballots.BumpSubmitted(); err != nil {
		return err
	}
	metricVotesSubmitted().Add(1)
	logger.Debug("vote submitted", "query", queryID, "voter", caller, "value", value)
	return nil
}

// lockStake locks the ballot collateral for the caller and returns the exact
// amount locked, which the ballot record keeps for later release.
func (r *Registry) lockStake(caller alethea.Address) (*big.Int, error) {
	params, err := r.state.getParams()
	if err != nil {
		return nil, err
	}
	v, err := r.voters.Get(caller)
	if err != nil {
		return nil, err
	}
	locked := voting.LockAmount(params.MinStake, v.Available())
	if err := r.voters.Lock(caller, locked); err != nil {
		return nil, err
	}
	return locked, nil
}
