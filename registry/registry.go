// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

// Package registry orchestrates the oracle: voter registration and stake,
// query lifecycle, commit-reveal voting, resolution and settlement. Every
// operation is serialized behind one mutex so state transitions observe a
// consistent store.
package registry

import (
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/kv"
	"github.com/alethea-net/oracle/log"
	"github.com/alethea-net/oracle/query"
	"github.com/alethea-net/oracle/settlement"
	"github.com/alethea-net/oracle/voter"
	"github.com/alethea-net/oracle/voting"
)

var logger = log.WithContext("pkg", "registry")

var (
	ErrPaused           = errors.New("protocol is paused")
	ErrNotPaused        = errors.New("protocol is not paused")
	ErrNotAdmin         = errors.New("caller is not the admin")
	ErrNotSelected      = errors.New("voter not selected for this query")
	ErrActiveVotes      = errors.New("voter has votes on active queries")
	ErrPendingRewards   = errors.New("voter has unclaimed rewards")
	ErrNoPendingRewards = errors.New("no pending rewards to claim")
	ErrCommitPhaseOver  = errors.New("commit phase has ended")
	ErrRevealPhaseOver  = errors.New("reveal phase has ended")
	ErrWrongPhase       = errors.New("operation not allowed in current phase")
	ErrDeadlinePassed   = errors.New("query deadline has passed")
	ErrDeadlineNotDue   = errors.New("query deadline has not passed")
	ErrNotEnoughVotes   = errors.New("not enough votes to resolve")
	ErrInvalidOutcome   = errors.New("value is not a valid outcome")
	ErrBadConfidence    = errors.New("confidence must not exceed 100")
)

var (
	voterBucket   = kv.Bucket("v")
	queryBucket   = kv.Bucket("q")
	rewardsBucket = kv.Bucket("r")
)

// Registry is the top-level oracle service.
type Registry struct {
	mu sync.Mutex

	voters  *voter.Ledger
	queries *query.Lifecycle
	ballots *voting.Storage
	rewards *settlement.Storage
	state   *stateStore
	tokens  TokenLedger
	outbox  Outbox
}

// New builds a registry over the given store. A non-zero admin overwrites the
// persisted admin identity, so genesis can set it once and restarts keep it.
func New(store kv.Store, admin alethea.Address, tokens TokenLedger, outbox Outbox) (*Registry, error) {
	voters := voter.NewLedger(voter.NewStorage(voterBucket.NewStore(store)))
	queryStore := query.NewStorage(queryBucket.NewStore(store))

	r := &Registry{
		voters:  voters,
		queries: query.NewLifecycle(queryStore, voters),
		ballots: voting.NewStorage(store),
		rewards: settlement.NewStorage(rewardsBucket.NewStore(store)),
		state:   newStateStore(store),
		tokens:  tokens,
		outbox:  outbox,
	}
	if !admin.IsZero() {
		if err := r.state.putAdmin(admin); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) requireRunning() error {
	paused, err := r.state.isPaused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

func (r *Registry) requireAdmin(caller alethea.Address) error {
	admin, err := r.state.getAdmin()
	if err != nil {
		return err
	}
	if admin != caller {
		return ErrNotAdmin
	}
	return nil
}

// hasActiveVotes reports whether the voter has a commitment or vote recorded
// on any active query.
func (r *Registry) hasActiveVotes(addr alethea.Address) (bool, error) {
	ids, err := r.queries.ActiveIDs()
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		c, err := r.ballots.GetCommit(id, addr)
		if err != nil {
			return false, err
		}
		if c != nil {
			return true, nil
		}
		v, err := r.ballots.GetVote(id, addr)
		if err != nil {
			return false, err
		}
		if v != nil {
			return true, nil
		}
	}
	return false, nil
}

// RegisterVoter registers the caller with an initial stake.
func (r *Registry) RegisterVoter(caller alethea.Address, stake *big.Int, name, metadataURL string, now uint64) (*voter.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	params, err := r.state.getParams()
	if err != nil {
		return nil, err
	}
	if err := r.tokens.Deposit(caller, stake); err != nil {
		return nil, errors.WithMessage(err, "stake deposit failed")
	}
	v, err := r.voters.Register(caller, stake, name, metadataURL, now, params.MinStake)
	if err != nil {
		return nil, err
	}
	metricVotersRegistered().Add(1)
	return v, nil
}

// RegisterVoterFor registers a voter on behalf of a hex-encoded address.
// Admin only.
func (r *Registry) RegisterVoterFor(caller alethea.Address, voterHex string, stake *big.Int, name, metadataURL string, now uint64) (*voter.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	addr, err := alethea.ParseAddress(voterHex)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid voter address")
	}
	params, err := r.state.getParams()
	if err != nil {
		return nil, err
	}
	if err := r.tokens.Deposit(*addr, stake); err != nil {
		return nil, errors.WithMessage(err, "stake deposit failed")
	}
	v, err := r.voters.Register(*addr, stake, name, metadataURL, now, params.MinStake)
	if err != nil {
		return nil, err
	}
	metricVotersRegistered().Add(1)
	return v, nil
}

// UpdateStake adds stake to the caller's position.
func (r *Registry) UpdateStake(caller alethea.Address, amount *big.Int) (*voter.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	if err := r.tokens.Deposit(caller, amount); err != nil {
		return nil, errors.WithMessage(err, "stake deposit failed")
	}
	return r.voters.AddStake(caller, amount)
}

// WithdrawStake returns unlocked stake to the caller. Withdrawal is blocked
// while the caller has ballots on active queries.
func (r *Registry) WithdrawStake(caller alethea.Address, amount *big.Int) (*voter.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	active, err := r.hasActiveVotes(caller)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveVotes
	}
	params, err := r.state.getParams()
	if err != nil {
		return nil, err
	}
	v, err := r.voters.Withdraw(caller, amount, params.MinStake)
	if err != nil {
		return nil, err
	}
	if err := r.tokens.Payout(caller, amount); err != nil {
		return nil, errors.WithMessage(err, "stake payout failed")
	}
	return v, nil
}

// DeregisterVoter removes the caller and returns the full stake. Blocked
// while rewards are unclaimed or ballots are in flight.
func (r *Registry) DeregisterVoter(caller alethea.Address, now uint64) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	pending, err := r.rewards.Pending(caller)
	if err != nil {
		return nil, err
	}
	if pending.Sign() > 0 {
		return nil, errors.Wrapf(ErrPendingRewards, "%v pending", pending)
	}
	active, err := r.hasActiveVotes(caller)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveVotes
	}
	stake, err := r.voters.Deregister(caller)
	if err != nil {
		return nil, err
	}
	if err := r.tokens.Payout(caller, stake); err != nil {
		return nil, errors.WithMessage(err, "stake payout failed")
	}
	return stake, nil
}

// ClaimRewards pays the caller's pending rewards and reports the amount.
func (r *Registry) ClaimRewards(caller alethea.Address) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return nil, err
	}
	if _, err := r.voters.Get(caller); err != nil {
		return nil, err
	}
	pending, err := r.rewards.Pending(caller)
	if err != nil {
		return nil, err
	}
	if pending.Sign() == 0 {
		return nil, ErrNoPendingRewards
	}
	claimed, err := r.rewards.ClearPending(caller)
	if err != nil {
		return nil, err
	}
	if err := r.rewards.AddDistributed(claimed); err != nil {
		return nil, err
	}
	if err := r.tokens.Payout(caller, claimed); err != nil {
		return nil, errors.WithMessage(err, "reward payout failed")
	}
	logger.Info("rewards claimed", "addr", caller, "amount", claimed)
	return claimed, nil
}

// UpdateParameters replaces the protocol parameter set. Admin only.
func (r *Registry) UpdateParameters(caller alethea.Address, params *ProtocolParameters) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRunning(); err != nil {
		return err
	}
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if err := r.state.putParams(params); err != nil {
		return err
	}
	logger.Info("parameters updated", "minStake", params.MinStake,
		"minVotes", params.MinVotesDefault, "duration", params.QueryDuration,
		"slashBps", params.SlashBps, "feeBps", params.ProtocolFeeBps)
	return nil
}

// PauseProtocol halts every operation except unpausing. Admin only.
func (r *Registry) PauseProtocol(caller alethea.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	paused, err := r.state.isPaused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	if err := r.state.setPaused(true); err != nil {
		return err
	}
	logger.Warn("protocol paused", "by", caller)
	return nil
}

// UnpauseProtocol resumes operation. Admin only.
func (r *Registry) UnpauseProtocol(caller alethea.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	paused, err := r.state.isPaused()
	if err != nil {
		return err
	}
	if !paused {
		return ErrNotPaused
	}
	if err := r.state.setPaused(false); err != nil {
		return err
	}
	logger.Warn("protocol unpaused", "by", caller)
	return nil
}

// Voter returns a voter's current record with decay applied to the displayed
// reputation.
func (r *Registry) Voter(addr alethea.Address, now uint64) (*voter.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.voters.Get(addr)
	if err != nil {
		return nil, err
	}
	v.Reputation = voter.ScoreWithDecay(v.CorrectVotes, v.TotalVotes, v.RegisteredAt, now)
	return v, nil
}

// Query returns a query row.
func (r *Registry) Query(id uint64) (*query.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries.Get(id)
}

// Votes returns the revealed and direct votes of a query.
func (r *Registry) Votes(id uint64) ([]*voting.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.queries.Get(id); err != nil {
		return nil, err
	}
	return r.ballots.Votes(id)
}

// Params returns the current protocol parameters.
func (r *Registry) Params() (*ProtocolParameters, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.getParams()
}

// Admin returns the admin identity.
func (r *Registry) Admin() (alethea.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.getAdmin()
}

// Paused reports whether the protocol is paused.
func (r *Registry) Paused() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.isPaused()
}

// Stats is the protocol-wide counter view.
type Stats struct {
	QueriesCreated   uint64   `json:"queriesCreated"`
	QueriesResolved  uint64   `json:"queriesResolved"`
	VotesSubmitted   uint64   `json:"votesSubmitted"`
	VoterCount       uint64   `json:"voterCount"`
	TotalStake       *big.Int `json:"totalStake"`
	RewardPool       *big.Int `json:"rewardPool"`
	Treasury         *big.Int `json:"treasury"`
	TotalRewardsPaid *big.Int `json:"totalRewardsPaid"`
}

// Stats returns the protocol-wide counters.
func (r *Registry) Stats() (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created, resolved, err := r.queries.Counters()
	if err != nil {
		return nil, err
	}
	votes, err := r.ballots.TotalSubmitted()
	if err != nil {
		return nil, err
	}
	count, err := r.voters.Count()
	if err != nil {
		return nil, err
	}
	totalStake, err := r.voters.TotalStake()
	if err != nil {
		return nil, err
	}
	pool, err := r.rewards.RewardPool()
	if err != nil {
		return nil, err
	}
	treasury, err := r.rewards.Treasury()
	if err != nil {
		return nil, err
	}
	paid, err := r.rewards.TotalDistributed()
	if err != nil {
		return nil, err
	}
	return &Stats{
		QueriesCreated:   created,
		QueriesResolved:  resolved,
		VotesSubmitted:   votes,
		VoterCount:       count,
		TotalStake:       totalStake,
		RewardPool:       pool,
		Treasury:         treasury,
		TotalRewardsPaid: paid,
	}, nil
}
