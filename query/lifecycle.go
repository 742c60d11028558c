// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package query

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/log"
)

var logger = log.WithContext("pkg", "query")

// Sampler selects the voter panel for a new query, ranked by voter power.
type Sampler interface {
	SelectByPower(minVoters, maxVoters int) ([]alethea.Address, error)
}

// CreateParams carries the user-supplied parameters of CreateQuery.
type CreateParams struct {
	Description    string
	Outcomes       []string
	Strategy       Strategy
	MinVotes       uint32 // 0 means the protocol default
	RewardAmount   *big.Int
	Deadline       uint64 // 0 means end of the reveal phase
	Duration       uint64 // seconds, 0 means the protocol default
	Creator        alethea.Address
	HasCallback    bool
	CallbackTarget alethea.Address
	CallbackData   []byte
}

// Lifecycle drives query creation and terminal state transitions over the
// query table. Stake unlocking and settlement are the caller's concern.
type Lifecycle struct {
	store   *Storage
	sampler Sampler
}

// NewLifecycle creates a lifecycle service.
func NewLifecycle(store *Storage, sampler Sampler) *Lifecycle {
	return &Lifecycle{store: store, sampler: sampler}
}

// Get returns the query with the given id.
func (l *Lifecycle) Get(id uint64) (*Query, error) {
	q, err := l.store.Get(id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errors.Wrapf(ErrNotFound, "query %d", id)
	}
	return q, nil
}

// Update persists a mutated query row.
func (l *Lifecycle) Update(q *Query) error {
	return l.store.Put(q)
}

// ActiveIDs returns all active query ids in ascending order.
func (l *Lifecycle) ActiveIDs() ([]uint64, error) {
	return l.store.ActiveIDs()
}

// Create validates the parameters, selects the voter panel and persists a
// new active query. The commit and reveal windows split the duration 50/50.
func (l *Lifecycle) Create(p CreateParams, now, defaultDuration uint64, defaultMinVotes uint32, voterCount uint64) (*Query, error) {
	if err := ValidateParams(p.Description, p.Outcomes, p.RewardAmount, true, p.Deadline, now); err != nil {
		return nil, err
	}

	minVotes := p.MinVotes
	if minVotes == 0 {
		minVotes = defaultMinVotes
	}
	if err := ValidateMinVotes(minVotes, voterCount); err != nil {
		return nil, err
	}
	if err := ValidateStrategy(p.Strategy, p.Outcomes); err != nil {
		return nil, err
	}

	duration := p.Duration
	if duration == 0 {
		duration = defaultDuration
	}
	commitPhaseEnd := now + duration/2
	revealPhaseEnd := commitPhaseEnd + duration/2

	deadline := p.Deadline
	if deadline == 0 {
		deadline = revealPhaseEnd
	}
	if deadline <= now {
		return nil, errors.New("deadline must be in the future")
	}

	maxVoters := minVotes * 2
	selected, err := l.sampler.SelectByPower(int(minVotes), int(maxVoters))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to select voters")
	}

	id, err := l.store.NextID()
	if err != nil {
		return nil, err
	}

	q := &Query{
		ID:             id,
		Description:    p.Description,
		Outcomes:       p.Outcomes,
		Strategy:       p.Strategy,
		MinVotes:       minVotes,
		MaxVoters:      maxVoters,
		RewardAmount:   new(big.Int).Set(p.RewardAmount),
		Creator:        p.Creator,
		CreatedAt:      now,
		CommitPhaseEnd: commitPhaseEnd,
		RevealPhaseEnd: revealPhaseEnd,
		Deadline:       deadline,
		Phase:          PhaseCommit,
		Status:         StatusActive,
		SelectedVoters: selected,
		HasCallback:    p.HasCallback,
		CallbackTarget: p.CallbackTarget,
		CallbackData:   p.CallbackData,
	}
	if err := l.insert(q); err != nil {
		return nil, err
	}

	logger.Info("query created", "id", q.ID, "strategy", q.Strategy,
		"minVotes", q.MinVotes, "voters", len(q.SelectedVoters), "deadline", q.Deadline)
	return q, nil
}

// CreateFromMarket creates a query on behalf of an external market. Market
// queries use fixed one hour commit and reveal windows, majority strategy,
// the default vote requirement and no reward.
func (l *Lifecycle) CreateFromMarket(marketID uint64, question string, outcomes []string, marketDeadline uint64, callbackTarget alethea.Address, callbackData []byte, now uint64, defaultMinVotes uint32, voterCount uint64) (*Query, error) {
	description := fmt.Sprintf("Market #%d: %s", marketID, question)

	if err := ValidateParams(description, outcomes, nil, false, marketDeadline, now); err != nil {
		return nil, err
	}
	if err := ValidateMinVotes(defaultMinVotes, voterCount); err != nil {
		return nil, err
	}

	commitPhaseEnd := now + alethea.MarketPhaseDuration
	revealPhaseEnd := commitPhaseEnd + alethea.MarketPhaseDuration

	maxVoters := defaultMinVotes * 2
	selected, err := l.sampler.SelectByPower(int(defaultMinVotes), int(maxVoters))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to select voters")
	}

	id, err := l.store.NextID()
	if err != nil {
		return nil, err
	}

	q := &Query{
		ID:             id,
		Description:    description,
		Outcomes:       outcomes,
		Strategy:       StrategyMajority,
		MinVotes:       defaultMinVotes,
		MaxVoters:      maxVoters,
		RewardAmount:   new(big.Int),
		Creator:        callbackTarget,
		CreatedAt:      now,
		CommitPhaseEnd: commitPhaseEnd,
		RevealPhaseEnd: revealPhaseEnd,
		Deadline:       revealPhaseEnd,
		Phase:          PhaseCommit,
		Status:         StatusActive,
		SelectedVoters: selected,
		HasCallback:    true,
		CallbackTarget: callbackTarget,
		CallbackData:   callbackData,
	}
	if err := l.insert(q); err != nil {
		return nil, err
	}

	logger.Info("query created from market", "id", q.ID, "market", marketID, "voters", len(q.SelectedVoters))
	return q, nil
}

func (l *Lifecycle) insert(q *Query) error {
	if err := l.store.Put(q); err != nil {
		return err
	}
	if err := l.store.AddActive(q.ID); err != nil {
		return err
	}
	return l.store.BumpCreated()
}

// MarkResolved finalizes a query with its result.
func (l *Lifecycle) MarkResolved(q *Query, result string, now uint64) error {
	q.Status = StatusResolved
	q.Result = result
	q.ResolvedAt = now
	if err := l.store.Put(q); err != nil {
		return err
	}
	if err := l.store.RemoveActive(q.ID); err != nil {
		return err
	}
	return l.store.BumpResolved()
}

// MarkExpired finalizes a query that missed its vote requirement.
func (l *Lifecycle) MarkExpired(q *Query, now uint64) error {
	q.Status = StatusExpired
	q.ResolvedAt = now
	if err := l.store.Put(q); err != nil {
		return err
	}
	return l.store.RemoveActive(q.ID)
}

// MarkCancelled finalizes an administratively cancelled query.
func (l *Lifecycle) MarkCancelled(q *Query, now uint64) error {
	q.Status = StatusCancelled
	q.ResolvedAt = now
	if err := l.store.Put(q); err != nil {
		return err
	}
	return l.store.RemoveActive(q.ID)
}

// Counters exposes the lifecycle counters for the stats view.
func (l *Lifecycle) Counters() (created, resolved uint64, err error) {
	if created, err = l.store.TotalCreated(); err != nil {
		return
	}
	resolved, err = l.store.TotalResolved()
	return
}
