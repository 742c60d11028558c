// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package voter

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/log"
)

var logger = log.WithContext("pkg", "voter")

var (
	ErrNotFound          = errors.New("voter not registered")
	ErrAlreadyRegistered = errors.New("already registered as voter")
	ErrNotActive         = errors.New("voter is not active")
	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrInsufficientStake = errors.New("insufficient stake")
	ErrBelowMinimumStake = errors.New("stake below minimum")
	ErrExceedsLocked     = errors.New("cannot unlock more than locked")
	ErrNotEnoughVoters   = errors.New("not enough active voters")
)

// Ledger manages voter registration, stake and reputation bookkeeping.
// It does not move tokens, callers settle transfers separately.
type Ledger struct {
	store *Storage
}

// NewLedger creates a ledger on the given storage.
func NewLedger(store *Storage) *Ledger {
	return &Ledger{store: store}
}

// Get returns the voter row for addr.
func (l *Ledger) Get(addr alethea.Address) (*Voter, error) {
	v, err := l.store.Get(addr)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// getActive returns the voter row and rejects inactive voters.
func (l *Ledger) getActive(addr alethea.Address) (*Voter, error) {
	v, err := l.Get(addr)
	if err != nil {
		return nil, err
	}
	if !v.Active {
		return nil, ErrNotActive
	}
	return v, nil
}

// Register adds a new voter with the given initial stake.
func (l *Ledger) Register(addr alethea.Address, stake *big.Int, name, metadataURL string, now uint64, minStake *big.Int) (*Voter, error) {
	if stake == nil || stake.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if stake.Cmp(minStake) < 0 {
		return nil, errors.Wrapf(ErrBelowMinimumStake, "required %v, provided %v", minStake, stake)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateMetadataURL(metadataURL); err != nil {
		return nil, err
	}

	existing, err := l.store.Get(addr)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	v := &Voter{
		Address:      addr,
		Stake:        new(big.Int).Set(stake),
		LockedStake:  new(big.Int),
		Reputation:   alethea.DefaultReputation,
		RegisteredAt: now,
		Active:       true,
		Name:         name,
		MetadataURL:  metadataURL,
	}
	if err := l.store.Put(v); err != nil {
		return nil, err
	}
	if err := l.addTotalStake(stake); err != nil {
		return nil, err
	}
	count, err := l.store.Count()
	if err != nil {
		return nil, err
	}
	if err := l.store.SetCount(count + 1); err != nil {
		return nil, err
	}

	logger.Info("voter registered", "addr", v.Address, "stake", v.Stake)
	return v, nil
}

// AddStake increases the stake of an active voter.
func (l *Ledger) AddStake(addr alethea.Address, amount *big.Int) (*Voter, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	v, err := l.getActive(addr)
	if err != nil {
		return nil, err
	}
	v.Stake = new(big.Int).Add(v.Stake, amount)
	if err := l.store.Put(v); err != nil {
		return nil, err
	}
	if err := l.addTotalStake(amount); err != nil {
		return nil, err
	}
	logger.Debug("stake added", "addr", addr, "amount", amount, "stake", v.Stake)
	return v, nil
}

// Withdraw releases unlocked stake back to an active voter. The remaining
// stake must stay at or above the protocol minimum unless everything is
// withdrawn.
func (l *Ledger) Withdraw(addr alethea.Address, amount, minStake *big.Int) (*Voter, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	v, err := l.getActive(addr)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(v.Available()) > 0 {
		return nil, errors.Wrapf(ErrInsufficientStake,
			"have %v (total %v, locked %v), requested %v", v.Available(), v.Stake, v.LockedStake, amount)
	}
	remaining := new(big.Int).Sub(v.Stake, amount)
	if remaining.Sign() != 0 && remaining.Cmp(minStake) < 0 {
		return nil, errors.Wrapf(ErrBelowMinimumStake, "remaining %v, minimum %v", remaining, minStake)
	}

	v.Stake = remaining
	if err := l.store.Put(v); err != nil {
		return nil, err
	}
	if err := l.subTotalStake(amount); err != nil {
		return nil, err
	}
	logger.Debug("stake withdrawn", "addr", addr, "amount", amount, "stake", v.Stake)
	return v, nil
}

// Deregister removes an active voter and returns the stake to release.
// Callers must first ensure there are no in-flight votes or unclaimed rewards.
func (l *Ledger) Deregister(addr alethea.Address) (*big.Int, error) {
	v, err := l.getActive(addr)
	if err != nil {
		return nil, err
	}
	if err := l.store.Delete(addr); err != nil {
		return nil, err
	}
	if err := l.subTotalStake(v.Stake); err != nil {
		return nil, err
	}
	count, err := l.store.Count()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		count--
	}
	if err := l.store.SetCount(count); err != nil {
		return nil, err
	}
	logger.Info("voter deregistered", "addr", addr, "stake", v.Stake)
	return v.Stake, nil
}

// Lock reserves part of a voter's stake against an in-flight vote.
func (l *Ledger) Lock(addr alethea.Address, amount *big.Int) error {
	v, err := l.Get(addr)
	if err != nil {
		return err
	}
	if amount.Cmp(v.Available()) > 0 {
		return errors.Wrapf(ErrInsufficientStake, "have %v, need %v", v.Available(), amount)
	}
	v.LockedStake = new(big.Int).Add(v.LockedStake, amount)
	return l.store.Put(v)
}

// Unlock releases a previously locked amount.
func (l *Ledger) Unlock(addr alethea.Address, amount *big.Int) error {
	v, err := l.Get(addr)
	if err != nil {
		return err
	}
	if v.LockedStake.Cmp(amount) < 0 {
		return errors.Wrapf(ErrExceedsLocked, "locked %v, requested %v", v.LockedStake, amount)
	}
	v.LockedStake = new(big.Int).Sub(v.LockedStake, amount)
	return l.store.Put(v)
}

// Slash removes up to amount from a voter's stake and reports the amount
// actually taken. The voter is deactivated when the remaining stake falls
// below the protocol minimum.
func (l *Ledger) Slash(addr alethea.Address, amount, minStake *big.Int) (slashed *big.Int, deactivated bool, err error) {
	v, err := l.Get(addr)
	if err != nil {
		return nil, false, err
	}
	slashed = new(big.Int).Set(amount)
	if slashed.Cmp(v.Stake) > 0 {
		slashed.Set(v.Stake)
	}
	v.Stake = new(big.Int).Sub(v.Stake, slashed)
	if v.LockedStake.Cmp(v.Stake) > 0 {
		v.LockedStake = new(big.Int).Set(v.Stake)
	}
	if v.Stake.Cmp(minStake) < 0 && v.Active {
		v.Active = false
		deactivated = true
		logger.Info("voter deactivated after slashing", "addr", addr, "stake", v.Stake, "minStake", minStake)
	}
	if err := l.store.Put(v); err != nil {
		return nil, false, err
	}
	if err := l.subTotalStake(slashed); err != nil {
		return nil, false, err
	}
	return slashed, deactivated, nil
}

// RecordVote bumps the lifetime vote counter. Called when the vote is
// submitted, not when it is revealed or scored.
func (l *Ledger) RecordVote(addr alethea.Address) error {
	v, err := l.Get(addr)
	if err != nil {
		return err
	}
	v.TotalVotes++
	return l.store.Put(v)
}

// RecordOutcome scores a settled vote and recomputes the reputation from the
// lifetime counters.
func (l *Ledger) RecordOutcome(addr alethea.Address, correct bool) error {
	v, err := l.Get(addr)
	if err != nil {
		return err
	}
	if correct {
		v.CorrectVotes++
	}
	v.Reputation = Score(v.CorrectVotes, v.TotalVotes)
	return l.store.Put(v)
}

// SelectByPower picks up to maxVoters active voters ordered by power, stake
// times reputation, highest first. Equal powers order by address so every
// node selects the same set. Fails when fewer than minVoters are active.
func (l *Ledger) SelectByPower(minVoters, maxVoters int) ([]alethea.Address, error) {
	type ranked struct {
		addr  alethea.Address
		power *big.Int
	}
	var candidates []ranked
	if err := l.store.Iterate(func(v *Voter) bool {
		if v.Active {
			candidates = append(candidates, ranked{v.Address, v.Power()})
		}
		return true
	}); err != nil {
		return nil, err
	}
	if len(candidates) < minVoters {
		return nil, errors.Wrapf(ErrNotEnoughVoters, "have %d, need at least %d", len(candidates), minVoters)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		switch candidates[i].power.Cmp(candidates[j].power) {
		case 1:
			return true
		case -1:
			return false
		default:
			return bytes.Compare(candidates[i].addr.Bytes(), candidates[j].addr.Bytes()) < 0
		}
	})

	if len(candidates) > maxVoters {
		candidates = candidates[:maxVoters]
	}
	selected := make([]alethea.Address, 0, len(candidates))
	for _, c := range candidates {
		selected = append(selected, c.addr)
	}
	return selected, nil
}

// TotalStake returns the sum of all registered stakes.
func (l *Ledger) TotalStake() (*big.Int, error) {
	return l.store.TotalStake()
}

// Count returns the number of registered voters.
func (l *Ledger) Count() (uint64, error) {
	return l.store.Count()
}

// Iterate walks all voter rows in address order.
func (l *Ledger) Iterate(fn func(*Voter) bool) error {
	return l.store.Iterate(fn)
}

func (l *Ledger) addTotalStake(amount *big.Int) error {
	total, err := l.store.TotalStake()
	if err != nil {
		return err
	}
	return l.store.SetTotalStake(total.Add(total, amount))
}

func (l *Ledger) subTotalStake(amount *big.Int) error {
	total, err := l.store.TotalStake()
	if err != nil {
		return err
	}
	total.Sub(total, amount)
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return l.store.SetTotalStake(total)
}
