// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/kv"
)

var (
	pendingBucket = kv.Bucket("p")
	metaBucket    = kv.Bucket("m")

	keyTreasury    = []byte("treasury")
	keyRewardPool  = []byte("reward-pool")
	keyDistributed = []byte("total-distributed")
)

// Storage persists pending rewards per voter and the protocol balances.
type Storage struct {
	pending kv.Store
	meta    kv.Store
}

// NewStorage creates settlement storage on the given store.
func NewStorage(store kv.Store) *Storage {
	return &Storage{
		pending: pendingBucket.NewStore(store),
		meta:    metaBucket.NewStore(store),
	}
}

// Pending returns a voter's unclaimed rewards.
func (s *Storage) Pending(addr alethea.Address) (*big.Int, error) {
	return s.getAmount(s.pending, addr[:])
}

// AddPending credits a voter's unclaimed rewards.
func (s *Storage) AddPending(addr alethea.Address, amount *big.Int) error {
	pending, err := s.Pending(addr)
	if err != nil {
		return err
	}
	return s.putAmount(s.pending, addr[:], pending.Add(pending, amount))
}

// ClearPending zeroes a voter's unclaimed rewards and returns the amount
// cleared.
func (s *Storage) ClearPending(addr alethea.Address) (*big.Int, error) {
	pending, err := s.Pending(addr)
	if err != nil {
		return nil, err
	}
	if pending.Sign() == 0 {
		return pending, nil
	}
	if err := s.pending.Delete(addr[:]); err != nil {
		return nil, errors.Wrap(err, "failed to clear pending rewards")
	}
	return pending, nil
}

// Treasury returns the accumulated protocol fees and slashed stake.
func (s *Storage) Treasury() (*big.Int, error) {
	return s.getAmount(s.meta, keyTreasury)
}

// AddTreasury credits the treasury.
func (s *Storage) AddTreasury(amount *big.Int) error {
	return s.addAmount(keyTreasury, amount)
}

// RewardPool returns the undistributed remainder of query rewards.
func (s *Storage) RewardPool() (*big.Int, error) {
	return s.getAmount(s.meta, keyRewardPool)
}

// AddRewardPool credits the reward pool.
func (s *Storage) AddRewardPool(amount *big.Int) error {
	return s.addAmount(keyRewardPool, amount)
}

// TotalDistributed returns the rewards claimed over the registry's lifetime.
func (s *Storage) TotalDistributed() (*big.Int, error) {
	return s.getAmount(s.meta, keyDistributed)
}

// AddDistributed adds to the lifetime claimed total.
func (s *Storage) AddDistributed(amount *big.Int) error {
	return s.addAmount(keyDistributed, amount)
}

func (s *Storage) addAmount(key []byte, amount *big.Int) error {
	cur, err := s.getAmount(s.meta, key)
	if err != nil {
		return err
	}
	return s.putAmount(s.meta, key, cur.Add(cur, amount))
}

func (s *Storage) getAmount(store kv.Store, key []byte) (*big.Int, error) {
	data, err := store.Get(key)
	if err != nil {
		if store.IsNotFound(err) {
			return new(big.Int), nil
		}
		return nil, errors.Wrap(err, "failed to get amount")
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, errors.Wrap(err, "failed to decode amount")
	}
	return amount, nil
}

func (s *Storage) putAmount(store kv.Store, key []byte, amount *big.Int) error {
	data, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return errors.Wrap(err, "failed to encode amount")
	}
	return errors.Wrap(store.Put(key, data), "failed to put amount")
}
