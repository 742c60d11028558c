// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/kv"
)

// ProtocolParameters are the admin-tunable knobs of the registry.
type ProtocolParameters struct {
	MinStake        *big.Int
	MinVotesDefault uint32
	QueryDuration   uint64 // seconds, split evenly into commit and reveal
	RewardBps       uint32
	SlashBps        uint32
	ProtocolFeeBps  uint32
}

// DefaultParameters returns the genesis parameter set.
func DefaultParameters() *ProtocolParameters {
	return &ProtocolParameters{
		MinStake:        big.NewInt(alethea.InitialMinStake),
		MinVotesDefault: alethea.InitialMinVotesDefault,
		QueryDuration:   alethea.InitialQueryDuration,
		RewardBps:       alethea.InitialRewardPercentage,
		SlashBps:        alethea.InitialSlashPercentage,
		ProtocolFeeBps:  alethea.InitialProtocolFee,
	}
}

// Validate checks every parameter bound.
func (p *ProtocolParameters) Validate() error {
	if p.MinStake == nil || p.MinStake.Sign() <= 0 {
		return errors.New("min stake must be greater than zero")
	}
	if p.MinVotesDefault < 1 || p.MinVotesDefault > alethea.MaxMinVotes {
		return errors.Errorf("default min votes must be between 1 and %d", alethea.MaxMinVotes)
	}
	if p.QueryDuration < alethea.MinQueryDuration || p.QueryDuration > alethea.MaxQueryDuration {
		return errors.Errorf("query duration must be between %d and %d seconds",
			alethea.MinQueryDuration, alethea.MaxQueryDuration)
	}
	if p.RewardBps > alethea.FullBasisPoints {
		return errors.New("reward percentage exceeds 100%")
	}
	if p.SlashBps > alethea.MaxSlashBps {
		return errors.Errorf("slash percentage exceeds %d basis points", alethea.MaxSlashBps)
	}
	if p.ProtocolFeeBps > alethea.MaxProtocolFee {
		return errors.Errorf("protocol fee exceeds %d basis points", alethea.MaxProtocolFee)
	}
	if p.RewardBps+p.SlashBps+p.ProtocolFeeBps > alethea.FullBasisPoints {
		return errors.New("reward, slash and fee percentages exceed 100% combined")
	}
	return nil
}

var (
	stateBucket = kv.Bucket("s")

	keyParams = []byte("params")
	keyAdmin  = []byte("admin")
	keyPaused = []byte("paused")
)

// stateStore persists the parameter set, the admin address and the pause flag.
type stateStore struct {
	store kv.Store
}

func newStateStore(store kv.Store) *stateStore {
	return &stateStore{store: stateBucket.NewStore(store)}
}

func (s *stateStore) getParams() (*ProtocolParameters, error) {
	data, err := s.store.Get(keyParams)
	if err != nil {
		if s.store.IsNotFound(err) {
			return DefaultParameters(), nil
		}
		return nil, errors.Wrap(err, "failed to get parameters")
	}
	var p ProtocolParameters
	if err := rlp.DecodeBytes(data, &p); err != nil {
		return nil, errors.Wrap(err, "failed to decode parameters")
	}
	return &p, nil
}

func (s *stateStore) putParams(p *ProtocolParameters) error {
	data, err := rlp.EncodeToBytes(p)
	if err != nil {
		return errors.Wrap(err, "failed to encode parameters")
	}
	return errors.Wrap(s.store.Put(keyParams, data), "failed to put parameters")
}

func (s *stateStore) getAdmin() (alethea.Address, error) {
	data, err := s.store.Get(keyAdmin)
	if err != nil {
		if s.store.IsNotFound(err) {
			return alethea.Address{}, nil
		}
		return alethea.Address{}, errors.Wrap(err, "failed to get admin")
	}
	return alethea.BytesToAddress(data), nil
}

func (s *stateStore) putAdmin(addr alethea.Address) error {
	return errors.Wrap(s.store.Put(keyAdmin, addr[:]), "failed to put admin")
}

func (s *stateStore) isPaused() (bool, error) {
	data, err := s.store.Get(keyPaused)
	if err != nil {
		if s.store.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to get pause flag")
	}
	return len(data) == 1 && data[0] == 1, nil
}

func (s *stateStore) setPaused(paused bool) error {
	val := []byte{0}
	if paused {
		val[0] = 1
	}
	return errors.Wrap(s.store.Put(keyPaused, val), "failed to put pause flag")
}
