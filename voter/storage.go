// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package voter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/kv"
)

var (
	rowsBucket = kv.Bucket("r")
	metaBucket = kv.Bucket("m")

	keyTotalStake = []byte("total-stake")
	keyCount      = []byte("count")
)

// Storage persists voter rows and ledger aggregates.
type Storage struct {
	rows kv.Store
	meta kv.Store
}

// NewStorage creates voter storage on the given store.
func NewStorage(store kv.Store) *Storage {
	return &Storage{
		rows: rowsBucket.NewStore(store),
		meta: metaBucket.NewStore(store),
	}
}

// Get loads a voter row, or nil if the address is not registered.
func (s *Storage) Get(addr alethea.Address) (*Voter, error) {
	data, err := s.rows.Get(addr.Bytes())
	if err != nil {
		if s.rows.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get voter")
	}
	var v Voter
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return nil, errors.Wrap(err, "failed to decode voter")
	}
	return &v, nil
}

// Put saves a voter row.
func (s *Storage) Put(v *Voter) error {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return errors.Wrap(err, "failed to encode voter")
	}
	if err := s.rows.Put(v.Address.Bytes(), data); err != nil {
		return errors.Wrap(err, "failed to put voter")
	}
	return nil
}

// Delete removes a voter row.
func (s *Storage) Delete(addr alethea.Address) error {
	if err := s.rows.Delete(addr.Bytes()); err != nil {
		return errors.Wrap(err, "failed to delete voter")
	}
	return nil
}

// Iterate walks all voter rows in address order until fn returns false.
func (s *Storage) Iterate(fn func(*Voter) bool) error {
	it := s.rows.NewIterator(kv.Range{})
	defer it.Release()

	for it.Next() {
		var v Voter
		if err := rlp.DecodeBytes(it.Value(), &v); err != nil {
			return errors.Wrap(err, "failed to decode voter")
		}
		if !fn(&v) {
			break
		}
	}
	return it.Error()
}

// TotalStake returns the sum of all registered stakes.
func (s *Storage) TotalStake() (*big.Int, error) {
	data, err := s.meta.Get(keyTotalStake)
	if err != nil {
		if s.meta.IsNotFound(err) {
			return new(big.Int), nil
		}
		return nil, errors.Wrap(err, "failed to get total stake")
	}
	total := new(big.Int)
	if err := rlp.DecodeBytes(data, total); err != nil {
		return nil, errors.Wrap(err, "failed to decode total stake")
	}
	return total, nil
}

// SetTotalStake saves the sum of all registered stakes.
func (s *Storage) SetTotalStake(total *big.Int) error {
	data, err := rlp.EncodeToBytes(total)
	if err != nil {
		return errors.Wrap(err, "failed to encode total stake")
	}
	return errors.Wrap(s.meta.Put(keyTotalStake, data), "failed to put total stake")
}

// Count returns the number of registered voters.
func (s *Storage) Count() (uint64, error) {
	data, err := s.meta.Get(keyCount)
	if err != nil {
		if s.meta.IsNotFound(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to get voter count")
	}
	var count uint64
	if err := rlp.DecodeBytes(data, &count); err != nil {
		return 0, errors.Wrap(err, "failed to decode voter count")
	}
	return count, nil
}

// SetCount saves the number of registered voters.
func (s *Storage) SetCount(count uint64) error {
	data, err := rlp.EncodeToBytes(count)
	if err != nil {
		return errors.Wrap(err, "failed to encode voter count")
	}
	return errors.Wrap(s.meta.Put(keyCount, data), "failed to put voter count")
}
