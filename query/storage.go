// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package query

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/kv"
)

var (
	rowsBucket   = kv.Bucket("r")
	activeBucket = kv.Bucket("a")
	metaBucket   = kv.Bucket("m")

	keyNextID        = []byte("next-id")
	keyTotalCreated  = []byte("total-created")
	keyTotalResolved = []byte("total-resolved")
)

func idKey(id uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], id)
	return key[:]
}

// Storage persists query rows, the active query index and lifecycle counters.
type Storage struct {
	rows   kv.Store
	active kv.Store
	meta   kv.Store
}

// NewStorage creates query storage on the given store.
func NewStorage(store kv.Store) *Storage {
	return &Storage{
		rows:   rowsBucket.NewStore(store),
		active: activeBucket.NewStore(store),
		meta:   metaBucket.NewStore(store),
	}
}

// Get loads a query row, or nil if the id is unknown.
func (s *Storage) Get(id uint64) (*Query, error) {
	data, err := s.rows.Get(idKey(id))
	if err != nil {
		if s.rows.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get query")
	}
	var q Query
	if err := rlp.DecodeBytes(data, &q); err != nil {
		return nil, errors.Wrap(err, "failed to decode query")
	}
	return &q, nil
}

// Put saves a query row.
func (s *Storage) Put(q *Query) error {
	data, err := rlp.EncodeToBytes(q)
	if err != nil {
		return errors.Wrap(err, "failed to encode query")
	}
	return errors.Wrap(s.rows.Put(idKey(q.ID), data), "failed to put query")
}

// AddActive adds the id to the active query index.
func (s *Storage) AddActive(id uint64) error {
	return errors.Wrap(s.active.Put(idKey(id), nil), "failed to index active query")
}

// RemoveActive removes the id from the active query index.
func (s *Storage) RemoveActive(id uint64) error {
	return errors.Wrap(s.active.Delete(idKey(id)), "failed to unindex active query")
}

// ActiveIDs returns all active query ids in ascending order.
func (s *Storage) ActiveIDs() ([]uint64, error) {
	it := s.active.NewIterator(kv.Range{})
	defer it.Release()

	var ids []uint64
	for it.Next() {
		ids = append(ids, binary.BigEndian.Uint64(it.Key()))
	}
	return ids, it.Error()
}

// NextID allocates the next query id.
func (s *Storage) NextID() (uint64, error) {
	id, err := s.getCounter(keyNextID)
	if err != nil {
		return 0, err
	}
	if err := s.setCounter(keyNextID, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

// TotalCreated returns the number of queries ever created.
func (s *Storage) TotalCreated() (uint64, error) {
	return s.getCounter(keyTotalCreated)
}

// BumpCreated increments the created counter.
func (s *Storage) BumpCreated() error {
	n, err := s.getCounter(keyTotalCreated)
	if err != nil {
		return err
	}
	return s.setCounter(keyTotalCreated, n+1)
}

// TotalResolved returns the number of queries resolved.
func (s *Storage) TotalResolved() (uint64, error) {
	return s.getCounter(keyTotalResolved)
}

// BumpResolved increments the resolved counter.
func (s *Storage) BumpResolved() error {
	n, err := s.getCounter(keyTotalResolved)
	if err != nil {
		return err
	}
	return s.setCounter(keyTotalResolved, n+1)
}

func (s *Storage) getCounter(key []byte) (uint64, error) {
	data, err := s.meta.Get(key)
	if err != nil {
		if s.meta.IsNotFound(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to get counter")
	}
	return binary.BigEndian.Uint64(data), nil
}

func (s *Storage) setCounter(key []byte, n uint64) error {
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], n)
	return errors.Wrap(s.meta.Put(key, val[:]), "failed to put counter")
}
