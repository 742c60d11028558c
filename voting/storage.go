// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package voting

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/kv"
)

var (
	commitsBucket = kv.Bucket("c")
	votesBucket   = kv.Bucket("t")
	metaBucket    = kv.Bucket("m")

	keyTotalSubmitted = []byte("total-submitted")
)

// ballotKey is the 8-byte big-endian query id followed by the voter address,
// so ballots of one query form a contiguous key range.
func ballotKey(queryID uint64, voter alethea.Address) []byte {
	key := make([]byte, 8+len(voter))
	binary.BigEndian.PutUint64(key[:8], queryID)
	copy(key[8:], voter[:])
	return key
}

func queryRange(queryID uint64) kv.Range {
	var start, limit [8]byte
	binary.BigEndian.PutUint64(start[:], queryID)
	binary.BigEndian.PutUint64(limit[:], queryID+1)
	return kv.Range{Start: start[:], Limit: limit[:]}
}

// Storage persists commitments and votes keyed by query id and voter.
type Storage struct {
	commits kv.Store
	votes   kv.Store
	meta    kv.Store
}

// NewStorage creates ballot storage on the given store.
func NewStorage(store kv.Store) *Storage {
	return &Storage{
		commits: commitsBucket.NewStore(store),
		votes:   votesBucket.NewStore(store),
		meta:    metaBucket.NewStore(store),
	}
}

// GetCommit loads a commitment, or nil if the voter never committed.
func (s *Storage) GetCommit(queryID uint64, voter alethea.Address) (*Commit, error) {
	data, err := s.commits.Get(ballotKey(queryID, voter))
	if err != nil {
		if s.commits.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get commit")
	}
	var c Commit
	if err := rlp.DecodeBytes(data, &c); err != nil {
		return nil, errors.Wrap(err, "failed to decode commit")
	}
	return &c, nil
}

// PutCommit saves a commitment.
func (s *Storage) PutCommit(queryID uint64, c *Commit) error {
	data, err := rlp.EncodeToBytes(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode commit")
	}
	return errors.Wrap(s.commits.Put(ballotKey(queryID, c.Voter), data), "failed to put commit")
}

// GetVote loads a vote, or nil if the voter never voted.
func (s *Storage) GetVote(queryID uint64, voter alethea.Address) (*Vote, error) {
	data, err := s.votes.Get(ballotKey(queryID, voter))
	if err != nil {
		if s.votes.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get vote")
	}
	var v Vote
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return nil, errors.Wrap(err, "failed to decode vote")
	}
	return &v, nil
}

// PutVote saves a vote.
func (s *Storage) PutVote(queryID uint64, v *Vote) error {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return errors.Wrap(err, "failed to encode vote")
	}
	return errors.Wrap(s.votes.Put(ballotKey(queryID, v.Voter), data), "failed to put vote")
}

// Votes returns all votes of a query in voter address order.
func (s *Storage) Votes(queryID uint64) ([]*Vote, error) {
	it := s.votes.NewIterator(queryRange(queryID))
	defer it.Release()

	var votes []*Vote
	for it.Next() {
		var v Vote
		if err := rlp.DecodeBytes(it.Value(), &v); err != nil {
			return nil, errors.Wrap(err, "failed to decode vote")
		}
		votes = append(votes, &v)
	}
	return votes, it.Error()
}

// Commits returns all commitments of a query in voter address order.
func (s *Storage) Commits(queryID uint64) ([]*Commit, error) {
	it := s.commits.NewIterator(queryRange(queryID))
	defer it.Release()

	var commits []*Commit
	for it.Next() {
		var c Commit
		if err := rlp.DecodeBytes(it.Value(), &c); err != nil {
			return nil, errors.Wrap(err, "failed to decode commit")
		}
		commits = append(commits, &c)
	}
	return commits, it.Error()
}

// VoteCount counts the revealed and direct votes of a query.
func (s *Storage) VoteCount(queryID uint64) (uint32, error) {
	it := s.votes.NewIterator(queryRange(queryID))
	defer it.Release()

	var n uint32
	for it.Next() {
		n++
	}
	return n, it.Error()
}

// TotalSubmitted returns the number of votes ever revealed or submitted.
func (s *Storage) TotalSubmitted() (uint64, error) {
	data, err := s.meta.Get(keyTotalSubmitted)
	if err != nil {
		if s.meta.IsNotFound(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to get vote counter")
	}
	return binary.BigEndian.Uint64(data), nil
}

// BumpSubmitted increments the submitted vote counter.
func (s *Storage) BumpSubmitted() error {
	n, err := s.TotalSubmitted()
	if err != nil {
		return err
	}
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], n+1)
	return errors.Wrap(s.meta.Put(keyTotalSubmitted, val[:]), "failed to put vote counter")
}
