// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

// Package voting implements the commit-reveal ballot records of the oracle.
//
// A voter first commits the blake2b digest of its value and a private salt,
// then reveals both once the commit window closes. Direct votes skip the
// commitment and are only accepted while the query deadline has not passed.
package voting

import (
	"encoding/hex"
	"math/big"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
)

var (
	ErrAlreadyCommitted = errors.New("voter already committed")
	ErrAlreadyVoted     = errors.New("voter already voted")
	ErrNoCommit         = errors.New("no commitment found")
	ErrAlreadyRevealed  = errors.New("vote already revealed")
	ErrHashMismatch     = errors.New("reveal does not match commitment")
)

// Commit is a sealed ballot awaiting its reveal.
type Commit struct {
	Voter       alethea.Address
	CommitHash  string
	CommittedAt uint64
	Revealed    bool
	Locked      *big.Int
}

// Vote is a revealed or directly submitted ballot.
type Vote struct {
	Voter         alethea.Address
	Value         string
	Salt          string
	Timestamp     uint64
	Confidence    uint8
	HasConfidence bool
	Locked        *big.Int
}

// CommitHash derives the commitment digest for a value and salt, encoded as
// lowercase hex.
func CommitHash(value, salt string) string {
	h := alethea.Blake2b([]byte(value), []byte(salt))
	return hex.EncodeToString(h[:])
}

// ValidateCommitHash checks the wire form of a commitment digest.
func ValidateCommitHash(hash string) error {
	if hash == "" {
		return errors.New("commit hash must not be empty")
	}
	if len(hash) > alethea.MaxCommitHashLength {
		return errors.Errorf("commit hash exceeds %d characters", alethea.MaxCommitHashLength)
	}
	return nil
}

// LockAmount computes the stake locked for one ballot: a tenth of the
// voter's available stake, capped at the protocol minimum stake.
func LockAmount(minStake, available *big.Int) *big.Int {
	tenth := new(big.Int).Div(available, big.NewInt(10))
	if tenth.Cmp(minStake) < 0 {
		return tenth
	}
	return new(big.Int).Set(minStake)
}
