// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package voter

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/lvldb"
)

var minStake = big.NewInt(100)

func newTestLedger(t *testing.T) *Ledger {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLedger(NewStorage(db))
}

func addr(b byte) alethea.Address {
	var a alethea.Address
	a[0] = b
	return a
}

func TestRegister(t *testing.T) {
	ledger := newTestLedger(t)

	v, err := ledger.Register(addr(1), big.NewInt(1000), "alice", "", 1000, minStake)
	require.NoError(t, err)
	assert.Equal(t, uint32(alethea.DefaultReputation), v.Reputation)
	assert.True(t, v.Active)
	assert.Equal(t, uint64(1000), v.RegisteredAt)

	count, err := ledger.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	total, err := ledger.TotalStake()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), total)

	_, err = ledger.Register(addr(1), big.NewInt(1000), "", "", 1000, minStake)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = ledger.Register(addr(2), big.NewInt(50), "", "", 1000, minStake)
	assert.ErrorIs(t, err, ErrBelowMinimumStake)
}

func TestRegisterValidation(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(1000), "bad name!", "", 0, minStake)
	assert.Error(t, err)

	_, err = ledger.Register(addr(1), big.NewInt(1000), "ok", "ftp://nope", 0, minStake)
	assert.Error(t, err)

	_, err = ledger.Register(addr(1), big.NewInt(1000), "node-1", "https://example.com/meta", 0, minStake)
	assert.NoError(t, err)
}

func TestWithdraw(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(1000), "", "", 0, minStake)
	require.NoError(t, err)

	// leaves at least min stake
	v, err := ledger.Withdraw(addr(1), big.NewInt(900), minStake)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), v.Stake)

	// would leave a nonzero remainder below min stake
	_, err = ledger.Withdraw(addr(1), big.NewInt(50), minStake)
	assert.ErrorIs(t, err, ErrBelowMinimumStake)

	// full withdrawal is allowed
	v, err = ledger.Withdraw(addr(1), big.NewInt(100), minStake)
	require.NoError(t, err)
	assert.Zero(t, v.Stake.Sign())
}

func TestWithdrawRespectsLock(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(1000), "", "", 0, minStake)
	require.NoError(t, err)
	require.NoError(t, ledger.Lock(addr(1), big.NewInt(400)))

	_, err = ledger.Withdraw(addr(1), big.NewInt(700), minStake)
	assert.ErrorIs(t, err, ErrInsufficientStake)
}

func TestDeregisterRestoresCounters(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(500), "", "", 0, minStake)
	require.NoError(t, err)

	countBefore, err := ledger.Count()
	require.NoError(t, err)
	totalBefore, err := ledger.TotalStake()
	require.NoError(t, err)

	_, err = ledger.Register(addr(2), big.NewInt(700), "", "", 0, minStake)
	require.NoError(t, err)

	released, err := ledger.Deregister(addr(2))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(700), released)

	count, err := ledger.Count()
	require.NoError(t, err)
	assert.Equal(t, countBefore, count)

	total, err := ledger.TotalStake()
	require.NoError(t, err)
	assert.Equal(t, totalBefore, total)

	_, err = ledger.Get(addr(2))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLockUnlock(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(1000), "", "", 0, minStake)
	require.NoError(t, err)

	require.NoError(t, ledger.Lock(addr(1), big.NewInt(300)))

	v, err := ledger.Get(addr(1))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), v.LockedStake)
	assert.Equal(t, big.NewInt(700), v.Available())
	assert.True(t, v.Stake.Cmp(v.LockedStake) >= 0)

	// cannot lock beyond available
	assert.ErrorIs(t, ledger.Lock(addr(1), big.NewInt(800)), ErrInsufficientStake)
	// cannot unlock beyond locked
	assert.ErrorIs(t, ledger.Unlock(addr(1), big.NewInt(400)), ErrExceedsLocked)

	require.NoError(t, ledger.Unlock(addr(1), big.NewInt(300)))
	v, err = ledger.Get(addr(1))
	require.NoError(t, err)
	assert.Zero(t, v.LockedStake.Sign())
}

func TestSlash(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(1000), "", "", 0, minStake)
	require.NoError(t, err)

	slashed, deactivated, err := ledger.Slash(addr(1), big.NewInt(50), minStake)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), slashed)
	assert.False(t, deactivated)

	v, err := ledger.Get(addr(1))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(950), v.Stake)

	total, err := ledger.TotalStake()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(950), total)
}

func TestSlashDeactivatesBelowMinimum(t *testing.T) {
	ledger := newTestLedger(t)

	min := big.NewInt(1000)
	_, err := ledger.Register(addr(1), big.NewInt(1010), "", "", 0, min)
	require.NoError(t, err)

	// 5% of 1010 leaves 960, under the minimum
	slashed, deactivated, err := ledger.Slash(addr(1), big.NewInt(50), min)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), slashed)
	assert.True(t, deactivated)

	v, err := ledger.Get(addr(1))
	require.NoError(t, err)
	assert.False(t, v.Active)
	assert.Equal(t, big.NewInt(960), v.Stake)
}

func TestSlashCapsAtStake(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(200), "", "", 0, minStake)
	require.NoError(t, err)

	slashed, _, err := ledger.Slash(addr(1), big.NewInt(500), minStake)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), slashed)

	v, err := ledger.Get(addr(1))
	require.NoError(t, err)
	assert.Zero(t, v.Stake.Sign())
	assert.True(t, v.Stake.Cmp(v.LockedStake) >= 0)
}

func TestRecordVoteAndOutcome(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(1000), "", "", 0, minStake)
	require.NoError(t, err)

	require.NoError(t, ledger.RecordVote(addr(1)))
	require.NoError(t, ledger.RecordOutcome(addr(1), true))

	v, err := ledger.Get(addr(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.TotalVotes)
	assert.Equal(t, uint64(1), v.CorrectVotes)
	assert.Equal(t, Score(1, 1), v.Reputation)

	require.NoError(t, ledger.RecordVote(addr(1)))
	require.NoError(t, ledger.RecordOutcome(addr(1), false))

	v, err = ledger.Get(addr(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.TotalVotes)
	assert.Equal(t, uint64(1), v.CorrectVotes)
	assert.Equal(t, Score(1, 2), v.Reputation)
}

func TestSelectByPower(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Register(addr(1), big.NewInt(5000), "", "", 0, minStake)
	require.NoError(t, err)
	_, err = ledger.Register(addr(2), big.NewInt(3000), "", "", 0, minStake)
	require.NoError(t, err)
	_, err = ledger.Register(addr(3), big.NewInt(8000), "", "", 0, minStake)
	require.NoError(t, err)

	selected, err := ledger.SelectByPower(2, 2)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, addr(3), selected[0])
	assert.Equal(t, addr(1), selected[1])

	_, err = ledger.SelectByPower(5, 10)
	assert.ErrorIs(t, err, ErrNotEnoughVoters)
}

func TestSelectByPowerSkipsInactive(t *testing.T) {
	ledger := newTestLedger(t)

	min := big.NewInt(1000)
	_, err := ledger.Register(addr(1), big.NewInt(1010), "", "", 0, min)
	require.NoError(t, err)
	_, err = ledger.Register(addr(2), big.NewInt(2000), "", "", 0, min)
	require.NoError(t, err)

	_, _, err = ledger.Slash(addr(1), big.NewInt(50), min)
	require.NoError(t, err)

	selected, err := ledger.SelectByPower(1, 4)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, addr(2), selected[0])
}
