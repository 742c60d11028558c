// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package registry

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/lvldb"
	"github.com/alethea-net/oracle/query"
	"github.com/alethea-net/oracle/voter"
	"github.com/alethea-net/oracle/voting"
)

var testAdmin = addr(0xAA)

func addr(b byte) alethea.Address {
	var a alethea.Address
	a[0] = b
	return a
}

func newTestRegistry(t *testing.T) (*Registry, *MemOutbox) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	outbox := new(MemOutbox)
	reg, err := New(db, testAdmin, NopLedger{}, outbox)
	require.NoError(t, err)
	return reg, outbox
}

// registerPanel registers three voters with 1000 stake each at t=100.
func registerPanel(t *testing.T, reg *Registry) []alethea.Address {
	voters := []alethea.Address{addr(1), addr(2), addr(3)}
	for i, a := range voters {
		_, err := reg.RegisterVoter(a, big.NewInt(1000), "", "", 100)
		require.NoError(t, err, "voter %d", i)
	}
	return voters
}

func createQuery(t *testing.T, reg *Registry, creator alethea.Address, now uint64) *query.Query {
	q, err := reg.CreateQuery(creator, query.CreateParams{
		Description:  "Did event X happen?",
		Outcomes:     []string{"Yes", "No"},
		RewardAmount: big.NewInt(1000),
	}, now)
	require.NoError(t, err)
	return q
}

// commitBallots seals one ballot per voter at the same timestamp. Reveals
// happen later via revealBallots so the query stays in the commit phase for
// every voter.
func commitBallots(t *testing.T, reg *Registry, q *query.Query, voters []alethea.Address, values []string, at uint64) {
	for i, a := range voters {
		salt := "salt-" + a.String()
		require.NoError(t, reg.CommitVote(a, q.ID, voting.CommitHash(values[i], salt), at), "commit %d", i)
	}
}

func revealBallots(t *testing.T, reg *Registry, q *query.Query, voters []alethea.Address, values []string, at uint64) {
	for i, a := range voters {
		salt := "salt-" + a.String()
		require.NoError(t, reg.RevealVote(a, q.ID, values[i], salt, 0, false, at), "reveal %d", i)
	}
}

func TestResolveEndToEnd(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	assert.Equal(t, uint64(0), q.ID)
	assert.Equal(t, uint32(3), q.MinVotes)
	assert.Equal(t, uint64(2800), q.CommitPhaseEnd)
	assert.Equal(t, uint64(4600), q.RevealPhaseEnd)

	values := []string{"Yes", "Yes", "No"}
	commitBallots(t, reg, q, voters, values, 1500)
	revealBallots(t, reg, q, voters, values, 3000)

	// the stake lock covers the whole voting window
	v, err := reg.Voter(voters[0], 3000)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), v.LockedStake)

	resolved, err := reg.ResolveQuery(q.ID, 4700)
	require.NoError(t, err)
	assert.Equal(t, query.StatusResolved, resolved.Status)
	assert.Equal(t, "Yes", resolved.Result)

	// winners keep their stake, earn reputation and split the capped reward
	for _, a := range voters[:2] {
		v, err := reg.Voter(a, 4700)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1000), v.Stake)
		assert.Zero(t, v.LockedStake.Sign())
		assert.Equal(t, uint32(100), v.Reputation)

		pending, err := reg.rewards.Pending(a)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(495), pending)
	}

	// the loser is slashed 5% and loses reputation
	loser, err := reg.Voter(voters[2], 4700)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(950), loser.Stake)
	assert.Zero(t, loser.LockedStake.Sign())
	assert.Equal(t, uint32(0), loser.Reputation)
	assert.True(t, loser.Active)

	stats, err := reg.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.QueriesCreated)
	assert.Equal(t, uint64(1), stats.QueriesResolved)
	assert.Equal(t, uint64(3), stats.VotesSubmitted)
	assert.Equal(t, uint64(3), stats.VoterCount)
	assert.Equal(t, big.NewInt(2950), stats.TotalStake)
	// 10 protocol fee plus 50 slashed
	assert.Equal(t, big.NewInt(60), stats.Treasury)
	assert.Zero(t, stats.RewardPool.Sign())
}

func TestResolveExpiresBelowMinVotes(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	commitBallots(t, reg, q, voters[:2], []string{"Yes", "Yes"}, 1500)
	revealBallots(t, reg, q, voters[:2], []string{"Yes", "Yes"}, 3000)

	expired, err := reg.ResolveQuery(q.ID, 4700)
	require.NoError(t, err)
	assert.Equal(t, query.StatusExpired, expired.Status)
	assert.Empty(t, expired.Result)

	// no settlement happened, only the locks were released
	for _, a := range voters[:2] {
		v, err := reg.Voter(a, 4700)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1000), v.Stake)
		assert.Zero(t, v.LockedStake.Sign())

		pending, err := reg.rewards.Pending(a)
		require.NoError(t, err)
		assert.Zero(t, pending.Sign())
	}
}

func TestResolveBeforeDeadline(t *testing.T) {
	reg, _ := newTestRegistry(t)
	registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	_, err := reg.ResolveQuery(q.ID, 4000)
	assert.ErrorIs(t, err, ErrDeadlineNotDue)
}

func TestCommitAfterWindow(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	hash := voting.CommitHash("Yes", "s")
	err := reg.CommitVote(voters[0], q.ID, hash, 2900)
	assert.ErrorIs(t, err, ErrCommitPhaseOver)

	// the phase advance was persisted
	stored, err := reg.Query(q.ID)
	require.NoError(t, err)
	assert.Equal(t, query.PhaseReveal, stored.Phase)
}

func TestRevealRejectsHashMismatch(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	require.NoError(t, reg.CommitVote(voters[0], q.ID, voting.CommitHash("Yes", "good"), 1500))

	err := reg.RevealVote(voters[0], q.ID, "Yes", "wrong", 0, false, 3000)
	assert.ErrorIs(t, err, voting.ErrHashMismatch)

	err = reg.RevealVote(voters[0], q.ID, "No", "good", 0, false, 3000)
	assert.ErrorIs(t, err, voting.ErrHashMismatch)

	require.NoError(t, reg.RevealVote(voters[0], q.ID, "Yes", "good", 0, false, 3000))
	err = reg.RevealVote(voters[0], q.ID, "Yes", "good", 0, false, 3000)
	assert.ErrorIs(t, err, voting.ErrAlreadyRevealed)
}

func TestRevealPhaseBounds(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	require.NoError(t, reg.CommitVote(voters[0], q.ID, voting.CommitHash("Yes", "s"), 1500))

	err := reg.RevealVote(voters[0], q.ID, "Yes", "s", 0, false, 2000)
	assert.ErrorIs(t, err, ErrWrongPhase)

	// a first reveal landing after the reveal window skips the reveal phase
	// entirely and must still be rejected
	err = reg.RevealVote(voters[0], q.ID, "Yes", "s", 0, false, 4700)
	assert.ErrorIs(t, err, ErrRevealPhaseOver)

	stored, err := reg.Query(q.ID)
	require.NoError(t, err)
	assert.Equal(t, query.PhaseCompleted, stored.Phase)

	votes, err := reg.Votes(q.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestSubmitVoteDirect(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	require.NoError(t, reg.SubmitVote(voters[0], q.ID, "Yes", 80, true, 1500))

	err := reg.SubmitVote(voters[0], q.ID, "Yes", 80, true, 1600)
	assert.ErrorIs(t, err, voting.ErrAlreadyVoted)

	err = reg.SubmitVote(voters[1], q.ID, "Maybe", 0, false, 1500)
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	err = reg.SubmitVote(voters[1], q.ID, "Yes", 101, true, 1500)
	assert.ErrorIs(t, err, ErrBadConfidence)

	err = reg.SubmitVote(voters[1], q.ID, "Yes", 0, false, 4700)
	assert.ErrorIs(t, err, ErrDeadlinePassed)

	// a committed voter cannot also vote directly
	require.NoError(t, reg.CommitVote(voters[2], q.ID, voting.CommitHash("No", "s"), 1500))
	err = reg.SubmitVote(voters[2], q.ID, "No", 0, false, 1600)
	assert.ErrorIs(t, err, voting.ErrAlreadyCommitted)

	votes, err := reg.Votes(q.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "Yes", votes[0].Value)
	assert.True(t, votes[0].HasConfidence)
	assert.Equal(t, uint8(80), votes[0].Confidence)
}

func TestNotSelectedRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	for i := byte(1); i <= 3; i++ {
		stake := big.NewInt(int64(i) * 1000)
		_, err := reg.RegisterVoter(addr(i), stake, "", "", 100)
		require.NoError(t, err)
	}

	// min votes 1 caps the panel at the two highest-powered voters
	q, err := reg.CreateQuery(addr(9), query.CreateParams{
		Description:  "small panel",
		Outcomes:     []string{"Yes", "No"},
		MinVotes:     1,
		RewardAmount: big.NewInt(100),
	}, 1000)
	require.NoError(t, err)
	require.Len(t, q.SelectedVoters, 2)

	err = reg.CommitVote(addr(1), q.ID, voting.CommitHash("Yes", "s"), 1500)
	assert.ErrorIs(t, err, ErrNotSelected)
	require.NoError(t, reg.CommitVote(addr(3), q.ID, voting.CommitHash("Yes", "s"), 1500))
}

func TestWithdrawBlockedByActiveVotes(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	require.NoError(t, reg.CommitVote(voters[0], q.ID, voting.CommitHash("Yes", "s"), 1500))

	_, err := reg.WithdrawStake(voters[0], big.NewInt(100))
	assert.ErrorIs(t, err, ErrActiveVotes)

	// an uncommitted voter can withdraw freely
	_, err = reg.WithdrawStake(voters[1], big.NewInt(100))
	assert.NoError(t, err)
}

func TestDeregisterBlocked(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	values := []string{"Yes", "Yes", "No"}
	commitBallots(t, reg, q, voters, values, 1500)
	revealBallots(t, reg, q, voters, values, 3000)

	// the revealed ballot still counts as active until the query settles
	_, err := reg.DeregisterVoter(voters[0], 3100)
	assert.ErrorIs(t, err, ErrActiveVotes)

	_, err = reg.ResolveQuery(q.ID, 4700)
	require.NoError(t, err)

	_, err = reg.DeregisterVoter(voters[0], 4800)
	assert.ErrorIs(t, err, ErrPendingRewards)

	claimed, err := reg.ClaimRewards(voters[0])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(495), claimed)

	stake, err := reg.DeregisterVoter(voters[0], 4900)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), stake)

	_, err = reg.Voter(voters[0], 4900)
	assert.ErrorIs(t, err, voter.ErrNotFound)
}

func TestClaimRewards(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	_, err := reg.ClaimRewards(voters[0])
	assert.ErrorIs(t, err, ErrNoPendingRewards)

	q := createQuery(t, reg, addr(9), 1000)
	values := []string{"Yes", "Yes", "No"}
	commitBallots(t, reg, q, voters, values, 1500)
	revealBallots(t, reg, q, voters, values, 3000)
	_, err = reg.ResolveQuery(q.ID, 4700)
	require.NoError(t, err)

	claimed, err := reg.ClaimRewards(voters[0])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(495), claimed)

	_, err = reg.ClaimRewards(voters[0])
	assert.ErrorIs(t, err, ErrNoPendingRewards)

	stats, err := reg.Stats()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(495), stats.TotalRewardsPaid)
}

func TestLockAmountPersistsAcrossParameterChange(t *testing.T) {
	reg, _ := newTestRegistry(t)
	registerPanel(t, reg)
	// a fourth voter below 10x the minimum locks a tenth of its stake
	_, err := reg.RegisterVoter(addr(4), big.NewInt(500), "", "", 100)
	require.NoError(t, err)

	q := createQuery(t, reg, addr(9), 1000)
	require.True(t, q.IsSelected(addr(4)))
	require.NoError(t, reg.CommitVote(addr(4), q.ID, voting.CommitHash("Yes", "s"), 1500))

	v, err := reg.Voter(addr(4), 1500)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50), v.LockedStake)

	// raising the minimum stake must not change what gets unlocked
	params, err := reg.Params()
	require.NoError(t, err)
	params.MinStake = big.NewInt(400)
	require.NoError(t, reg.UpdateParameters(testAdmin, params))

	_, err = reg.CancelQuery(testAdmin, q.ID, 2000)
	require.NoError(t, err)

	v, err = reg.Voter(addr(4), 2000)
	require.NoError(t, err)
	assert.Zero(t, v.LockedStake.Sign())
	assert.Equal(t, big.NewInt(500), v.Stake)
}

func TestCancelQuery(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	require.NoError(t, reg.CommitVote(voters[0], q.ID, voting.CommitHash("Yes", "s"), 1500))

	_, err := reg.CancelQuery(voters[0], q.ID, 2000)
	assert.ErrorIs(t, err, ErrNotAdmin)

	cancelled, err := reg.CancelQuery(testAdmin, q.ID, 2000)
	require.NoError(t, err)
	assert.Equal(t, query.StatusCancelled, cancelled.Status)

	_, err = reg.CancelQuery(testAdmin, q.ID, 2100)
	assert.ErrorIs(t, err, query.ErrNotActive)

	v, err := reg.Voter(voters[0], 2000)
	require.NoError(t, err)
	assert.Zero(t, v.LockedStake.Sign())
}

func TestExpireQuery(t *testing.T) {
	reg, _ := newTestRegistry(t)
	registerPanel(t, reg)

	q := createQuery(t, reg, addr(9), 1000)
	_, err := reg.ExpireQuery(testAdmin, q.ID, 2000)
	assert.ErrorIs(t, err, ErrDeadlineNotDue)

	expired, err := reg.ExpireQuery(testAdmin, q.ID, 4700)
	require.NoError(t, err)
	assert.Equal(t, query.StatusExpired, expired.Status)
}

func TestPauseGating(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	err := reg.PauseProtocol(voters[0])
	assert.ErrorIs(t, err, ErrNotAdmin)

	err = reg.UnpauseProtocol(testAdmin)
	assert.ErrorIs(t, err, ErrNotPaused)

	require.NoError(t, reg.PauseProtocol(testAdmin))
	err = reg.PauseProtocol(testAdmin)
	assert.ErrorIs(t, err, ErrPaused)

	_, err = reg.RegisterVoter(addr(4), big.NewInt(1000), "", "", 100)
	assert.ErrorIs(t, err, ErrPaused)
	_, err = reg.CreateQuery(voters[0], query.CreateParams{}, 1000)
	assert.ErrorIs(t, err, ErrPaused)
	_, err = reg.WithdrawStake(voters[0], big.NewInt(1))
	assert.ErrorIs(t, err, ErrPaused)
	_, err = reg.ResolveQuery(0, 9999)
	assert.ErrorIs(t, err, ErrPaused)
	err = reg.UpdateParameters(testAdmin, DefaultParameters())
	assert.ErrorIs(t, err, ErrPaused)

	// unpausing is the one admin action allowed while paused
	require.NoError(t, reg.UnpauseProtocol(testAdmin))
	_, err = reg.RegisterVoter(addr(4), big.NewInt(1000), "", "", 100)
	assert.NoError(t, err)
}

func TestUpdateParameters(t *testing.T) {
	reg, _ := newTestRegistry(t)
	registerPanel(t, reg)

	err := reg.UpdateParameters(addr(1), DefaultParameters())
	assert.ErrorIs(t, err, ErrNotAdmin)

	bad := DefaultParameters()
	bad.SlashBps = alethea.MaxSlashBps + 1
	assert.Error(t, reg.UpdateParameters(testAdmin, bad))

	// each share within its own bound, but together past 100%
	over := DefaultParameters()
	over.RewardBps = alethea.FullBasisPoints
	over.SlashBps = alethea.MaxSlashBps
	over.ProtocolFeeBps = alethea.MaxProtocolFee
	assert.Error(t, reg.UpdateParameters(testAdmin, over))

	next := DefaultParameters()
	next.MinStake = big.NewInt(250)
	next.QueryDuration = 7200
	require.NoError(t, reg.UpdateParameters(testAdmin, next))

	got, err := reg.Params()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(250), got.MinStake)
	assert.Equal(t, uint64(7200), got.QueryDuration)
}

func TestRegisterVoterFor(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.RegisterVoterFor(addr(1), addr(5).String(), big.NewInt(1000), "", "", 100)
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = reg.RegisterVoterFor(testAdmin, "not-an-address", big.NewInt(1000), "", "", 100)
	assert.Error(t, err)

	v, err := reg.RegisterVoterFor(testAdmin, addr(5).String(), big.NewInt(1000), "", "", 100)
	require.NoError(t, err)
	assert.Equal(t, addr(5), v.Address)
}

func TestCheckExpiredQueries(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	stale := createQuery(t, reg, addr(9), 1000)
	voted := createQuery(t, reg, addr(9), 1000)
	values := []string{"Yes", "Yes", "Yes"}
	commitBallots(t, reg, voted, voters, values, 1500)
	revealBallots(t, reg, voted, voters, values, 3000)
	fresh := createQuery(t, reg, addr(9), 4000)

	expired, err := reg.CheckExpiredQueries(4700)
	require.NoError(t, err)
	assert.Equal(t, []uint64{stale.ID}, expired)

	q, err := reg.Query(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, query.StatusExpired, q.Status)

	// the fully-voted and the still-open query were left alone
	q, err = reg.Query(voted.ID)
	require.NoError(t, err)
	assert.Equal(t, query.StatusActive, q.Status)
	q, err = reg.Query(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, query.StatusActive, q.Status)
}

func TestAutoResolveQueries(t *testing.T) {
	reg, _ := newTestRegistry(t)
	voters := registerPanel(t, reg)

	ready := createQuery(t, reg, addr(9), 1000)
	values := []string{"Yes", "Yes", "No"}
	commitBallots(t, reg, ready, voters, values, 1500)
	revealBallots(t, reg, ready, voters, values, 3000)
	fresh := createQuery(t, reg, addr(9), 4000)

	settled, err := reg.AutoResolveQueries(4700)
	require.NoError(t, err)
	assert.Equal(t, []uint64{ready.ID}, settled)

	q, err := reg.Query(ready.ID)
	require.NoError(t, err)
	assert.Equal(t, query.StatusResolved, q.Status)
	assert.Equal(t, "Yes", q.Result)

	q, err = reg.Query(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, query.StatusActive, q.Status)
}

func TestMarketQueryCallback(t *testing.T) {
	reg, outbox := newTestRegistry(t)
	voters := registerPanel(t, reg)

	target := addr(0xCB)
	q, err := reg.HandleCreateQueryFromMarket(7, "Who wins?", []string{"Home", "Away"},
		9000, target, []byte{1, 2}, 1000)
	require.NoError(t, err)
	assert.Equal(t, "Market #7: Who wins?", q.Description)
	assert.True(t, q.HasCallback)
	assert.Zero(t, q.RewardAmount.Sign())
	assert.Equal(t, uint64(4600), q.CommitPhaseEnd)
	assert.Equal(t, uint64(8200), q.RevealPhaseEnd)

	values := []string{"Home", "Home", "Away"}
	commitBallots(t, reg, q, voters, values, 2000)
	revealBallots(t, reg, q, voters, values, 5000)

	_, err = reg.ResolveQuery(q.ID, 8300)
	require.NoError(t, err)

	callbacks := outbox.Drain()
	require.Len(t, callbacks, 1)
	assert.Equal(t, q.ID, callbacks[0].QueryID)
	assert.Equal(t, target, callbacks[0].Target)
	assert.Equal(t, "Home", callbacks[0].Outcome)
	assert.Equal(t, []byte{1, 2}, callbacks[0].Data)
	assert.Empty(t, outbox.Drain())
}

func TestHandleStakeDeposited(t *testing.T) {
	reg, _ := newTestRegistry(t)
	registerPanel(t, reg)

	reg.HandleStakeDeposited(addr(1), big.NewInt(500))
	v, err := reg.Voter(addr(1), 200)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), v.Stake)

	// deposits for unknown voters are dropped, not applied
	reg.HandleStakeDeposited(addr(0xEE), big.NewInt(500))
	_, err = reg.Voter(addr(0xEE), 200)
	assert.ErrorIs(t, err, voter.ErrNotFound)
}

func TestAdminPersists(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = New(db, testAdmin, NopLedger{}, new(MemOutbox))
	require.NoError(t, err)

	// a restart with a zero admin keeps the persisted one
	reg, err := New(db, alethea.Address{}, NopLedger{}, new(MemOutbox))
	require.NoError(t, err)
	admin, err := reg.Admin()
	require.NoError(t, err)
	assert.Equal(t, testAdmin, admin)
}
