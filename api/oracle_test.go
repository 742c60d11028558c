// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/lvldb"
	"github.com/alethea-net/oracle/registry"
	"github.com/alethea-net/oracle/voting"
)

const jsonContentType = "application/json; charset=utf-8"

var testAdmin = addr(0xAA)

func addr(b byte) alethea.Address {
	var a alethea.Address
	a[0] = b
	return a
}

// clock is a settable time source for the API under test.
type clock struct {
	now atomic.Uint64
}

func (c *clock) Now() uint64    { return c.now.Load() }
func (c *clock) Set(now uint64) { c.now.Store(now) }

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry, *clock) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg, err := registry.New(db, testAdmin, registry.NopLedger{}, new(registry.MemOutbox))
	require.NoError(t, err)

	c := new(clock)
	c.Set(100)
	srv := httptest.NewServer(New(reg, c.Now, Options{}))
	t.Cleanup(srv.Close)
	return srv, reg, c
}

func httpPost(t *testing.T, url string, body interface{}) (int, []byte) {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, jsonContentType, bytes.NewReader(data))
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func httpGet(t *testing.T, url string) (int, []byte) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func registerVoter(t *testing.T, srv *httptest.Server, a alethea.Address, stake int64) {
	status, body := httpPost(t, srv.URL+"/registry/voters", &RegisterVoterRequest{
		Caller: a,
		Stake:  big.NewInt(stake),
	})
	require.Equal(t, http.StatusOK, status, "register voter: %s", body)
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, body := httpGet(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"healthy": true}`, string(body))
}

func TestVoterEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	registerVoter(t, srv, addr(1), 1000)

	status, body := httpGet(t, srv.URL+"/registry/voters/"+addr(1).String())
	require.Equal(t, http.StatusOK, status)
	var v Voter
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, addr(1), v.Address)
	assert.Equal(t, big.NewInt(1000), v.Stake)
	assert.Equal(t, uint32(50), v.Reputation)
	assert.Equal(t, "Intermediate", v.Tier)
	assert.True(t, v.Active)

	status, _ = httpGet(t, srv.URL+"/registry/voters/"+addr(2).String())
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = httpGet(t, srv.URL+"/registry/voters/garbage")
	assert.Equal(t, http.StatusBadRequest, status)

	// duplicate registration is a client error
	status, _ = httpPost(t, srv.URL+"/registry/voters", &RegisterVoterRequest{
		Caller: addr(1), Stake: big.NewInt(1000),
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStakeEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	registerVoter(t, srv, addr(1), 1000)

	status, body := httpPost(t, srv.URL+"/registry/voters/stake", &StakeRequest{
		Caller: addr(1), Amount: big.NewInt(500),
	})
	require.Equal(t, http.StatusOK, status)
	var v Voter
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, big.NewInt(1500), v.Stake)

	status, body = httpPost(t, srv.URL+"/registry/voters/withdraw", &StakeRequest{
		Caller: addr(1), Amount: big.NewInt(400),
	})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, big.NewInt(1100), v.Stake)

	// below-minimum remainder is rejected
	status, _ = httpPost(t, srv.URL+"/registry/voters/withdraw", &StakeRequest{
		Caller: addr(1), Amount: big.NewInt(1050),
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestQueryVotingFlow(t *testing.T) {
	srv, _, c := newTestServer(t)
	voters := []alethea.Address{addr(1), addr(2), addr(3)}
	for _, a := range voters {
		registerVoter(t, srv, a, 1000)
	}

	c.Set(1000)
	status, body := httpPost(t, srv.URL+"/registry/queries", &CreateQueryRequest{
		Caller:       addr(9),
		Description:  "Did event X happen?",
		Outcomes:     []string{"Yes", "No"},
		RewardAmount: big.NewInt(1000),
	})
	require.Equal(t, http.StatusOK, status, "create query: %s", body)
	var q Query
	require.NoError(t, json.Unmarshal(body, &q))
	assert.Equal(t, "majority", q.Strategy)
	assert.Equal(t, "commit", q.Phase)
	assert.Equal(t, "active", q.Status)
	require.Len(t, q.SelectedVoters, 3)

	queryURL := fmt.Sprintf("%s/registry/queries/%d", srv.URL, q.ID)

	c.Set(1500)
	values := []string{"Yes", "Yes", "No"}
	for i, a := range voters {
		status, body = httpPost(t, queryURL+"/commit", &CommitVoteRequest{
			Caller:     a,
			CommitHash: voting.CommitHash(values[i], "salt"),
		})
		require.Equal(t, http.StatusOK, status, "commit %d: %s", i, body)
	}

	c.Set(3000)
	for i, a := range voters {
		status, body = httpPost(t, queryURL+"/reveal", &RevealVoteRequest{
			Caller: a,
			Value:  values[i],
			Salt:   "salt",
		})
		require.Equal(t, http.StatusOK, status, "reveal %d: %s", i, body)
	}

	status, body = httpGet(t, queryURL+"/votes")
	require.Equal(t, http.StatusOK, status)
	var votes []*Vote
	require.NoError(t, json.Unmarshal(body, &votes))
	assert.Len(t, votes, 3)

	// resolving before the deadline is rejected
	status, _ = httpPost(t, queryURL+"/resolve", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	c.Set(4700)
	status, body = httpPost(t, queryURL+"/resolve", nil)
	require.Equal(t, http.StatusOK, status, "resolve: %s", body)
	require.NoError(t, json.Unmarshal(body, &q))
	assert.Equal(t, "resolved", q.Status)
	assert.Equal(t, "Yes", q.Result)

	status, body = httpPost(t, srv.URL+"/registry/rewards/claim", &CallerRequest{Caller: addr(1)})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"claimed": 495}`, string(body))

	status, body = httpGet(t, srv.URL+"/registry/stats")
	require.Equal(t, http.StatusOK, status)
	var stats registry.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, uint64(1), stats.QueriesCreated)
	assert.Equal(t, uint64(1), stats.QueriesResolved)
	assert.Equal(t, uint64(3), stats.VotesSubmitted)
}

func TestCreateQueryRejectsUnknownStrategy(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, _ := httpPost(t, srv.URL+"/registry/queries", &CreateQueryRequest{
		Caller:       addr(9),
		Description:  "bad strategy",
		Outcomes:     []string{"Yes", "No"},
		Strategy:     "coin-flip",
		RewardAmount: big.NewInt(100),
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUnknownQueryIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, _ := httpGet(t, srv.URL+"/registry/queries/42")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = httpGet(t, srv.URL+"/registry/queries/42/votes")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, _ := httpPost(t, srv.URL+"/registry/pause", &CallerRequest{Caller: addr(1)})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = httpPost(t, srv.URL+"/registry/pause", &CallerRequest{Caller: testAdmin})
	require.Equal(t, http.StatusOK, status)

	// every mutating endpoint reports unavailable while paused
	status, _ = httpPost(t, srv.URL+"/registry/voters", &RegisterVoterRequest{
		Caller: addr(1), Stake: big.NewInt(1000),
	})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = httpPost(t, srv.URL+"/registry/unpause", &CallerRequest{Caller: testAdmin})
	require.Equal(t, http.StatusOK, status)

	status, _ = httpPost(t, srv.URL+"/registry/voters", &RegisterVoterRequest{
		Caller: addr(1), Stake: big.NewInt(1000),
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestParamsEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, body := httpGet(t, srv.URL+"/registry/params")
	require.Equal(t, http.StatusOK, status)
	var params Parameters
	require.NoError(t, json.Unmarshal(body, &params))
	assert.Equal(t, big.NewInt(alethea.InitialMinStake), params.MinStake)

	status, _ = httpPost(t, srv.URL+"/registry/params", &UpdateParametersRequest{
		Caller:          testAdmin,
		MinStake:        big.NewInt(250),
		MinVotesDefault: 5,
		QueryDuration:   7200,
		RewardBps:       1000,
		SlashBps:        500,
		ProtocolFeeBps:  100,
	})
	require.Equal(t, http.StatusOK, status)

	status, body = httpGet(t, srv.URL+"/registry/params")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &params))
	assert.Equal(t, big.NewInt(250), params.MinStake)
	assert.Equal(t, uint32(5), params.MinVotesDefault)
}

func TestUnknownFieldRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, err := http.Post(srv.URL+"/registry/voters", jsonContentType,
		bytes.NewReader([]byte(`{"caller": "`+addr(1).String()+`", "stake": 1000, "bogus": 1}`)))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
