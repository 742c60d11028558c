// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/api/restutil"
	"github.com/alethea-net/oracle/query"
	"github.com/alethea-net/oracle/registry"
	"github.com/alethea-net/oracle/voter"
)

// Oracle exposes the registry operations and views over HTTP. It only
// decodes requests and encodes responses; all business rules live in the
// registry.
type Oracle struct {
	reg *registry.Registry
	now func() uint64
}

// NewOracle creates the HTTP facade. A nil now falls back to wall clock time.
func NewOracle(reg *registry.Registry, now func() uint64) *Oracle {
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Oracle{reg: reg, now: now}
}

func (o *Oracle) handleRegisterVoter(w http.ResponseWriter, r *http.Request) error {
	var req RegisterVoterRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	v, err := o.reg.RegisterVoter(req.Caller, req.Stake, req.Name, req.MetadataURL, o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertVoter(v))
}

func (o *Oracle) handleRegisterVoterFor(w http.ResponseWriter, r *http.Request) error {
	var req RegisterVoterForRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	v, err := o.reg.RegisterVoterFor(req.Caller, req.Voter, req.Stake, req.Name, req.MetadataURL, o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertVoter(v))
}

func (o *Oracle) handleUpdateStake(w http.ResponseWriter, r *http.Request) error {
	var req StakeRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	v, err := o.reg.UpdateStake(req.Caller, req.Amount)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertVoter(v))
}

func (o *Oracle) handleWithdrawStake(w http.ResponseWriter, r *http.Request) error {
	var req StakeRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	v, err := o.reg.WithdrawStake(req.Caller, req.Amount)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertVoter(v))
}

func (o *Oracle) handleDeregisterVoter(w http.ResponseWriter, r *http.Request) error {
	var req CallerRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	stake, err := o.reg.DeregisterVoter(req.Caller, o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"released": stake})
}

func (o *Oracle) handleCreateQuery(w http.ResponseWriter, r *http.Request) error {
	var req CreateQueryRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	strategy, err := query.ParseStrategy(req.Strategy)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "strategy"))
	}
	p := query.CreateParams{
		Description:  req.Description,
		Outcomes:     req.Outcomes,
		Strategy:     strategy,
		MinVotes:     req.MinVotes,
		RewardAmount: req.RewardAmount,
		Deadline:     req.Deadline,
		Duration:     req.Duration,
	}
	var q *query.Query
	if req.CallbackTarget != nil {
		q, err = o.reg.CreateQueryWithCallback(req.Caller, p, *req.CallbackTarget, req.CallbackData, o.now())
	} else {
		q, err = o.reg.CreateQuery(req.Caller, p, o.now())
	}
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertQuery(q))
}

func (o *Oracle) handleCommitVote(w http.ResponseWriter, r *http.Request) error {
	id, err := parseQueryID(r)
	if err != nil {
		return err
	}
	var req CommitVoteRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := o.reg.CommitVote(req.Caller, id, req.CommitHash, o.now()); err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"committed": true})
}

func (o *Oracle) handleRevealVote(w http.ResponseWriter, r *http.Request) error {
	id, err := parseQueryID(r)
	if err != nil {
		return err
	}
	var req RevealVoteRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	var confidence uint8
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if err := o.reg.RevealVote(req.Caller, id, req.Value, req.Salt, confidence, req.Confidence != nil, o.now()); err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"revealed": true})
}

func (o *Oracle) handleSubmitVote(w http.ResponseWriter, r *http.Request) error {
	id, err := parseQueryID(r)
	if err != nil {
		return err
	}
	var req SubmitVoteRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	var confidence uint8
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if err := o.reg.SubmitVote(req.Caller, id, req.Value, confidence, req.Confidence != nil, o.now()); err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"submitted": true})
}

func (o *Oracle) handleResolveQuery(w http.ResponseWriter, r *http.Request) error {
	id, err := parseQueryID(r)
	if err != nil {
		return err
	}
	q, err := o.reg.ResolveQuery(id, o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertQuery(q))
}

func (o *Oracle) handleExpireQuery(w http.ResponseWriter, r *http.Request) error {
	id, err := parseQueryID(r)
	if err != nil {
		return err
	}
	var req CallerRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	q, err := o.reg.ExpireQuery(req.Caller, id, o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertQuery(q))
}

func (o *Oracle) handleCancelQuery(w http.ResponseWriter, r *http.Request) error {
	id, err := parseQueryID(r)
	if err != nil {
		return err
	}
	var req CallerRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	q, err := o.reg.CancelQuery(req.Caller, id, o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertQuery(q))
}

func (o *Oracle) handleClaimRewards(w http.ResponseWriter, r *http.Request) error {
	var req CallerRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	claimed, err := o.reg.ClaimRewards(req.Caller)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"claimed": claimed})
}

func (o *Oracle) handleUpdateParameters(w http.ResponseWriter, r *http.Request) error {
	var req UpdateParametersRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	params := &registry.ProtocolParameters{
		MinStake:        req.MinStake,
		MinVotesDefault: req.MinVotesDefault,
		QueryDuration:   req.QueryDuration,
		RewardBps:       req.RewardBps,
		SlashBps:        req.SlashBps,
		ProtocolFeeBps:  req.ProtocolFeeBps,
	}
	if err := o.reg.UpdateParameters(req.Caller, params); err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertParams(params))
}

func (o *Oracle) handlePause(w http.ResponseWriter, r *http.Request) error {
	var req CallerRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := o.reg.PauseProtocol(req.Caller); err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"paused": true})
}

func (o *Oracle) handleUnpause(w http.ResponseWriter, r *http.Request) error {
	var req CallerRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := o.reg.UnpauseProtocol(req.Caller); err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"paused": false})
}

func (o *Oracle) handleCheckExpired(w http.ResponseWriter, _ *http.Request) error {
	expired, err := o.reg.CheckExpiredQueries(o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"expired": expired})
}

func (o *Oracle) handleAutoResolve(w http.ResponseWriter, _ *http.Request) error {
	settled, err := o.reg.AutoResolveQueries(o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, restutil.M{"settled": settled})
}

func (o *Oracle) handleGetVoter(w http.ResponseWriter, r *http.Request) error {
	addr, err := alethea.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	v, err := o.reg.Voter(*addr, o.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertVoter(v))
}

func (o *Oracle) handleGetQuery(w http.ResponseWriter, r *http.Request) error {
	id, err := parseQueryID(r)
	if err != nil {
		return err
	}
	q, err := o.reg.Query(id)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertQuery(q))
}

func (o *Oracle) handleGetVotes(w http.ResponseWriter, r *http.Request) error {
	id, err := parseQueryID(r)
	if err != nil {
		return err
	}
	votes, err := o.reg.Votes(id)
	if err != nil {
		return convertError(err)
	}
	out := make([]*Vote, 0, len(votes))
	for _, v := range votes {
		out = append(out, convertVote(v))
	}
	return restutil.WriteJSON(w, out)
}

func (o *Oracle) handleGetStats(w http.ResponseWriter, _ *http.Request) error {
	stats, err := o.reg.Stats()
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, stats)
}

func (o *Oracle) handleGetParams(w http.ResponseWriter, _ *http.Request) error {
	params, err := o.reg.Params()
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertParams(params))
}

func parseQueryID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	return id, nil
}

// convertError maps registry errors onto http statuses.
func convertError(err error) error {
	switch {
	case errors.Is(err, voter.ErrNotFound), errors.Is(err, query.ErrNotFound):
		return restutil.NotFound(err)
	case errors.Is(err, registry.ErrNotAdmin):
		return restutil.Forbidden(err)
	case errors.Is(err, registry.ErrPaused):
		return restutil.HTTPError(err, http.StatusServiceUnavailable)
	default:
		return restutil.BadRequest(err)
	}
}

// Mount attaches every operation and view below pathPrefix.
func (o *Oracle) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/voters").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleRegisterVoter))
	sub.Path("/voters/register-for").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleRegisterVoterFor))
	sub.Path("/voters/stake").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleUpdateStake))
	sub.Path("/voters/withdraw").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleWithdrawStake))
	sub.Path("/voters/deregister").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleDeregisterVoter))
	sub.Path("/voters/{address}").Methods(http.MethodGet).HandlerFunc(restutil.WrapHandlerFunc(o.handleGetVoter))

	sub.Path("/queries").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleCreateQuery))
	sub.Path("/queries/{id}").Methods(http.MethodGet).HandlerFunc(restutil.WrapHandlerFunc(o.handleGetQuery))
	sub.Path("/queries/{id}/votes").Methods(http.MethodGet).HandlerFunc(restutil.WrapHandlerFunc(o.handleGetVotes))
	sub.Path("/queries/{id}/commit").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleCommitVote))
	sub.Path("/queries/{id}/reveal").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleRevealVote))
	sub.Path("/queries/{id}/vote").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleSubmitVote))
	sub.Path("/queries/{id}/resolve").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleResolveQuery))
	sub.Path("/queries/{id}/expire").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleExpireQuery))
	sub.Path("/queries/{id}/cancel").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleCancelQuery))

	sub.Path("/rewards/claim").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleClaimRewards))
	sub.Path("/params").Methods(http.MethodGet).HandlerFunc(restutil.WrapHandlerFunc(o.handleGetParams))
	sub.Path("/params").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleUpdateParameters))
	sub.Path("/pause").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handlePause))
	sub.Path("/unpause").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleUnpause))
	sub.Path("/maintenance/expired").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleCheckExpired))
	sub.Path("/maintenance/resolve").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(o.handleAutoResolve))
	sub.Path("/stats").Methods(http.MethodGet).HandlerFunc(restutil.WrapHandlerFunc(o.handleGetStats))
}
