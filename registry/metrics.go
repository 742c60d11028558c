// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package registry

import (
	"github.com/alethea-net/oracle/metrics"
)

var (
	metricVotersRegistered = metrics.LazyLoadCounter("registry_voters_registered_count")
	metricVotesSubmitted   = metrics.LazyLoadCounter("registry_votes_submitted_count")
	metricQueriesCreated   = metrics.LazyLoadCounter("registry_queries_created_count")
	metricQueriesResolved  = metrics.LazyLoadCounterVec("registry_queries_settled_count", []string{"outcome"})
	metricStakeSlashed     = metrics.LazyLoadCounter("registry_stake_slashed_total")
)
