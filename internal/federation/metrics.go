package federation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfn_replication_rounds_total",
		Help: "Replication rounds by peer and outcome.",
	}, []string{"peer", "status"})

	recordsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfn_replication_records_applied_total",
		Help: "Incoming records merged into the local graph, by peer.",
	}, []string{"peer"})

	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfn_replication_conflicts_total",
		Help: "Same-version conflicts resolved during replication, by peer.",
	}, []string{"peer"})
)
