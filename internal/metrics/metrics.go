// Package metrics defines the Prometheus instruments exported by the cycle
// engine. All collectors are registered on the default registry via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesCreated counts cycle creations, labelled by cycle type.
	CyclesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokercycle_cycles_created_total",
		Help: "Number of transaction cycles opened, by cycle type.",
	}, []string{"type"})

	// CyclesClosed counts cycle closures, labelled by cycle type and the
	// terminal status the cycle closed with.
	CyclesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokercycle_cycles_closed_total",
		Help: "Number of transaction cycles closed, by cycle type and outcome.",
	}, []string{"type", "outcome"})

	// OwnershipTransfers counts completed ownership transfers by purchaser type.
	OwnershipTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokercycle_ownership_transfers_total",
		Help: "Number of completed ownership transfers, by purchaser type.",
	}, []string{"purchaser_type"})

	// ShareValidationFailures counts investor share sets rejected because the
	// percentages did not sum to 100.
	ShareValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brokercycle_share_validation_failures_total",
		Help: "Number of investor share sets rejected by validation.",
	})

	// StatusResyncs counts composite status recomputations, labelled by
	// whether the derived status actually changed.
	StatusResyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokercycle_status_resyncs_total",
		Help: "Number of property status recomputations, by result.",
	}, []string{"result"})

	// MatchesDetected counts internal matches found per sweep.
	MatchesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brokercycle_matches_detected_total",
		Help: "Number of internal sell/purchase matches detected.",
	})

	// MatchSweepDuration observes the wall time of a full match sweep.
	MatchSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brokercycle_match_sweep_duration_seconds",
		Help:    "Duration of a full internal match sweep.",
		Buckets: prometheus.DefBuckets,
	})

	// ArchivedRecords counts records written by the closed-cycle archiver.
	ArchivedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brokercycle_archived_records_total",
		Help: "Number of records written to the archive, by record kind.",
	}, []string{"kind"})
)
