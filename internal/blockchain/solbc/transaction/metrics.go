// internal/blockchain/solbc/transaction/metrics.go
package transaction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

type Metrics struct {
	transfersTotal    *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	computeUnitLimit  prometheus.Gauge
	priorityFee       prometheus.Gauge
	durationHistogram prometheus.Histogram
}

// NewMetrics registers the pipeline collectors. If registry is nil,
// prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_transfer_total",
				Help: "Total number of transfer pipeline runs by result",
			},
			[]string{"result"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_transfer_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"stage"},
		),
		computeUnitLimit: factory.NewGauge(prometheus.GaugeOpts{
			Name: "solana_transfer_compute_unit_limit",
			Help: "Compute unit limit attached to the last transaction",
		}),
		priorityFee: factory.NewGauge(prometheus.GaugeOpts{
			Name: "solana_transfer_priority_fee_micro_lamports",
			Help: "Compute unit price attached to the last transaction",
		}),
		durationHistogram: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "solana_transfer_duration_seconds",
			Help:    "Transfer pipeline duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}

func (tm *Metrics) TrackTransaction(start time.Time) {
	tm.durationHistogram.Observe(time.Since(start).Seconds())
}

func (tm *Metrics) TrackStage(stage string, start time.Time) {
	tm.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (tm *Metrics) RecordBudget(units uint32, microLamports uint64) {
	tm.computeUnitLimit.Set(float64(units))
	tm.priorityFee.Set(float64(microLamports))
}

// RecordResult counts a finished run: "confirmed" on success, otherwise the failure kind.
func (tm *Metrics) RecordResult(err error) {
	result := "confirmed"
	if err != nil {
		result = blockchain.KindOf(err).String()
	}
	tm.transfersTotal.WithLabelValues(result).Inc()
}

// RecordDiagnosed counts a preflight rejection that was diagnosed instead of returned.
func (tm *Metrics) RecordDiagnosed() {
	tm.transfersTotal.WithLabelValues(blockchain.FailurePreflight.String()).Inc()
}
