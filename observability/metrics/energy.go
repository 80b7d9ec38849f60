package metrics

import (
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EnergyMetrics tracks ledger operations, penalties and reward distribution.
type EnergyMetrics struct {
	operations      *prometheus.CounterVec
	opLatency       *prometheus.HistogramVec
	invariantFaults *prometheus.CounterVec
	penalties       prometheus.Counter
	feesBurned      prometheus.Counter
	feesForwarded   prometheus.Counter
	weeksComputed   prometheus.Counter
	claimPayouts    *prometheus.CounterVec
	currentEpoch    prometheus.Gauge
}

var (
	energyOnce     sync.Once
	energyRegistry *EnergyMetrics
)

func Energy() *EnergyMetrics {
	energyOnce.Do(func() {
		energyRegistry = &EnergyMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "energy_operations_total",
				Help: "Count of ledger operations by name and outcome class.",
			}, []string{"operation", "outcome"}),
			opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "energy_operation_duration_seconds",
				Help:    "Latency of atomic ledger operations including commit.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			invariantFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "energy_invariant_faults_total",
				Help: "Operations rejected because stored accounting was inconsistent.",
			}, []string{"operation"}),
			penalties: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "energy_lock_penalty_total",
				Help: "Cumulative early-exit penalty charged, in locked token units.",
			}),
			feesBurned: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "energy_lock_fees_burned_total",
				Help: "Cumulative penalty share burned.",
			}),
			feesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "energy_lock_fees_forwarded_total",
				Help: "Cumulative pending fees forwarded to the collector.",
			}),
			weeksComputed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "energy_reward_weeks_computed_total",
				Help: "Weekly reward snapshots computed.",
			}),
			claimPayouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "energy_claim_payout_total",
				Help: "Cumulative reward payouts by token.",
			}, []string{"token"}),
			currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "energy_current_epoch",
				Help: "Epoch observed by the most recent operation.",
			}),
		}
		prometheus.MustRegister(
			energyRegistry.operations,
			energyRegistry.opLatency,
			energyRegistry.invariantFaults,
			energyRegistry.penalties,
			energyRegistry.feesBurned,
			energyRegistry.feesForwarded,
			energyRegistry.weeksComputed,
			energyRegistry.claimPayouts,
			energyRegistry.currentEpoch,
		)
	})
	return energyRegistry
}

func (m *EnergyMetrics) ObserveOperation(operation, outcome string, epoch uint64, d time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.opLatency.WithLabelValues(operation).Observe(d.Seconds())
	m.currentEpoch.Set(float64(epoch))
	if outcome == "invariant" {
		m.invariantFaults.WithLabelValues(operation).Inc()
	}
}

func (m *EnergyMetrics) RecordPenalty(penalty, burned *big.Int) {
	if m == nil {
		return
	}
	m.penalties.Add(bigToFloat(penalty))
	m.feesBurned.Add(bigToFloat(burned))
}

func (m *EnergyMetrics) RecordFeesForwarded(amount *big.Int) {
	if m == nil {
		return
	}
	m.feesForwarded.Add(bigToFloat(amount))
}

func (m *EnergyMetrics) RecordWeekComputed() {
	if m == nil {
		return
	}
	m.weeksComputed.Inc()
}

func (m *EnergyMetrics) RecordClaimPayout(token string, amount *big.Int) {
	if m == nil {
		return
	}
	if token == "" {
		token = "unknown"
	}
	m.claimPayouts.WithLabelValues(token).Add(bigToFloat(amount))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil || value.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}
