package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry exposes the state of a running simulation as Prometheus metrics.
type Telemetry struct {
	Registry *prometheus.Registry

	epochs        prometheus.Counter
	pathsAccepted prometheus.Counter
	pathsDropped  prometheus.Counter
	attacks       prometheus.Counter
	ntd           prometheus.Gauge
	ntdTarget     prometheus.Gauge
	avgPathLength prometheus.Gauge
	penalty       prometheus.Gauge
	minerFees     prometheus.Counter
	networkPool   prometheus.Counter
	proposals     *prometheus.CounterVec
	selection     *prometheus.GaugeVec
}

func NewTelemetry(reg *prometheus.Registry) *Telemetry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Telemetry{
		Registry: reg,
		epochs: factory.NewCounter(prometheus.CounterOpts{
			Name: "pogsim_epochs_total",
			Help: "Number of epochs processed.",
		}),
		pathsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pogsim_paths_accepted_total",
			Help: "Number of relay paths scored.",
		}),
		pathsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pogsim_paths_dropped_total",
			Help: "Number of degenerate relay paths dropped.",
		}),
		attacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "pogsim_long_range_detections_total",
			Help: "Number of epochs whose average path length exceeded the NTD.",
		}),
		ntd: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pogsim_ntd",
			Help: "Current network traversal diameter.",
		}),
		ntdTarget: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pogsim_ntd_target",
			Help: "NTD target computed at the last epoch.",
		}),
		avgPathLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pogsim_avg_path_length",
			Help: "Average relay path length of the last epoch.",
		}),
		penalty: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pogsim_penalty_factor",
			Help: "Penalty factor applied to the last proposer.",
		}),
		minerFees: factory.NewCounter(prometheus.CounterOpts{
			Name: "pogsim_miner_fee_income_units_total",
			Help: "Fee income paid to proposers, in base units.",
		}),
		networkPool: factory.NewCounter(prometheus.CounterOpts{
			Name: "pogsim_network_pool_units_total",
			Help: "Fees paid into the network pool, in base units.",
		}),
		proposals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pogsim_proposals_total",
			Help: "Number of epochs each node was selected as proposer.",
		}, []string{"node"}),
		selection: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pogsim_selection_probability",
			Help: "Selection probability of each node in the last epoch.",
		}, []string{"node"}),
	}
}

// ObserveEpoch records one epoch report.
func (t *Telemetry) ObserveEpoch(r EpochReport) {
	t.epochs.Inc()
	t.pathsAccepted.Add(float64(r.Paths))
	t.pathsDropped.Add(float64(r.Dropped))
	if r.AttackDetected {
		t.attacks.Inc()
	}
	t.ntd.Set(r.NTDCurrent)
	t.ntdTarget.Set(r.NTDTarget)
	t.avgPathLength.Set(r.AvgPathLength)
	t.penalty.Set(r.Penalty)
	t.minerFees.Add(float64(r.Reward.MinerFeeIncome))
	t.networkPool.Add(float64(r.Reward.NetworkPool))
	t.proposals.WithLabelValues(string(r.Proposer)).Inc()
	for _, row := range r.Nodes {
		t.selection.WithLabelValues(string(row.Node)).Set(row.SelectionProbability)
	}
}
