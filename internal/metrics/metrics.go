// Package metrics defines the Prometheus instrumentation for the gateway
// controller. All metrics are registered against an injected Registerer so a
// discarded controller does not leak collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the controller-level counters.
type Metrics struct {
	// DataFanout counts device data payloads delivered to cloud connectors.
	DataFanout prometheus.Counter

	// LogFanout counts log payloads delivered to cloud connectors.
	LogFanout prometheus.Counter

	// DroppedPayloads counts cloud payloads dropped because they were not a
	// non-empty command batch, plus batch elements without a valid action.
	DroppedPayloads prometheus.Counter

	// Commands counts processed CnC commands, labeled by action.
	Commands *prometheus.CounterVec

	// ConfigWrites counts completed config file writes.
	ConfigWrites prometheus.Counter

	// ConfigWriteFailures counts failed config file writes.
	ConfigWriteFailures prometheus.Counter
}

// New registers and returns the controller metrics.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		DataFanout: factory.NewCounter(prometheus.CounterOpts{
			Name: "edgegate_data_fanout_total",
			Help: "Device data payloads delivered to cloud connectors",
		}),
		LogFanout: factory.NewCounter(prometheus.CounterOpts{
			Name: "edgegate_log_fanout_total",
			Help: "Log payloads delivered to cloud connectors",
		}),
		DroppedPayloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "edgegate_dropped_payloads_total",
			Help: "Cloud payloads and batch elements dropped as malformed",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edgegate_commands_total",
			Help: "Processed command-and-control commands",
		}, []string{"action"}),
		ConfigWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "edgegate_config_writes_total",
			Help: "Completed config file writes",
		}),
		ConfigWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "edgegate_config_write_failures_total",
			Help: "Failed config file writes",
		}),
	}
}

// NewNop returns metrics bound to a throwaway registry, for tests and for
// controllers constructed without an explicit registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
