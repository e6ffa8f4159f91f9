package resilience

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/circuitbreaker"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/degradation"
)

// PromObserver exports operation outcomes and resilience state to
// Prometheus. Metrics are registered against the caller's Registerer so the
// library holds no global state.
type PromObserver struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	circuitState      *prometheus.GaugeVec
	serviceLevel      prometheus.Gauge
}

// NewPromObserver registers the resilience metrics with reg.
func NewPromObserver(reg prometheus.Registerer) *PromObserver {
	factory := promauto.With(reg)

	return &PromObserver{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resilience_operations_total",
				Help: "Total operations executed, by service, operation and outcome",
			},
			[]string{"service", "operation", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resilience_operation_duration_seconds",
				Help:    "End-to-end operation duration, validation and retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "resilience_circuit_state",
				Help: "Circuit state per circuit name (0=closed, 1=half-open, 2=open)",
			},
			[]string{"circuit"},
		),
		serviceLevel: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "resilience_service_level",
				Help: "Process-wide service level (1=emergency .. 4=full)",
			},
		),
	}
}

func (o *PromObserver) observeOperation(service, operation, status string, duration time.Duration) {
	if o == nil {
		return
	}

	o.operationsTotal.WithLabelValues(service, operation, status).Inc()
	o.operationDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func (o *PromObserver) observeCircuit(name string, state circuitbreaker.State) {
	if o == nil {
		return
	}

	var value float64

	switch state {
	case circuitbreaker.StateHalfOpen:
		value = 1
	case circuitbreaker.StateOpen:
		value = 2
	}

	o.circuitState.WithLabelValues(name).Set(value)
}

func (o *PromObserver) observeLevel(level degradation.Level) {
	if o == nil {
		return
	}

	o.serviceLevel.Set(float64(level))
}
