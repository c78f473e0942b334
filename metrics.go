package s3keys

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opList   = "list"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
	opRead   = "read"

	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds the Prometheus metrics of a Manager.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	Connections   prometheus.Counter
	BucketsOpened prometheus.Counter
}

// NewMetrics creates metrics with the given namespace and registers them with
// reg. A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of entry operations by result",
		}, []string{"operation", "result"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Entry operation latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		Connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of connections established",
		}),
		BucketsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buckets_opened_total",
			Help:      "Total number of bucket handles created",
		}),
	}
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}

	m.Operations.WithLabelValues(operation, result).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
