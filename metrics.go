package edbq

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values for the op label.
const (
	opAll     = "all"
	opFirst   = "first"
	opCount   = "count"
	opKeys    = "keys"
	opIterate = "iterate"
)

type metrics struct {
	queries       *prometheus.CounterVec
	queryErrors   *prometheus.CounterVec
	advances      prometheus.Counter
	rowsYielded   prometheus.Counter
	fanOutLookups prometheus.Histogram
}

// newMetrics creates the query metrics and registers them with reg. A nil
// reg keeps them unregistered. Collectors already registered by another DB
// sharing reg are reused.
func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		queries: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edbq",
			Name:      "queries_total",
			Help:      "Terminal query operations by operation and scan source",
		}, []string{"op", "source"})),
		queryErrors: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edbq",
			Name:      "query_errors_total",
			Help:      "Terminal query operations that failed",
		}, []string{"op"})),
		advances: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edbq",
			Name:      "cursor_advances_total",
			Help:      "Cursor moves issued by query walks",
		})),
		rowsYielded: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edbq",
			Name:      "rows_yielded_total",
			Help:      "Entries returned by query walks",
		})),
		fanOutLookups: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edbq",
			Name:      "fanout_lookups",
			Help:      "Number of sub-lookups per multi-value query",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) observe(op string, src sourceKind, advances, rows int, err error) {
	m.queries.WithLabelValues(op, src.String()).Inc()
	m.advances.Add(float64(advances))
	m.rowsYielded.Add(float64(rows))
	if err != nil {
		m.queryErrors.WithLabelValues(op).Inc()
	}
}
