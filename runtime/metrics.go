package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	txSucceeded prometheus.Counter
	txFailed    prometheus.Counter
	txRejected  prometheus.Counter

	instructions *prometheus.CounterVec

	feesCollected prometheus.Counter
	computeUsed   prometheus.Histogram
}

func newMetrics() (*prometheus.Registry, *metrics, error) {
	r := prometheus.NewRegistry()
	m := &metrics{
		txSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runtime",
			Name:      "tx_succeeded",
			Help:      "number of committed transactions whose instructions all succeeded",
		}),
		txFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runtime",
			Name:      "tx_failed",
			Help:      "number of transactions rolled back after an instruction failed",
		}),
		txRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runtime",
			Name:      "tx_rejected",
			Help:      "number of transactions rejected before execution",
		}),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtime",
			Name:      "instructions",
			Help:      "number of executed instructions",
		}, []string{"program", "status"}),
		feesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runtime",
			Name:      "fees_collected",
			Help:      "lamports charged as transaction fees",
		}),
		computeUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "runtime",
			Name:      "compute_used",
			Help:      "compute units consumed per transaction",
			Buckets:   prometheus.ExponentialBuckets(1000, 2, 10),
		}),
	}
	for _, c := range []prometheus.Collector{
		m.txSucceeded,
		m.txFailed,
		m.txRejected,
		m.instructions,
		m.feesCollected,
		m.computeUsed,
	} {
		if err := r.Register(c); err != nil {
			return nil, nil, err
		}
	}
	return r, m, nil
}
