package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the pipeline's prometheus instruments.
type Metrics struct {
	parsesTotal  prometheus.Counter
	exportHits   prometheus.Counter
	exportMisses prometheus.Counter
}

// NewMetrics registers the pipeline counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		parsesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docpipe_parses_total",
			Help: "Total number of parse invocations.",
		}),
		exportHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docpipe_export_cache_hits_total",
			Help: "Export requests served from the memoized format map.",
		}),
		exportMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docpipe_export_cache_misses_total",
			Help: "Export requests that invoked the parser's export capability.",
		}),
	}
	for _, c := range []prometheus.Collector{m.parsesTotal, m.exportHits, m.exportMisses} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) incParses() {
	if m != nil {
		m.parsesTotal.Inc()
	}
}

func (m *Metrics) incExportHit() {
	if m != nil {
		m.exportHits.Inc()
	}
}

func (m *Metrics) incExportMiss() {
	if m != nil {
		m.exportMisses.Inc()
	}
}
