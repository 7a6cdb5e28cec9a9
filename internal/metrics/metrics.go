// Package metrics exposes Prometheus instrumentation for perforation searches.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/hexshield/internal/shielding"
)

// Search outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Collector bundles the search metrics and the gatherer they are served from.
type Collector struct {
	gatherer prometheus.Gatherer

	Searches  *prometheus.CounterVec
	Evaluated *prometheus.CounterVec
	Accepted  *prometheus.CounterVec
	Skipped   *prometheus.CounterVec
	Durations *prometheus.HistogramVec
	Running   prometheus.Gauge
}

// NewCollector registers the search metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	searches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hexshield_searches_total",
		Help: "Total number of finished searches, labeled by mode and outcome.",
	}, []string{"mode", "outcome"}), "hexshield_searches_total")
	if err != nil {
		return nil, err
	}

	evaluated, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hexshield_candidates_evaluated_total",
		Help: "Candidates passed to the geometry model.",
	}, []string{"mode"}), "hexshield_candidates_evaluated_total")
	if err != nil {
		return nil, err
	}

	accepted, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hexshield_candidates_accepted_total",
		Help: "Candidates appended to a result list.",
	}, []string{"mode"}), "hexshield_candidates_accepted_total")
	if err != nil {
		return nil, err
	}

	skipped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hexshield_candidates_skipped_total",
		Help: "Candidates skipped because their evaluation left the arithmetic domain.",
	}, []string{"mode"}), "hexshield_candidates_skipped_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hexshield_search_duration_seconds",
		Help:    "Search wall time in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"mode"}), "hexshield_search_duration_seconds")
	if err != nil {
		return nil, err
	}

	running, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hexshield_searches_running",
		Help: "Number of searches currently sweeping.",
	}), "hexshield_searches_running")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:  gatherer,
		Searches:  searches,
		Evaluated: evaluated,
		Accepted:  accepted,
		Skipped:   skipped,
		Durations: durations,
		Running:   running,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SearchStarted marks one more search as running.
func (c *Collector) SearchStarted() {
	if c == nil {
		return
	}
	c.Running.Inc()
}

// SearchFinished records the outcome of a search started with SearchStarted.
// res may be nil for searches that did not complete.
func (c *Collector) SearchFinished(mode, outcome string, res *shielding.SearchResult, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Running.Dec()
	c.Searches.WithLabelValues(mode, outcome).Inc()
	c.Durations.WithLabelValues(mode).Observe(elapsed.Seconds())
	if res != nil {
		c.Evaluated.WithLabelValues(mode).Add(float64(res.Evaluated))
	}
}

// Observer returns a shielding.Observer counting accepted and skipped
// candidates under the given mode label.
func (c *Collector) Observer(mode string) shielding.Observer {
	if c == nil {
		return shielding.NopObserver{}
	}
	return &searchObserver{
		accepted: c.Accepted.WithLabelValues(mode),
		skipped:  c.Skipped.WithLabelValues(mode),
	}
}

type searchObserver struct {
	accepted prometheus.Counter
	skipped  prometheus.Counter
}

func (o *searchObserver) Started(*shielding.Panel) {}

func (o *searchObserver) Accepted(shielding.CandidateResult) { o.accepted.Inc() }

func (o *searchObserver) Skipped(shielding.Candidate, error) { o.skipped.Inc() }

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
