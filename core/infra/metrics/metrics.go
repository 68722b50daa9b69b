package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConfigMetrics counts resolver and validator activity.
type ConfigMetrics interface {
	IncResolutions(kind, outcome string)
	IncCacheLoads(outcome string)
	IncCacheInvalidations()
	IncWrites(op, outcome string)
	AddFormatWarnings(field string, n int)
}

// Noop implements ConfigMetrics without emitting anything.
type Noop struct{}

func (Noop) IncResolutions(string, string) {}
func (Noop) IncCacheLoads(string)          {}
func (Noop) IncCacheInvalidations()        {}
func (Noop) IncWrites(string, string)      {}
func (Noop) AddFormatWarnings(string, int) {}

// Prom implements ConfigMetrics backed by Prometheus counters.
type Prom struct {
	resolutions   *prometheus.CounterVec
	cacheLoads    *prometheus.CounterVec
	invalidations prometheus.Counter
	writes        *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	once          sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_resolutions_total",
			Help:      "Client config resolutions by kind (effective/annotated) and outcome",
		}, []string{"kind", "outcome"}),
		cacheLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_cache_loads_total",
			Help:      "Config cache loads from the store by outcome",
		}, []string{"outcome"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_cache_invalidations_total",
			Help:      "Config cache invalidations",
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_writes_total",
			Help:      "Client record writes by operation and outcome",
		}, []string{"op", "outcome"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "format_warnings_total",
			Help:      "Rejected field values by field key",
		}, []string{"field"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.resolutions, p.cacheLoads, p.invalidations, p.writes, p.warnings)
	})
}

func (p *Prom) IncResolutions(kind, outcome string) {
	p.resolutions.WithLabelValues(kind, outcome).Inc()
}

func (p *Prom) IncCacheLoads(outcome string) {
	p.cacheLoads.WithLabelValues(outcome).Inc()
}

func (p *Prom) IncCacheInvalidations() {
	p.invalidations.Inc()
}

func (p *Prom) IncWrites(op, outcome string) {
	p.writes.WithLabelValues(op, outcome).Inc()
}

func (p *Prom) AddFormatWarnings(field string, n int) {
	if n <= 0 {
		return
	}
	p.warnings.WithLabelValues(field).Add(float64(n))
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
