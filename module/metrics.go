package module

import "github.com/prometheus/client_golang/prometheus"

var (
	loadedModules = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lbbsd",
			Subsystem: "module",
			Name:      "loaded",
			Help:      "1 if the named module is currently in the loaded state, 0 otherwise",
		},
		[]string{"module"},
	)
	moduleRefcount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lbbsd",
			Subsystem: "module",
			Name:      "refcount",
			Help:      "Current reference count of the named module",
		},
		[]string{"module"},
	)
	moduleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lbbsd",
			Subsystem: "module",
			Name:      "transitions_total",
			Help:      "Number of lifecycle transitions per module, labeled by the resulting state",
		},
		[]string{"module", "state"},
	)
	autoloadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lbbsd",
			Subsystem: "autoload",
			Name:      "failures_total",
			Help:      "Number of autoload entries that failed to load, labeled by module name",
		},
		[]string{"module"},
	)
)

func init() {
	prometheus.MustRegister(loadedModules)
	prometheus.MustRegister(moduleRefcount)
	prometheus.MustRegister(moduleTransitions)
	prometheus.MustRegister(autoloadFailures)
}

// observeTransition updates the gauges/counters after rec's state has
// changed. Called with rec's transition lock already released, since
// Prometheus collectors have their own internal locking.
func observeTransition(rec *Record, state State, refcount int) {
	moduleTransitions.WithLabelValues(rec.name, state.String()).Inc()
	moduleRefcount.WithLabelValues(rec.name).Set(float64(refcount))
	if state == StateLoaded {
		loadedModules.WithLabelValues(rec.name).Set(1)
	} else if state.terminal() {
		loadedModules.WithLabelValues(rec.name).Set(0)
	}
}
