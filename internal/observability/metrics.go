package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "friend_relay"

// Metrics holds the Prometheus counters, histograms, and gauges for the relay
// and its producers.
type Metrics struct {
	// Relay operations.
	RelayOperations        *prometheus.CounterVec   // labels: operation, outcome={ok,validation,not_found,error}
	RelayOperationDuration *prometheus.HistogramVec // labels: operation

	// Change events.
	ChangeEvents *prometheus.CounterVec // labels: outcome={published,error}

	// Simulator.
	SimulationsActive prometheus.Gauge
	SimulationSteps   *prometheus.CounterVec // labels: outcome={published,error}

	// Live publisher.
	PublisherSubscriptions prometheus.Gauge
	PublisherSamples       *prometheus.CounterVec // labels: outcome={published,error,invalid}
	FeedMessages           *prometheus.CounterVec // labels: outcome={delivered,dropped,unrouted,invalid}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all relay metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.RelayOperations,
		m.RelayOperationDuration,
		m.ChangeEvents,
		m.SimulationsActive,
		m.SimulationSteps,
		m.PublisherSubscriptions,
		m.PublisherSamples,
		m.FeedMessages,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		RelayOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_operations_total",
			Help:      help("Relay operations by operation and outcome."),
		}, []string{"operation", "outcome"}),
		RelayOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_operation_duration_seconds",
			Help:      help("Duration of relay operations including store round trips."),
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_total",
			Help:      help("Record change events sent to the change topic."),
		}, []string{"outcome"}),
		SimulationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulations_active",
			Help:      help("Movement simulations currently running."),
		}),
		SimulationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_steps_total",
			Help:      help("Simulated position updates by outcome."),
		}, []string{"outcome"}),
		PublisherSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publisher_subscriptions",
			Help:      help("Live location subscriptions currently attached to the feed."),
		}),
		PublisherSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publisher_samples_total",
			Help:      help("Device samples handled by the live publisher, by outcome."),
		}, []string{"outcome"}),
		FeedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_messages_total",
			Help:      help("Device feed messages read from Kafka, by outcome."),
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      help("Reverse geocoding API requests by outcome."),
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      help("Reverse geocoding cache lookups by result."),
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      help("Mapbox API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      help("1 when reverse geocoding of empty labels is enabled, 0 otherwise."),
		}),
	}
}
