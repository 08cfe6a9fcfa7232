package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the proctoring broker.
type Metrics struct {
	registry              *prometheus.Registry
	publishPrimaryTotal   prometheus.Counter
	publishFallbackTotal  prometheus.Counter
	publishFailedTotal    prometheus.Counter
	pathsProvisionedTotal prometheus.Counter
	signalEventsTotal     prometheus.Counter
	rooms                 prometheus.Gauge
	students              prometheus.Gauge
	proctors              prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	publishPrimaryTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proctor_publish_primary_total",
		Help: "Publish attempts answered by the primary transport",
	})
	publishFallbackTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proctor_publish_fallback_total",
		Help: "Publish attempts concluded as degraded success on the fallback transport",
	})
	publishFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proctor_publish_failed_total",
		Help: "Publish attempts where both transports were unusable",
	})
	pathsProvisionedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proctor_paths_provisioned_total",
		Help: "Stream paths created on the external media server",
	})
	signalEventsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proctor_signal_events_total",
		Help: "Signaling events processed over websocket connections",
	})
	rooms := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proctor_rooms",
		Help: "Rooms with at least one participant",
	})
	students := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proctor_students",
		Help: "Students currently joined",
	})
	proctors := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proctor_proctors",
		Help: "Proctors currently joined",
	})

	registry.MustRegister(
		publishPrimaryTotal,
		publishFallbackTotal,
		publishFailedTotal,
		pathsProvisionedTotal,
		signalEventsTotal,
		rooms,
		students,
		proctors,
	)

	return &Metrics{
		registry:              registry,
		publishPrimaryTotal:   publishPrimaryTotal,
		publishFallbackTotal:  publishFallbackTotal,
		publishFailedTotal:    publishFailedTotal,
		pathsProvisionedTotal: pathsProvisionedTotal,
		signalEventsTotal:     signalEventsTotal,
		rooms:                 rooms,
		students:              students,
		proctors:              proctors,
	}
}

func (m *Metrics) IncPublishPrimary()   { m.publishPrimaryTotal.Inc() }
func (m *Metrics) IncPublishFallback()  { m.publishFallbackTotal.Inc() }
func (m *Metrics) IncPublishFailed()    { m.publishFailedTotal.Inc() }
func (m *Metrics) IncPathsProvisioned() { m.pathsProvisionedTotal.Inc() }
func (m *Metrics) IncSignalEvents()     { m.signalEventsTotal.Inc() }

// SetPresence refreshes the derived gauges from registry counts.
func (m *Metrics) SetPresence(rooms, students, proctors int) {
	m.rooms.Set(float64(rooms))
	m.students.Set(float64(students))
	m.proctors.Set(float64(proctors))
}

// Handler serves the scrape endpoint. updateGauges runs before each scrape
// so gauge values are derived from live registry state, never drifting
// counters.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
