package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the pipeline's instrumentation on a private registry so
// the /metrics endpoint only exposes what this process actually owns.
type Collector struct {
	reg *prometheus.Registry

	ActiveVehicles    prometheus.Gauge
	ActiveSubscribers prometheus.Gauge

	IngestBatches *prometheus.CounterVec // source label
	IngestErrors  *prometheus.CounterVec // source label

	PredictionsComputed prometheus.Counter
	PredictionCacheHits prometheus.Counter
	BroadcastsSent      prometheus.Counter

	NATSConnected prometheus.Gauge

	PredictSweepDuration prometheus.Histogram
	BroadcastDuration    prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "observer_active_vehicles",
			Help: "Number of vehicles with a live (unexpired) position.",
		}),
		ActiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "observer_active_subscribers",
			Help: "Number of connected websocket subscribers.",
		}),
		IngestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observer_ingest_batches_total",
			Help: "Total position batches accepted per source.",
		}, []string{"source"}),
		IngestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observer_ingest_errors_total",
			Help: "Total ingest failures per source.",
		}, []string{"source"}),
		PredictionsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "observer_predictions_computed_total",
			Help: "Total arrival prediction batches computed.",
		}),
		PredictionCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "observer_prediction_cache_hits_total",
			Help: "Total prediction requests served from cache.",
		}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "observer_broadcasts_total",
			Help: "Total snapshot broadcasts fanned out to subscribers.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "observer_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PredictSweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "observer_predict_sweep_duration_seconds",
			Help:    "Duration of the periodic prediction sweep.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "observer_broadcast_duration_seconds",
			Help:    "Duration to assemble and fan out one broadcast.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	// Register
	reg.MustRegister(
		c.ActiveVehicles, c.ActiveSubscribers,
		c.IngestBatches, c.IngestErrors,
		c.PredictionsComputed, c.PredictionCacheHits, c.BroadcastsSent,
		c.NATSConnected,
		c.PredictSweepDuration, c.BroadcastDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// -----------------------------------------------------------------------------
// Adapters for the narrow interfaces the other packages accept.
// -----------------------------------------------------------------------------

func (c *Collector) IngestBatchInc(source string) { c.IngestBatches.WithLabelValues(source).Inc() }
func (c *Collector) IngestErrInc(source string)   { c.IngestErrors.WithLabelValues(source).Inc() }

func (c *Collector) SetSubscribers(n int)    { c.ActiveSubscribers.Set(float64(n)) }
func (c *Collector) SetActiveVehicles(n int) { c.ActiveVehicles.Set(float64(n)) }
func (c *Collector) BroadcastInc()           { c.BroadcastsSent.Inc() }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) PredictionsAdd(n int)   { c.PredictionsComputed.Add(float64(n)) }
func (c *Collector) PredictionCacheHitInc() { c.PredictionCacheHits.Inc() }

func (c *Collector) PredictSweepObserve(d time.Duration) {
	c.PredictSweepDuration.Observe(d.Seconds())
}

func (c *Collector) BroadcastObserve(d time.Duration) {
	c.BroadcastDuration.Observe(d.Seconds())
}
