package prediction

import (
	"sync"
	"time"

	"transit-observer/src/interfaces"
	"transit-observer/src/logger"
	"transit-observer/src/models"
	"transit-observer/src/routemodel"
	"transit-observer/src/store"
)

// -----------------------------------------------------------------------------
// Engine computes arrival predictions for the next stops ahead of each active
// vehicle, caching results briefly per (route, vehicle). Every missing-data
// path yields an empty slice, never an error: a vehicle we cannot predict for
// simply contributes nothing to the next broadcast.
// -----------------------------------------------------------------------------

const DefaultCacheTTL = 60 * time.Second

// EngineMetrics is the slice of the metrics surface the engine touches.
type EngineMetrics interface {
	PredictionCacheHitInc()
}

type Options struct {
	CacheTTL         time.Duration
	HorizonStops     int
	DefaultSpeedKmh  float64
	EstimatorTimeout time.Duration
	Metrics          EngineMetrics
}

type cacheKey struct {
	routeID   int
	vehicleID int
}

type cacheEntry struct {
	preds     []models.MArrivalPrediction
	expiresAt time.Time
}

type Engine struct {
	locations *store.LiveLocationStore
	routes    *routemodel.RouteModel
	traffic   interfaces.ITrafficSensor
	Logger    *logger.Logger

	strategies []Strategy
	opts       Options

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
	now   func() time.Time
}

// -----------------------------------------------------------------------------

func NewEngine(
	locations *store.LiveLocationStore,
	routes *routemodel.RouteModel,
	traffic interfaces.ITrafficSensor,
	history interfaces.ISpeedHistory,
	estimator interfaces.IEstimator,
	opts Options,
) *Engine {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.HorizonStops <= 0 {
		opts.HorizonStops = 3
	}
	if opts.DefaultSpeedKmh <= 0 {
		opts.DefaultSpeedKmh = 25
	}
	if opts.EstimatorTimeout <= 0 {
		opts.EstimatorTimeout = 2 * time.Second
	}

	return &Engine{
		locations: locations,
		routes:    routes,
		traffic:   traffic,
		Logger:    logger.NewLogger("PredictionEngine"),
		strategies: []Strategy{
			&estimatorStrategy{estimator: estimator, timeout: opts.EstimatorTimeout},
			&historicalStrategy{history: history, defaultSpeed: opts.DefaultSpeedKmh},
			&simpleStrategy{defaultSpeed: opts.DefaultSpeedKmh},
		},
		opts:  opts,
		cache: make(map[cacheKey]cacheEntry),
		now:   time.Now,
	}
}

// -----------------------------------------------------------------------------

// Predict returns predictions for the next stops ahead of the vehicle's
// nearest stop. Cached results are returned unchanged within the cache TTL.
func (e *Engine) Predict(routeID, vehicleID int) []models.MArrivalPrediction {
	key := cacheKey{routeID: routeID, vehicleID: vehicleID}

	e.mu.RLock()
	entry, ok := e.cache[key]
	e.mu.RUnlock()
	if ok && e.now().Before(entry.expiresAt) {
		if e.opts.Metrics != nil {
			e.opts.Metrics.PredictionCacheHitInc()
		}
		return entry.preds
	}

	preds := e.compute(routeID, vehicleID)
	if len(preds) > 0 {
		e.mu.Lock()
		e.cache[key] = cacheEntry{preds: preds, expiresAt: e.now().Add(e.opts.CacheTTL)}
		e.mu.Unlock()
	}
	return preds
}

func (e *Engine) compute(routeID, vehicleID int) []models.MArrivalPrediction {
	vehicle, ok := e.locations.Get(vehicleID)
	if !ok {
		// No recent location means nothing to predict for.
		return nil
	}

	nearest, distKm, ok := e.routes.NearestStop(routeID, vehicle.Latitude, vehicle.Longitude)
	if !ok {
		return nil
	}

	upcoming := e.routes.SegmentsFrom(routeID, nearest.SequenceOrder)
	if len(upcoming) == 0 {
		return nil
	}
	if len(upcoming) > e.opts.HorizonStops {
		upcoming = upcoming[:e.opts.HorizonStops]
	}

	pc := &PredictionContext{
		Now:        e.now(),
		Vehicle:    vehicle,
		Nearest:    nearest,
		DistanceKm: distKm,
		Upcoming:   upcoming,
	}
	if signal, ok := e.traffic.GetSignal(routeID); ok {
		pc.Signal = &signal
	}

	for _, s := range e.strategies {
		if preds, ok := s.Predict(pc); ok {
			return preds
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// PredictAll recomputes (or revalidates) predictions for every active vehicle.
// Invoked by the predict driver on its sweep interval.
func (e *Engine) PredictAll() int {
	total := 0
	for _, v := range e.locations.ActiveSnapshot() {
		total += len(e.Predict(v.RouteID, v.VehicleID))
	}
	return total
}

// -----------------------------------------------------------------------------

// Invalidate drops the cached result for one (route, vehicle) pair.
func (e *Engine) Invalidate(routeID, vehicleID int) {
	e.mu.Lock()
	delete(e.cache, cacheKey{routeID: routeID, vehicleID: vehicleID})
	e.mu.Unlock()
}

// -----------------------------------------------------------------------------

// CachedSnapshot returns every live cached prediction whose arrival time is
// still in the future. This is the broadcast tick's input.
func (e *Engine) CachedSnapshot() []models.MArrivalPrediction {
	now := e.now()
	var out []models.MArrivalPrediction

	e.mu.RLock()
	for _, entry := range e.cache {
		if !now.Before(entry.expiresAt) {
			continue
		}
		for _, p := range entry.preds {
			if p.PredictedArrivalTime.After(now) {
				out = append(out, p)
			}
		}
	}
	e.mu.RUnlock()
	return out
}
