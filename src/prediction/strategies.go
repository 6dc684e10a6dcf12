package prediction

import (
	"context"
	"time"

	"transit-observer/src/interfaces"
	"transit-observer/src/models"
)

// -----------------------------------------------------------------------------
// Strategy chain. Strategies are tried in order; the first one that can
// produce a usable result wins and tags the output with its name.
// -----------------------------------------------------------------------------

// PredictionContext carries everything a strategy needs for one vehicle.
type PredictionContext struct {
	Now        time.Time
	Vehicle    models.MVehicleState
	Nearest    models.MRouteSegment
	DistanceKm float64
	// Upcoming is the nearest segment plus the following ones, already capped
	// at the prediction horizon.
	Upcoming []models.MRouteSegment
	Signal   *models.MTrafficSignal
}

type Strategy interface {
	Name() string
	Predict(pc *PredictionContext) ([]models.MArrivalPrediction, bool)
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

// effectiveSpeed blends the base speed with the route's traffic signal
// (arithmetic mean, monotone in both inputs). With no usable base speed and
// no signal it falls back to the configured default.
func effectiveSpeed(baseKmh float64, signal *models.MTrafficSignal, defaultKmh float64) float64 {
	if baseKmh <= 0 {
		if signal != nil && signal.AverageSpeedKmh > 0 {
			return signal.AverageSpeedKmh
		}
		return defaultKmh
	}
	if signal != nil && signal.AverageSpeedKmh > 0 {
		return (baseKmh + signal.AverageSpeedKmh) / 2
	}
	return baseKmh
}

// confidenceFor decays with distance to the nearest stop: clamp(1-d/D, lo, hi).
func confidenceFor(distanceKm, decayKm, lo, hi float64) float64 {
	c := 1 - distanceKm/decayKm
	if c < lo {
		return lo
	}
	if c > hi {
		return hi
	}
	return c
}

// buildArrivals walks the upcoming segments: the nearest stop gets
// firstLegSeconds, each later stop accumulates the nominal travel time of the
// segment leading into it.
func buildArrivals(pc *PredictionContext, firstLegSeconds, confidence float64, strategy string) []models.MArrivalPrediction {
	preds := make([]models.MArrivalPrediction, 0, len(pc.Upcoming))
	elapsed := firstLegSeconds
	for i, seg := range pc.Upcoming {
		if i > 0 {
			elapsed += float64(pc.Upcoming[i-1].NominalTravelTimeToNextSeconds)
		}
		preds = append(preds, models.MArrivalPrediction{
			VehicleID:            pc.Vehicle.VehicleID,
			RouteID:              seg.RouteID,
			StopID:               seg.StopID,
			PredictedArrivalTime: pc.Now.Add(time.Duration(elapsed * float64(time.Second))),
			Confidence:           confidence,
			Strategy:             strategy,
			ComputedAt:           pc.Now,
		})
	}
	return preds
}

// -----------------------------------------------------------------------------
// External estimator strategy
// -----------------------------------------------------------------------------

type estimatorStrategy struct {
	estimator interfaces.IEstimator
	timeout   time.Duration
}

func (s *estimatorStrategy) Name() string { return models.StrategyEstimator }

func (s *estimatorStrategy) Predict(pc *PredictionContext) ([]models.MArrivalPrediction, bool) {
	if s.estimator == nil {
		return nil, false
	}

	features := interfaces.EstimatorFeatures{
		RouteID:        pc.Vehicle.RouteID,
		Hour:           pc.Now.UTC().Hour(),
		Weekday:        int(pc.Now.UTC().Weekday()),
		TrafficLevel:   1, // moderate unless a signal says otherwise
		DistanceToStop: pc.DistanceKm,
	}
	if pc.Signal != nil {
		features.TrafficLevel = pc.Signal.LevelOrdinal()
	}

	// A stalled estimator must not stall the predict loop.
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	etaSeconds, conf, ok := s.estimator.Estimate(ctx, features)
	if !ok || etaSeconds < 0 {
		return nil, false
	}

	if conf < 0.3 {
		conf = 0.3
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return buildArrivals(pc, etaSeconds, conf, s.Name()), true
}

// -----------------------------------------------------------------------------
// Historical-average strategy
// -----------------------------------------------------------------------------

type historicalStrategy struct {
	history      interfaces.ISpeedHistory
	defaultSpeed float64
}

func (s *historicalStrategy) Name() string { return models.StrategyHistorical }

func (s *historicalStrategy) Predict(pc *PredictionContext) ([]models.MArrivalPrediction, bool) {
	if s.history == nil {
		return nil, false
	}
	avg, ok := s.history.AverageSpeed(pc.Vehicle.VehicleID)
	if !ok || avg <= 0 {
		return nil, false
	}

	speed := effectiveSpeed(avg, pc.Signal, s.defaultSpeed)
	firstLeg := pc.DistanceKm / speed * 3600
	conf := confidenceFor(pc.DistanceKm, 5, 0.3, 0.9)
	return buildArrivals(pc, firstLeg, conf, s.Name()), true
}

// -----------------------------------------------------------------------------
// Simple (instantaneous speed) strategy — terminal, always succeeds
// -----------------------------------------------------------------------------

type simpleStrategy struct {
	defaultSpeed float64
}

func (s *simpleStrategy) Name() string { return models.StrategySimple }

func (s *simpleStrategy) Predict(pc *PredictionContext) ([]models.MArrivalPrediction, bool) {
	speed := effectiveSpeed(pc.Vehicle.Speed, pc.Signal, s.defaultSpeed)
	firstLeg := pc.DistanceKm / speed * 3600
	conf := confidenceFor(pc.DistanceKm, 3, 0.4, 0.8)
	return buildArrivals(pc, firstLeg, conf, s.Name()), true
}
