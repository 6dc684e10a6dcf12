package interfaces

import (
	"context"

	"transit-observer/src/models"
)

// -----------------------------------------------------------------------------
// ITrafficSensor exposes the most recent traffic condition per route.
// -----------------------------------------------------------------------------

type ITrafficSensor interface {
	// GetSignal returns the current signal for a route, or found=false when
	// none has been reported recently.
	GetSignal(routeID int) (models.MTrafficSignal, bool)
}

// -----------------------------------------------------------------------------
// IEstimator is the black-box travel-time estimator capability.
// -----------------------------------------------------------------------------

// EstimatorFeatures is the input vector handed to the external estimator.
type EstimatorFeatures struct {
	RouteID        int     `json:"route_id"`
	Hour           int     `json:"hour"`
	Weekday        int     `json:"weekday"`
	TrafficLevel   int     `json:"traffic_level"`
	DistanceToStop float64 `json:"distance_to_stop_km"`
}

type IEstimator interface {
	// Estimate returns a travel-time estimate in seconds and a confidence in
	// [0,1]. ok=false means the capability is unavailable for this request
	// (timeout, error, not configured) and the caller should fall through to
	// the next strategy.
	Estimate(ctx context.Context, features EstimatorFeatures) (etaSeconds float64, confidence float64, ok bool)
}

// -----------------------------------------------------------------------------
// ISpeedHistory records per-vehicle speed samples and answers recent averages.
// -----------------------------------------------------------------------------

type ISpeedHistory interface {

	// RecordSample stores one observed speed for a vehicle. Zero speeds are
	// stored too; AverageSpeed ignores them.
	RecordSample(vehicleID int, speedKmh float64) error

	// -----------------------------------------------------------------------------

	// AverageSpeed returns the mean of recent positive samples for a vehicle,
	// ok=false when there are none.
	AverageSpeed(vehicleID int) (float64, bool)

	// -----------------------------------------------------------------------------

	// CleanupOldSamples drops samples older than the retention policy.
	CleanupOldSamples() error

	// -----------------------------------------------------------------------------

	Close() error
}
