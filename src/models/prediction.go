package models

import "time"

// Prediction strategy tags. Consumers use these to tell provenance apart.
const (
	StrategySimple     = "simple"
	StrategyHistorical = "historical"
	StrategyEstimator  = "external-estimator"
)

// MArrivalPrediction is one predicted arrival of a vehicle at a stop.
// Records are superseded by recomputation, never mutated in place.
type MArrivalPrediction struct {
	VehicleID            int       `json:"bus_id"`
	RouteID              int       `json:"route_id"`
	StopID               int       `json:"stop_id"`
	PredictedArrivalTime time.Time `json:"predicted_arrival_time"`
	Confidence           float64   `json:"confidence_score"`
	Strategy             string    `json:"prediction_type"`
	ComputedAt           time.Time `json:"computed_at"`
}
