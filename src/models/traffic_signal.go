package models

import "time"

// Traffic levels as reported by the traffic-sensing collaborator.
const (
	TrafficLight    = "light"
	TrafficModerate = "moderate"
	TrafficHeavy    = "heavy"
	TrafficSevere   = "severe"
)

// MTrafficSignal is the current traffic condition on a route. Ephemeral,
// TTL-bounded, read-only to the prediction engine.
type MTrafficSignal struct {
	RouteID         int       `json:"route_id"`
	Level           string    `json:"traffic_level"`
	AverageSpeedKmh float64   `json:"average_speed"`
	ObservedAt      time.Time `json:"timestamp"`
}

// LevelOrdinal maps the level to 0..3 for estimator features.
func (t MTrafficSignal) LevelOrdinal() int {
	switch t.Level {
	case TrafficLight:
		return 0
	case TrafficModerate:
		return 1
	case TrafficHeavy:
		return 2
	case TrafficSevere:
		return 3
	}
	return 1
}
