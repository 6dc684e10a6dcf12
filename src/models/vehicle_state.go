package models

import "time"

// MVehicleState is the last known state of one vehicle. Latest-wins: every
// ingest overwrites the previous record for the same vehicle.
type MVehicleState struct {
	VehicleID  int       `json:"bus_id"`
	RouteID    int       `json:"route_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      float64   `json:"speed"`     // km/h
	Direction  float64   `json:"direction"` // degrees 0-360
	ObservedAt time.Time `json:"timestamp"`
}
