package models

import "time"

// -----------------------------------------------------------------------------
// Broadcast payload (pushed to every open, matching subscription each tick)
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type         string               `json:"type"` // "update", "route_data" or "stop_data"
	Timestamp    time.Time            `json:"timestamp"`
	// BusLocations is omitted from stop-filtered payloads
	BusLocations []MVehicleState      `json:"bus_locations,omitempty"`
	Predictions  []MArrivalPrediction `json:"predictions"`
}

// -----------------------------------------------------------------------------
// Client -> server control messages
// -----------------------------------------------------------------------------

type MClientCommand struct {
	Type             string `json:"type"` // "subscribe" or "ping"
	SubscriptionType string `json:"subscription_type,omitempty"`
	RouteID          int    `json:"route_id,omitempty"`
	StopID           int    `json:"stop_id,omitempty"`
}

type MPong struct {
	Type      string    `json:"type"` // always "pong"
	Timestamp time.Time `json:"timestamp"`
}
