package models

// MRouteSegment is one stop on a route plus the nominal travel time to the
// next one. Immutable for the lifetime of a route; supplied by the route
// catalog and ordered by SequenceOrder (1-based, strictly increasing).
type MRouteSegment struct {
	RouteID                        int     `json:"route_id" yaml:"route_id"`
	StopID                         int     `json:"stop_id" yaml:"stop_id"`
	StopName                       string  `json:"stop_name" yaml:"stop_name"`
	SequenceOrder                  int     `json:"sequence_order" yaml:"sequence_order"`
	Latitude                       float64 `json:"latitude" yaml:"latitude"`
	Longitude                      float64 `json:"longitude" yaml:"longitude"`
	NominalTravelTimeToNextSeconds int     `json:"nominal_travel_time_seconds" yaml:"travel_time_to_next_seconds"`
}
