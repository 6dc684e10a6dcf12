package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	Storage   MStorageConfig   `yaml:"storage"`
	Ingest    MIngestConfig    `yaml:"ingest"`
	Pipeline  MPipelineConfig  `yaml:"pipeline"`
	Estimator MEstimatorConfig `yaml:"estimator"`
}

type MStorageConfig struct {
	// CatalogDriver selects where route segments come from: "postgres" or "yaml".
	CatalogDriver      string `yaml:"catalog_driver"`
	CatalogPath        string `yaml:"catalog_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	// HistoryDBPath is the SQLite file backing per-vehicle speed history.
	HistoryDBPath        string `yaml:"history_db_path"`
	HistoryRetentionDays int    `yaml:"history_retention_days"`
}

type MIngestConfig struct {
	Sources []MSourceConfig `yaml:"sources"`
}

type MSourceConfig struct {
	Name string `yaml:"name"`
	// Type is one of "nats", "gtfsrt", "simulator".
	Type string `yaml:"type"`
	// URL is the NATS server URL or the GTFS-RT VehiclePositions feed URL.
	URL string `yaml:"url"`
	// Subject is the NATS subject pattern for vehicle positions.
	Subject string `yaml:"subject"`
	// TrafficSubject is the NATS subject pattern for traffic signals.
	TrafficSubject string `yaml:"traffic_subject"`
	// PollIntervalSeconds drives polling sources (gtfsrt, simulator).
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

type MPipelineConfig struct {
	LocationTTLSeconds        int `yaml:"location_ttl_seconds"`
	TrafficTTLSeconds         int `yaml:"traffic_ttl_seconds"`
	PredictionCacheTTLSeconds int `yaml:"prediction_cache_ttl_seconds"`
	PredictSweepSeconds       int `yaml:"predict_sweep_seconds"`
	BroadcastSeconds          int `yaml:"broadcast_seconds"`
	// HorizonStops is how many upcoming stops get a prediction per vehicle.
	HorizonStops    int     `yaml:"horizon_stops"`
	DefaultSpeedKmh float64 `yaml:"default_speed_kmh"`
}

type MEstimatorConfig struct {
	URL            string `yaml:"url"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	RequestRetries int    `yaml:"request_retries"`
}
