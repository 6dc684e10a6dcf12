package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
name: "TransitObserver"
host: "0.0.0.0"
port: 8000
log_level: "INFO"
storage:
  catalog_driver: "yaml"
  catalog_path: "./routes.yaml"
  history_db_path: "./history.db"
  history_retention_days: 7
ingest:
  sources:
    - name: "sim"
      type: "simulator"
      poll_interval_seconds: 5
pipeline:
  location_ttl_seconds: 300
  traffic_ttl_seconds: 600
  prediction_cache_ttl_seconds: 60
  predict_sweep_seconds: 300
  broadcast_seconds: 10
  horizon_stops: 3
  default_speed_kmh: 25
estimator:
  url: ""
  timeout_ms: 2000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewConfigLoadsYAML(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	if cfg.Name != "TransitObserver" || cfg.Port != 8000 {
		t.Errorf("unexpected top-level values: %s / %d", cfg.Name, cfg.Port)
	}
	if cfg.Storage.CatalogDriver != "yaml" {
		t.Errorf("catalog driver = %q", cfg.Storage.CatalogDriver)
	}
	if cfg.Pipeline.LocationTTLSeconds != 300 || cfg.Pipeline.BroadcastSeconds != 10 {
		t.Errorf("pipeline tunables not loaded: %+v", cfg.Pipeline)
	}
	if len(cfg.Ingest.Sources) != 1 || cfg.Ingest.Sources[0].Type != "simulator" {
		t.Errorf("ingest sources not loaded: %+v", cfg.Ingest.Sources)
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	if _, err := NewConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OBSERVER_PORT", "9100")
	t.Setenv("OBSERVER_ESTIMATOR_URL", "http://estimator:5000/estimate")

	cfg, err := NewConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("port override ignored: %d", cfg.Port)
	}
	if cfg.Estimator.URL != "http://estimator:5000/estimate" {
		t.Errorf("estimator override ignored: %q", cfg.Estimator.URL)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"privileged port", func(c *Config) { c.Port = 80 }},
		{"unknown catalog driver", func(c *Config) { c.Storage.CatalogDriver = "mongo" }},
		{"yaml driver without path", func(c *Config) { c.Storage.CatalogPath = "" }},
		{"postgres driver without dsn", func(c *Config) {
			c.Storage.CatalogDriver = "postgres"
			c.Storage.DBConnectionString = ""
		}},
		{"no sources", func(c *Config) { c.Ingest.Sources = nil }},
		{"nats source without subject", func(c *Config) {
			c.Ingest.Sources[0].Type = "nats"
			c.Ingest.Sources[0].URL = "nats://localhost:4222"
			c.Ingest.Sources[0].Subject = ""
		}},
		{"negative ttl", func(c *Config) { c.Pipeline.LocationTTLSeconds = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(writeConfig(t, validYAML))
			if err != nil {
				t.Fatalf("baseline config invalid: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.Save(out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := NewConfig(out)
	if err != nil {
		t.Fatalf("reloading saved config failed: %v", err)
	}
	if loaded.Name != cfg.Name || loaded.Pipeline.HorizonStops != cfg.Pipeline.HorizonStops {
		t.Error("saved config does not round-trip")
	}
}
