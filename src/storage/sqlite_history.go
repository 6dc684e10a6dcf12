package storage

import (
	"database/sql"
	"fmt"
	"time"

	"transit-observer/src/logger"
	"transit-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------
// SQLiteHistory keeps a rolling log of observed vehicle speeds. The historical
// prediction strategy averages it per vehicle; everything older than the
// retention window is swept out periodically.
// -----------------------------------------------------------------------------

type SQLiteHistory struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteHistory(cfg *models.MConfig, log *logger.Logger) (*SQLiteHistory, error) {
	return &SQLiteHistory{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (h *SQLiteHistory) Initialize() error {
	dsn := h.Config.Storage.HistoryDBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	h.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		h.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		h.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS speed_samples (
			vehicle_id INTEGER,
			speed_kmh REAL,
			observed_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_speed_samples_vehicle
			ON speed_samples (vehicle_id, observed_at);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create speed_samples: %w", err)
	}

	h.Logger.Info("SQLiteHistory initialized successfully (%s)", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (h *SQLiteHistory) RecordSample(vehicleID int, speedKmh float64) error {
	_, err := h.DB.Exec(
		`INSERT INTO speed_samples (vehicle_id, speed_kmh, observed_at) VALUES (?, ?, ?);`,
		vehicleID, speedKmh, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record speed sample for %d: %w", vehicleID, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// AverageSpeed returns the mean recorded speed for a vehicle within the
// retention window. ok is false when no samples exist.
func (h *SQLiteHistory) AverageSpeed(vehicleID int) (float64, bool) {
	cutoff := time.Now().AddDate(0, 0, -h.retentionDays()).Unix()

	// Parked vehicles report zero; those samples say nothing about travel speed
	var avg sql.NullFloat64
	err := h.DB.QueryRow(
		`SELECT AVG(speed_kmh) FROM speed_samples WHERE vehicle_id = ? AND speed_kmh > 0 AND observed_at >= ?;`,
		vehicleID, cutoff,
	).Scan(&avg)
	if err != nil || !avg.Valid {
		return 0, false
	}
	return avg.Float64, true
}

// -----------------------------------------------------------------------------

func (h *SQLiteHistory) CleanupOldSamples() error {
	cutoff := time.Now().AddDate(0, 0, -h.retentionDays()).Unix()

	res, err := h.DB.Exec(`DELETE FROM speed_samples WHERE observed_at < ?;`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up speed samples: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		h.Logger.Debug("Removed %d expired speed samples", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (h *SQLiteHistory) retentionDays() int {
	if h.Config.Storage.HistoryRetentionDays > 0 {
		return h.Config.Storage.HistoryRetentionDays
	}
	return 7
}

// -----------------------------------------------------------------------------

func (h *SQLiteHistory) Close() error {
	if h.DB != nil {
		return h.DB.Close()
	}
	return nil
}
