package storage

import (
	"database/sql"
	"fmt"

	"transit-observer/src/logger"
	"transit-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------
// PostgresCatalog reads the route network (routes, route_stops, bus_stops) from
// a relational database. The catalog is read-only: the schema is owned by the
// fleet-management side, this process only queries it.
// -----------------------------------------------------------------------------

type PostgresCatalog struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresCatalog(cfg *models.MConfig, log *logger.Logger) (*PostgresCatalog, error) {
	return &PostgresCatalog{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (c *PostgresCatalog) Initialize() error {
	dsn := c.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	c.DB = db
	c.Logger.Info("PostgresCatalog initialized successfully")
	return nil
}

// -----------------------------------------------------------------------------

// GetSegments returns the ordered stop sequence for one route. Ordering is
// done here so callers never see an unsorted sequence.
func (c *PostgresCatalog) GetSegments(routeID int) ([]models.MRouteSegment, error) {
	query := `
		SELECT rs.route_id, rs.stop_id, bs.name, rs.sequence_order,
		       bs.latitude, bs.longitude, rs.travel_time_to_next_seconds
		FROM route_stops rs
		JOIN bus_stops bs ON bs.id = rs.stop_id
		WHERE rs.route_id = $1
		ORDER BY rs.sequence_order ASC;
	`
	rows, err := c.DB.Query(query, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments for route %d: %w", routeID, err)
	}
	defer rows.Close()

	var segments []models.MRouteSegment
	for rows.Next() {
		var seg models.MRouteSegment
		var travel sql.NullInt64
		if err := rows.Scan(&seg.RouteID, &seg.StopID, &seg.StopName, &seg.SequenceOrder,
			&seg.Latitude, &seg.Longitude, &travel); err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		if travel.Valid {
			seg.NominalTravelTimeToNextSeconds = int(travel.Int64)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// -----------------------------------------------------------------------------

func (c *PostgresCatalog) RouteIDs() ([]int, error) {
	rows, err := c.DB.Query(`SELECT id FROM routes WHERE is_active = TRUE ORDER BY id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan route id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// -----------------------------------------------------------------------------

func (c *PostgresCatalog) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
