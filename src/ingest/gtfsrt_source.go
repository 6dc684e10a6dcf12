package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"transit-observer/src/logger"
	"transit-observer/src/models"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// -----------------------------------------------------------------------------
// GTFSRTSource polls a GTFS-Realtime VehiclePositions feed over HTTP and
// converts its entities to vehicle states. Entities without a position or
// without a numeric route id are skipped; the rest of the feed still counts.
// -----------------------------------------------------------------------------

const defaultPollInterval = 15 * time.Second

type GTFSRTSource struct {
	Config     models.MSourceConfig
	Logger     *logger.Logger
	Metrics    SourceMetrics
	HttpClient *http.Client
}

// -----------------------------------------------------------------------------

func NewGTFSRTSource(cfg models.MSourceConfig, m SourceMetrics) *GTFSRTSource {
	return &GTFSRTSource{
		Config:     cfg,
		Logger:     logger.NewLogger(fmt.Sprintf("GTFSRTSource(%s)", cfg.Name)),
		Metrics:    m,
		HttpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// -----------------------------------------------------------------------------

func (s *GTFSRTSource) Name() string {
	return s.Config.Name
}

// -----------------------------------------------------------------------------

func (s *GTFSRTSource) Start(ctx context.Context, positions chan<- []models.MVehicleState, traffic chan<- models.MTrafficSignal, wg *sync.WaitGroup) error {
	interval := defaultPollInterval
	if s.Config.PollIntervalSeconds > 0 {
		interval = time.Duration(s.Config.PollIntervalSeconds) * time.Second
	}

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// First poll right away, then on the ticker
		s.poll(ctx, positions)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.poll(ctx, positions)
			}
		}
	}()

	s.Logger.Info("Polling %s every %s", s.Config.URL, interval)
	return nil
}

// -----------------------------------------------------------------------------

func (s *GTFSRTSource) poll(ctx context.Context, positions chan<- []models.MVehicleState) {
	batch, err := s.fetch(ctx)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.IngestErrInc(s.Config.Name)
		}
		s.Logger.Warning("poll failed: %v", err)
		return
	}
	if len(batch) == 0 {
		return
	}
	select {
	case positions <- batch:
		if s.Metrics != nil {
			s.Metrics.IngestBatchInc(s.Config.Name)
		}
	case <-ctx.Done():
	}
}

// -----------------------------------------------------------------------------

func (s *GTFSRTSource) fetch(ctx context.Context) ([]models.MVehicleState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Config.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.Config.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, s.Config.URL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var feed gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	var batch []models.MVehicleState
	for _, entity := range feed.Entity {
		v := entity.Vehicle
		if v == nil || v.Position == nil {
			continue
		}
		if v.Position.Latitude == nil || v.Position.Longitude == nil {
			continue
		}
		if v.Trip == nil || v.Trip.RouteId == nil {
			continue
		}
		routeID, err := strconv.Atoi(*v.Trip.RouteId)
		if err != nil {
			continue
		}

		var rawID string
		if v.Vehicle != nil && v.Vehicle.Id != nil {
			rawID = *v.Vehicle.Id
		} else if v.Trip.TripId != nil {
			rawID = *v.Trip.TripId
		}
		vehicleID, err := strconv.Atoi(rawID)
		if err != nil {
			continue
		}

		state := models.MVehicleState{
			VehicleID:  vehicleID,
			RouteID:    routeID,
			Latitude:   float64(*v.Position.Latitude),
			Longitude:  float64(*v.Position.Longitude),
			ObservedAt: time.Now(),
		}
		if v.Position.Speed != nil {
			state.Speed = float64(*v.Position.Speed) * 3.6 // m/s -> km/h
		}
		if v.Position.Bearing != nil {
			state.Direction = float64(*v.Position.Bearing)
		}
		if v.Timestamp != nil {
			state.ObservedAt = time.Unix(int64(*v.Timestamp), 0)
		}
		batch = append(batch, state)
	}
	return batch, nil
}

// -----------------------------------------------------------------------------

func (s *GTFSRTSource) Stop() error {
	return nil
}
