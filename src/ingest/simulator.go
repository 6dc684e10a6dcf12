package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"transit-observer/src/geo"
	"transit-observer/src/interfaces"
	"transit-observer/src/logger"
	"transit-observer/src/models"
)

// -----------------------------------------------------------------------------
// SimulatorSource moves a synthetic fleet along the catalog's routes and emits
// positions on a fixed cadence. Useful for development and demos when no real
// feed is around. It also emits a synthetic traffic signal per route once a
// minute so the prediction strategies have something to blend against.
// -----------------------------------------------------------------------------

const (
	simVehiclesPerRoute  = 2
	simTrafficInterval   = 60 * time.Second
	simMinSpeedKmh       = 15.0
	simMaxSpeedKmh       = 45.0
	simDefaultTickPeriod = 5 * time.Second
)

type simVehicle struct {
	id       int
	routeID  int
	segments []models.MRouteSegment
	segment  int     // index of the segment the vehicle is on
	progress float64 // fraction travelled along the current segment
	speedKmh float64
}

type SimulatorSource struct {
	Config  models.MSourceConfig
	Catalog interfaces.IRouteCatalog
	Logger  *logger.Logger
	Metrics SourceMetrics

	rng      *rand.Rand
	vehicles []*simVehicle
}

// -----------------------------------------------------------------------------

func NewSimulatorSource(cfg models.MSourceConfig, catalog interfaces.IRouteCatalog, m SourceMetrics) *SimulatorSource {
	return &SimulatorSource{
		Config:  cfg,
		Catalog: catalog,
		Logger:  logger.NewLogger(fmt.Sprintf("Simulator(%s)", cfg.Name)),
		Metrics: m,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// -----------------------------------------------------------------------------

func (s *SimulatorSource) Name() string {
	return s.Config.Name
}

// -----------------------------------------------------------------------------

func (s *SimulatorSource) Start(ctx context.Context, positions chan<- []models.MVehicleState, traffic chan<- models.MTrafficSignal, wg *sync.WaitGroup) error {
	if err := s.buildFleet(); err != nil {
		return err
	}

	period := simDefaultTickPeriod
	if s.Config.PollIntervalSeconds > 0 {
		period = time.Duration(s.Config.PollIntervalSeconds) * time.Second
	}

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		trafficTicker := time.NewTicker(simTrafficInterval)
		defer trafficTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				batch := s.advance(period)
				if len(batch) == 0 {
					continue
				}
				select {
				case positions <- batch:
					if s.Metrics != nil {
						s.Metrics.IngestBatchInc(s.Config.Name)
					}
				case <-ctx.Done():
					return
				}
			case <-trafficTicker.C:
				for _, signal := range s.syntheticTraffic() {
					select {
					case traffic <- signal:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	s.Logger.Info("Simulating %d vehicles every %s", len(s.vehicles), period)
	return nil
}

// -----------------------------------------------------------------------------

func (s *SimulatorSource) buildFleet() error {
	routeIDs, err := s.Catalog.RouteIDs()
	if err != nil {
		return fmt.Errorf("failed to list routes: %w", err)
	}

	for _, routeID := range routeIDs {
		segments, err := s.Catalog.GetSegments(routeID)
		if err != nil {
			return fmt.Errorf("failed to load route %d: %w", routeID, err)
		}
		if len(segments) < 2 {
			s.Logger.Warning("route %d has fewer than two stops, skipping", routeID)
			continue
		}
		for i := 0; i < simVehiclesPerRoute; i++ {
			// Synthetic ids live in their own numeric range per route
			s.vehicles = append(s.vehicles, &simVehicle{
				id:       routeID*100 + i + 1,
				routeID:  routeID,
				segments: segments,
				segment:  s.rng.Intn(len(segments) - 1),
				progress: s.rng.Float64(),
				speedKmh: simMinSpeedKmh + s.rng.Float64()*(simMaxSpeedKmh-simMinSpeedKmh),
			})
		}
	}
	if len(s.vehicles) == 0 {
		return fmt.Errorf("catalog produced no usable routes")
	}
	return nil
}

// -----------------------------------------------------------------------------

// advance moves every vehicle along its route by elapsed time and returns the
// resulting position batch. Vehicles wrap around to the first stop at the end
// of the line.
func (s *SimulatorSource) advance(elapsed time.Duration) []models.MVehicleState {
	now := time.Now()
	batch := make([]models.MVehicleState, 0, len(s.vehicles))

	for _, v := range s.vehicles {
		// Small speed jitter each tick so averages stay interesting
		v.speedKmh += (s.rng.Float64() - 0.5) * 4
		if v.speedKmh < simMinSpeedKmh {
			v.speedKmh = simMinSpeedKmh
		}
		if v.speedKmh > simMaxSpeedKmh {
			v.speedKmh = simMaxSpeedKmh
		}

		travelledKm := v.speedKmh * elapsed.Hours()
		for travelledKm > 0 {
			from := v.segments[v.segment]
			to := v.segments[v.segment+1]
			segKm := geo.Distance(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
			if segKm <= 0 {
				v.segment = (v.segment + 1) % (len(v.segments) - 1)
				v.progress = 0
				break
			}
			remainingKm := segKm * (1 - v.progress)
			if travelledKm < remainingKm {
				v.progress += travelledKm / segKm
				travelledKm = 0
			} else {
				travelledKm -= remainingKm
				v.segment = (v.segment + 1) % (len(v.segments) - 1)
				v.progress = 0
			}
		}

		from := v.segments[v.segment]
		to := v.segments[v.segment+1]
		lat := from.Latitude + (to.Latitude-from.Latitude)*v.progress
		lon := from.Longitude + (to.Longitude-from.Longitude)*v.progress

		batch = append(batch, models.MVehicleState{
			VehicleID:  v.id,
			RouteID:    v.routeID,
			Latitude:   lat,
			Longitude:  lon,
			Speed:      v.speedKmh,
			Direction:  geo.Bearing(from.Latitude, from.Longitude, to.Latitude, to.Longitude),
			ObservedAt: now,
		})
	}
	return batch
}

// -----------------------------------------------------------------------------

func (s *SimulatorSource) syntheticTraffic() []models.MTrafficSignal {
	now := time.Now()
	levels := []string{models.TrafficLight, models.TrafficModerate, models.TrafficHeavy, models.TrafficSevere}

	seen := make(map[int]bool)
	var signals []models.MTrafficSignal
	for _, v := range s.vehicles {
		if seen[v.routeID] {
			continue
		}
		seen[v.routeID] = true
		level := levels[s.rng.Intn(len(levels))]
		signals = append(signals, models.MTrafficSignal{
			RouteID:         v.routeID,
			Level:           level,
			AverageSpeedKmh: simMinSpeedKmh + s.rng.Float64()*(simMaxSpeedKmh-simMinSpeedKmh),
			ObservedAt:      now,
		})
	}
	return signals
}

// -----------------------------------------------------------------------------

func (s *SimulatorSource) Stop() error {
	return nil
}
