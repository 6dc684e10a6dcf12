package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"transit-observer/src/logger"
	"transit-observer/src/models"

	"github.com/nats-io/nats.go"
)

// -----------------------------------------------------------------------------
// NATSSource subscribes to vehicle position and traffic subjects on a NATS
// server. Positions arrive as JSON batches published by the fleet gateway;
// traffic signals as single JSON objects.
// -----------------------------------------------------------------------------

// SourceMetrics is the slice of the metrics surface ingest sources touch.
type SourceMetrics interface {
	IngestBatchInc(source string)
	IngestErrInc(source string)
	NATSSetConnected(connected bool)
}

type NATSSource struct {
	Config  models.MSourceConfig
	Logger  *logger.Logger
	Metrics SourceMetrics

	mu   sync.Mutex
	nc   *nats.Conn
	subs []*nats.Subscription
}

// -----------------------------------------------------------------------------

func NewNATSSource(cfg models.MSourceConfig, m SourceMetrics) *NATSSource {
	return &NATSSource{
		Config:  cfg,
		Logger:  logger.NewLogger(fmt.Sprintf("NATSSource(%s)", cfg.Name)),
		Metrics: m,
	}
}

// -----------------------------------------------------------------------------

func (s *NATSSource) Name() string {
	return s.Config.Name
}

// -----------------------------------------------------------------------------

func (s *NATSSource) Start(ctx context.Context, positions chan<- []models.MVehicleState, traffic chan<- models.MTrafficSignal, wg *sync.WaitGroup) error {
	nc, err := nats.Connect(s.Config.URL,
		nats.Name("transit-observer"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if s.Metrics != nil {
				s.Metrics.NATSSetConnected(false)
			}
			s.Logger.Warning("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if s.Metrics != nil {
				s.Metrics.NATSSetConnected(true)
			}
			s.Logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if s.Metrics != nil {
				s.Metrics.NATSSetConnected(false)
			}
			s.Logger.Info("nats closed")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", s.Config.URL, err)
	}
	s.nc = nc
	if s.Metrics != nil {
		s.Metrics.NATSSetConnected(true)
	}

	posSub, err := nc.Subscribe(s.Config.Subject, func(msg *nats.Msg) {
		var batch []models.MVehicleState
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			if s.Metrics != nil {
				s.Metrics.IngestErrInc(s.Config.Name)
			}
			s.Logger.Warning("dropping malformed position batch: %v", err)
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
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", s.Config.Subject, err)
	}
	s.subs = append(s.subs, posSub)

	if s.Config.TrafficSubject != "" {
		trafficSub, err := nc.Subscribe(s.Config.TrafficSubject, func(msg *nats.Msg) {
			var signal models.MTrafficSignal
			if err := json.Unmarshal(msg.Data, &signal); err != nil {
				if s.Metrics != nil {
					s.Metrics.IngestErrInc(s.Config.Name)
				}
				s.Logger.Warning("dropping malformed traffic signal: %v", err)
				return
			}
			select {
			case traffic <- signal:
			case <-ctx.Done():
			}
		})
		if err != nil {
			nc.Close()
			return fmt.Errorf("failed to subscribe to %s: %w", s.Config.TrafficSubject, err)
		}
		s.subs = append(s.subs, trafficSub)
	}

	s.Logger.Info("Subscribed to %s (traffic: %s)", s.Config.Subject, s.Config.TrafficSubject)

	// Subscriptions are callback driven; this goroutine only waits for shutdown
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.drain()
	}()

	return nil
}

// -----------------------------------------------------------------------------

func (s *NATSSource) Stop() error {
	s.drain()
	return nil
}

func (s *NATSSource) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
	if s.nc != nil {
		_ = s.nc.Drain()
		s.nc.Close()
		s.nc = nil
	}
}
