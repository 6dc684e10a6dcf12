package pipeline

import (
	"context"
	"time"

	"transit-observer/src/helpers"
	"transit-observer/src/interfaces"
	"transit-observer/src/logger"
	"transit-observer/src/models"
	"transit-observer/src/prediction"
	"transit-observer/src/store"
)

// -----------------------------------------------------------------------------
// The three periodic drivers of the pipeline. Each runs its own goroutine on
// its own cadence and survives a bad tick: a panic or error in one tick is
// logged and the next tick still happens.
// -----------------------------------------------------------------------------

const (
	DefaultPredictSweep = 300 * time.Second
	DefaultBroadcast    = 10 * time.Second
)

// PipelineMetrics is the slice of the metrics surface the drivers touch.
type PipelineMetrics interface {
	PredictionsAdd(n int)
	PredictSweepObserve(d time.Duration)
	BroadcastObserve(d time.Duration)
}

type Drivers struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Metrics PipelineMetrics

	Locations *store.LiveLocationStore
	Traffic   *store.TrafficSignalStore
	History   interfaces.ISpeedHistory
	Engine    *prediction.Engine
	Exchanger interfaces.IDataExchanger
}

// -----------------------------------------------------------------------------

func NewDrivers(cfg *models.MConfig, locations *store.LiveLocationStore, traffic *store.TrafficSignalStore, history interfaces.ISpeedHistory, engine *prediction.Engine, exchanger interfaces.IDataExchanger, m PipelineMetrics) *Drivers {
	return &Drivers{
		Config:    cfg,
		Logger:    logger.NewLogger("Pipeline"),
		Metrics:   m,
		Locations: locations,
		Traffic:   traffic,
		History:   history,
		Engine:    engine,
		Exchanger: exchanger,
	}
}

// -----------------------------------------------------------------------------

// Start launches all three drivers. They stop when ctx is cancelled.
func (d *Drivers) Start(ctx context.Context, positions <-chan []models.MVehicleState, traffic <-chan models.MTrafficSignal) {
	go d.runIngest(ctx, positions, traffic)
	go d.runPredictSweep(ctx)
	go d.runBroadcast(ctx)
}

// -----------------------------------------------------------------------------
// Ingest driver
// -----------------------------------------------------------------------------

func (d *Drivers) runIngest(ctx context.Context, positions <-chan []models.MVehicleState, traffic <-chan models.MTrafficSignal) {
	locationTTL := d.locationTTL()
	trafficTTL := d.trafficTTL()

	for {
		select {
		case <-ctx.Done():
			return

		case batch := <-positions:
			_ = helpers.RunTickSafely(d.Logger, "ingest-batch", func() error {
				d.applyBatch(batch, locationTTL)
				return nil
			})

		case signal := <-traffic:
			_ = helpers.RunTickSafely(d.Logger, "ingest-traffic", func() error {
				d.Traffic.Set(signal, trafficTTL)
				return nil
			})
		}
	}
}

func (d *Drivers) applyBatch(batch []models.MVehicleState, locationTTL time.Duration) {
	for _, state := range batch {
		d.Locations.Set(state, locationTTL)
		// A fresh position makes the cached prediction stale
		d.Engine.Invalidate(state.RouteID, state.VehicleID)
		if d.History != nil {
			if err := d.History.RecordSample(state.VehicleID, state.Speed); err != nil {
				d.Logger.Warning("speed sample for vehicle %d not recorded: %v", state.VehicleID, err)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Prediction sweep driver
// -----------------------------------------------------------------------------

func (d *Drivers) runPredictSweep(ctx context.Context) {
	interval := DefaultPredictSweep
	if d.Config.Pipeline.PredictSweepSeconds > 0 {
		interval = time.Duration(d.Config.Pipeline.PredictSweepSeconds) * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = helpers.RunTickSafely(d.Logger, "predict-sweep", func() error {
				start := time.Now()
				n := d.Engine.PredictAll()
				if d.Metrics != nil {
					d.Metrics.PredictionsAdd(n)
					d.Metrics.PredictSweepObserve(time.Since(start))
				}
				d.Logger.Debug("prediction sweep covered %d vehicles", n)

				if d.History != nil {
					return d.History.CleanupOldSamples()
				}
				return nil
			})
		}
	}
}

// -----------------------------------------------------------------------------
// Broadcast driver
// -----------------------------------------------------------------------------

func (d *Drivers) runBroadcast(ctx context.Context) {
	interval := DefaultBroadcast
	if d.Config.Pipeline.BroadcastSeconds > 0 {
		interval = time.Duration(d.Config.Pipeline.BroadcastSeconds) * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = helpers.RunTickSafely(d.Logger, "broadcast", func() error {
				start := time.Now()
				d.Exchanger.Tick()
				if d.Metrics != nil {
					d.Metrics.BroadcastObserve(time.Since(start))
				}
				return nil
			})
		}
	}
}

// -----------------------------------------------------------------------------

func (d *Drivers) locationTTL() time.Duration {
	if d.Config.Pipeline.LocationTTLSeconds > 0 {
		return time.Duration(d.Config.Pipeline.LocationTTLSeconds) * time.Second
	}
	return store.DefaultLocationTTL
}

func (d *Drivers) trafficTTL() time.Duration {
	if d.Config.Pipeline.TrafficTTLSeconds > 0 {
		return time.Duration(d.Config.Pipeline.TrafficTTLSeconds) * time.Second
	}
	return store.DefaultTrafficTTL
}
