package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"transit-observer/src/config"
	"transit-observer/src/estimator"
	"transit-observer/src/ingest"
	"transit-observer/src/interfaces"
	"transit-observer/src/logger"
	"transit-observer/src/metrics"
	"transit-observer/src/models"
	"transit-observer/src/pipeline"
	"transit-observer/src/prediction"
	"transit-observer/src/routemodel"
	"transit-observer/src/server"
	"transit-observer/src/storage"
	"transit-observer/src/store"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.Name)

	// 1. Route catalog
	var catalog interfaces.IRouteCatalog

	switch config.Storage.CatalogDriver {
	case "postgres":
		pg, err := storage.NewPostgresCatalog(config.MConfig, appLogger)
		if err != nil {
			appLogger.Critical("Failed to init catalog: %v", err)
		}
		if err := pg.Initialize(); err != nil {
			appLogger.Critical("Failed to connect catalog db: %v", err)
		}
		catalog = pg
	default:
		yc, err := storage.NewYAMLCatalog(config.Storage.CatalogPath)
		if err != nil {
			appLogger.Critical("Failed to load catalog: %v", err)
		}
		catalog = yc
	}
	defer catalog.Close()

	// 2. Speed history (optional, the historical strategy degrades without it)
	var history interfaces.ISpeedHistory
	if config.Storage.HistoryDBPath != "" {
		h, err := storage.NewSQLiteHistory(config.MConfig, appLogger)
		if err != nil {
			appLogger.Critical("Failed to init history db: %v", err)
		}
		if err := h.Initialize(); err != nil {
			appLogger.Critical("Failed to migrate history db: %v", err)
		}
		history = h
		defer h.Close()
	}

	// 3. Live stores and route model
	locations := store.NewLiveLocationStore()
	traffic := store.NewTrafficSignalStore()
	routes := routemodel.NewRouteModel(catalog)

	// 4. Metrics
	collector := metrics.NewCollector()

	// 5. External estimator (optional)
	var est interfaces.IEstimator
	if config.Estimator.URL != "" {
		est = estimator.NewHTTPEstimator(config.Estimator.URL)
	}

	// 6. Prediction engine
	engine := prediction.NewEngine(locations, routes, traffic, history, est, prediction.Options{
		CacheTTL:         time.Duration(config.Pipeline.PredictionCacheTTLSeconds) * time.Second,
		HorizonStops:     config.Pipeline.HorizonStops,
		DefaultSpeedKmh:  config.Pipeline.DefaultSpeedKmh,
		EstimatorTimeout: time.Duration(config.Estimator.TimeoutMs) * time.Millisecond,
		Metrics:          collector,
	})

	// 7. Hub + HTTP server
	hub := server.NewBroadcastHub(locations, engine, collector)
	srv := server.NewServer(config.MConfig, appLogger, hub, locations, engine, collector.Handler())

	// 8. Ingest sources
	var sources []interfaces.IIngestSource
	for _, srcCfg := range config.Ingest.Sources {
		switch srcCfg.Type {
		case "nats":
			sources = append(sources, ingest.NewNATSSource(srcCfg, collector))
		case "gtfsrt":
			sources = append(sources, ingest.NewGTFSRTSource(srcCfg, collector))
		case "simulator":
			sources = append(sources, ingest.NewSimulatorSource(srcCfg, catalog, collector))
		}
	}
	manager := ingest.NewMultiSourceManager(sources, appLogger)

	// 9. Lifecycle context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	locations.StartJanitor(ctx)

	// 10. Start the pipeline
	wrapWg := &sync.WaitGroup{}
	positionsChan := make(chan []models.MVehicleState, 100)
	trafficChan := make(chan models.MTrafficSignal, 100)

	if err := manager.Start(ctx, positionsChan, trafficChan, wrapWg); err != nil {
		appLogger.Critical("Failed to start ingest: %v", err)
	}

	drivers := pipeline.NewDrivers(config.MConfig, locations, traffic, history, engine, hub, collector)
	drivers.Start(ctx, positionsChan, trafficChan)

	// 11. Start Server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
			cancel()
		}
	}()

	appLogger.Info("Pipeline running with %d source(s)", len(sources))

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	if err := manager.Stop(); err != nil {
		appLogger.Error("Error stopping ingest: %v", err)
	}
	wrapWg.Wait()
	appLogger.Info("Shutdown complete.")
}
