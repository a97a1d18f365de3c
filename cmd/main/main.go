package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-viewer/src/config"
	"market-viewer/src/connection"
	"market-viewer/src/directory"
	"market-viewer/src/grpc_control"
	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/logger"
	"market-viewer/src/models"
	"market-viewer/src/network"
	"market-viewer/src/series"
	"market-viewer/src/server"
	"market-viewer/src/storage"
	"market-viewer/src/utils"
	"market-viewer/src/view"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file (defaults and environment only when empty)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Instrument directory
	repo, err := storage.NewInstrumentRepository(cfg.MConfig, appLogger.With("storage"))
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	dir := loadDirectory(ctx, cfg.MConfig, repo, appLogger)
	if repo != nil {
		defer repo.Close()
	}

	// 3. Event loop owning every piece of view state
	loop := utils.NewEventLoop(0)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go loop.Run(loopCtx)

	dialer := &network.WebsocketDialer{
		Post:             loop.Post,
		HandshakeTimeout: cfg.HandshakeTimeout(),
		SendQueue:        cfg.Feed.SendQueue,
		Logger:           appLogger.With("transport"),
	}
	connOpts := connection.Options{
		URL:            cfg.Feed.URL,
		Heartbeat:      cfg.HeartbeatInterval(),
		ReconnectDelay: cfg.ReconnectDelay(),
	}

	market := view.NewMarket(
		view.Options{
			Limits: series.Limits{
				MaxCandles:     cfg.Series.MaxCandles,
				MaxQuotePoints: cfg.Series.MaxQuotePoints,
				DefaultWindow:  cfg.Series.DefaultWindowSeconds,
			},
			DefaultResolution: cfg.View.DefaultResolutionSecs,
		},
		dir,
		utils.NewSessionClock(appLogger.With("calendar")),
		func(handler interfaces.IFeedHandler) view.Connection {
			return connection.NewManager(connOpts, dialer, loop, handler, appLogger.With("connection"))
		},
		appLogger.With("market"),
	)

	// 4. Outer surfaces
	health := grpc_control.NewHealthService(appLogger.With("grpc"))
	api := server.NewAPIServer(cfg.MConfig, market, loop, dir, appLogger.With("api"))
	publisher := server.NewPublisher(cfg.View.PublishPerSecond, loop, nil, func() *models.MViewMessage {
		return server.Snapshot(market, time.Now())
	}, api)

	if err := loop.Do(ctx, func() {
		market.OnChange(func() {
			publisher.Notify()
			health.SetFeedState(market.State())
		})
	}); err != nil {
		appLogger.Critical("Failed to wire market: %v", err)
	}

	go func() {
		if err := api.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
			stop()
		}
	}()

	if cfg.Server.GrpcPort > 0 {
		go func() {
			if err := health.ListenAndServe(cfg.Server.Host, cfg.Server.GrpcPort); err != nil {
				appLogger.Error("gRPC health failed: %v", err)
			}
		}()
	}

	appLogger.Info("Market viewer ready, feed %s", cfg.Feed.URL)
	<-ctx.Done()

	// 5. Shutdown
	appLogger.Info("Shutting down...")
	if err := api.Stop(); err != nil {
		appLogger.Warning("HTTP shutdown: %v", err)
	}
	health.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := loop.Do(shutdownCtx, func() {
		publisher.Stop()
		market.Close()
	}); err != nil {
		appLogger.Warning("Market close: %v", err)
	}
	stopLoop()
	<-loop.Done()
}

// -----------------------------------------------------------------------------

// loadDirectory builds the instrument directory from storage, the config file
// and the built-in list, and stores the merged result back.
func loadDirectory(ctx context.Context, cfg *models.MConfig, repo interfaces.IInstrumentRepository, log *logger.Logger) *directory.Directory {
	if repo == nil {
		dir := directory.NewDefault()
		dir.AddMany(cfg.Instruments)
		return dir
	}

	if err := helpers.RetryWithBackoff(ctx, "initialize storage", 5, 500*time.Millisecond, repo.Initialize); err != nil {
		log.Critical("Failed to migrate db: %v", err)
	}

	stored, err := repo.LoadInstruments()
	if err != nil {
		log.Warning("Failed to load instruments, using defaults: %v", err)
	}

	var dir *directory.Directory
	if len(stored) == 0 {
		dir = directory.NewDefault()
	} else {
		dir = directory.New(stored)
	}
	dir.AddMany(cfg.Instruments)

	if err := repo.SaveInstruments(dir.All()); err != nil {
		log.Warning("Failed to save instruments: %v", err)
	}
	log.Info("Instrument directory holds %d entries", len(dir.All()))
	return dir
}
