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
	"market-viewer/src/directory"
	"market-viewer/src/logger"
	"market-viewer/src/simulator"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file, used for log level and extra instruments")
	addr := flag.String("addr", "127.0.0.1:8080", "listen address; the feed is served on /quotes")
	interval := flag.Duration("interval", time.Second, "time between price steps")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random walk seed")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewLogger(cfg.MConfig, "feedsim")

	dir := directory.NewDefault()
	dir.AddMany(cfg.Instruments)

	feed := simulator.NewFeed(dir.All(), *seed)
	srv := simulator.NewServer(feed, *interval, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx, *addr); err != nil {
		appLogger.Critical("Feed simulator failed: %v", err)
	}
	appLogger.Info("Feed simulator stopped")
}
