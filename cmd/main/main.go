package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trade-agent/src/agent"
	"trade-agent/src/clients"
	"trade-agent/src/config"
	datasource "trade-agent/src/data_source"
	"trade-agent/src/execution"
	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/network"
	"trade-agent/src/reliability"
	"trade-agent/src/server"
	"trade-agent/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Secrets come from the environment; .env is a convenience for local runs.
	_ = godotenv.Load()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Durable storage with the degrade ladder on top
	db, err := storage.NewStateStore(cfg.MAgentConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
		os.Exit(1)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	store := storage.NewResilientStore(db, appLogger)

	// 2. External service clients
	broker := clients.NewBrokerClient(cfg.Services.BrokerURL, os.Getenv("BROKER_API_KEY"), appLogger)
	llm := clients.NewLLMClient(cfg.Services.LLMBackendURL, os.Getenv("LLM_API_KEY"), appLogger)
	riskMgr := clients.NewRiskManagerClient(cfg.Services.RiskManagerURL, appLogger)
	swarm := clients.NewSwarmClient(cfg.Services.SwarmRegistryURL, appLogger)

	// 3. Signal sources behind the shared network manager and read budget
	netManager := network.NewManager(&cfg.Network, appLogger)
	bucket := reliability.NewTokenBucket(cfg.DailyReadBudget, cfg.DailyReadBudget)

	sources := make([]interfaces.ISignalSource, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		sources = append(sources,
			datasource.NewWebFeedSource(feed.Name, feed.URL, feed.Weight, feed.Budgeted, netManager, appLogger))
	}
	sourceManager := datasource.NewMultiSourceManager(sources, bucket, appLogger)

	// 4. Execution gateway (idempotent submission layer)
	gateway := execution.NewGateway(broker, db, appLogger)

	// 5. The agent itself
	ag, err := agent.New(cfg.MAgentConfig, agent.Deps{
		Store:   store,
		Gateway: gateway,
		Sources: sourceManager,
		Broker:  broker,
		Market:  broker,
		LLM:     llm,
		RiskMgr: riskMgr,
		Swarm:   swarm,
		Bucket:  bucket,
		Logger:  appLogger,
	})
	if err != nil {
		appLogger.Critical("Failed to build agent: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Side activities: stress tests, swarm sync, interval re-optimization
	scheduler, err := ag.StartSideActivities(ctx)
	if err != nil {
		appLogger.Critical("Failed to schedule side activities: %v", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// 7. Operator surface
	srv := server.NewAPIServer(cfg.MAgentConfig, ag, appLogger)
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 8. Snapshot broadcast for dashboard clients
	go func() {
		interval := time.Duration(cfg.TickSeconds) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.PublishSnapshot()
			}
		}
	}()

	// 9. Control loop until SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		appLogger.Info("Shutting down...")
		cancel()
	}()

	ag.Run(ctx)
	appLogger.Info("Agent stopped.")
}
