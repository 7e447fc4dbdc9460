package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/web3cache/web3cache/internal/api"
	"github.com/web3cache/web3cache/internal/buildinfo"
	"github.com/web3cache/web3cache/internal/config"
	"github.com/web3cache/web3cache/internal/dispatch"
	"github.com/web3cache/web3cache/internal/ingest"
	"github.com/web3cache/web3cache/internal/janitor"
	"github.com/web3cache/web3cache/internal/metrics"
	"github.com/web3cache/web3cache/internal/replay"
	"github.com/web3cache/web3cache/internal/store"
)

func main() {
	// 1. Load and validate environment config
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	log.Printf("web3cache %s (%s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	// 2. Open the store and run migrations
	dbPath := envCfg.DBPath
	if envCfg.DBPathTest != "" {
		log.Printf("using test database %s", envCfg.DBPathTest)
		dbPath = envCfg.DBPathTest
	}
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// 3. Wire services
	collector := metrics.NewCollector()

	subCache := ingest.NewSubscriptionCache(st, envCfg.SubscriptionCacheTTL)
	realtime := ingest.NewRealtimeNotifier(envCfg.RealtimeURL)
	ingestSvc := ingest.NewService(st, subCache, realtime, collector)

	var replaySvc *replay.Service
	if envCfg.ReadURL != "" {
		readClient := replay.NewReadClient(envCfg.ReadURL, envCfg.ReadAPIKey, envCfg.WebhookTimeout)
		replaySvc = replay.NewService(st, readClient)
	} else {
		log.Printf("read service not configured, replay disabled")
	}

	dispatcher := dispatch.New(st, dispatch.Config{
		BatchLimit:     envCfg.DispatchBatchLimit,
		MaxRetries:     envCfg.DispatchMaxRetries,
		RetrySleep:     envCfg.DispatchRetrySleep,
		StepSleep:      envCfg.DispatchStepSleep,
		DrainCooloff:   envCfg.DispatchDrainCooloff,
		InitialDelay:   envCfg.DispatchInitialDelay,
		SuccessDelay:   envCfg.DispatchSuccessDelay,
		MaxDelay:       envCfg.DispatchMaxDelay,
		ClaimWindow:    envCfg.ClaimWindow,
		SentWindow:     envCfg.SentWindow,
		WebhookTimeout: envCfg.WebhookTimeout,
	}, collector)

	jan, err := janitor.New(st, envCfg.JanitorSchedule)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: janitor: %v\n", err)
		os.Exit(1)
	}

	sampler := metrics.NewSampler(collector, st)

	// 4. Start background work and the API server
	dispatcher.Start()
	jan.Start()
	sampler.Start()

	srv := api.NewServer(
		envCfg.ListenAddress,
		envCfg.ConsumerPort,
		int64(envCfg.APIMaxBodyBytes),
		ingestSvc,
		st,
		replaySvc,
		collector,
	)

	go func() {
		log.Printf("consumer API listening on %s:%d", envCfg.ListenAddress, envCfg.ConsumerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %s, shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	sampler.Stop()
	jan.Stop()
	dispatcher.Stop()
	log.Println("Server stopped")
}
