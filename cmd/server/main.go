// Package main provides the unified wallet-sentinel server:
// - Ingestion (continuous): swap feed, ordering, position aggregation
// - Discovery (scheduled): wallet evaluation, classification, promotion
// - Deactivation (scheduled): demotion of decayed wallets
// - Delivery (scheduled): downstream notification of detections
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"wallet-sentinel/internal/aggregator"
	"wallet-sentinel/internal/classifier"
	"wallet-sentinel/internal/config"
	"wallet-sentinel/internal/evaluator"
	"wallet-sentinel/internal/ingestion"
	"wallet-sentinel/internal/lifecycle"
	"wallet-sentinel/internal/notify"
	"wallet-sentinel/internal/observability"
	"wallet-sentinel/internal/storage"
	chstore "wallet-sentinel/internal/storage/clickhouse"
	"wallet-sentinel/internal/storage/memory"
	"wallet-sentinel/internal/storage/migrations"
	pgstore "wallet-sentinel/internal/storage/postgres"
)

// Server holds all components of the unified service.
type Server struct {
	cfg    *config.Config
	stores *allStores

	aggregator *aggregator.Aggregator
	manager    *lifecycle.Manager
	logger     *log.Logger

	mu                  sync.Mutex
	started             time.Time
	lastDiscoveryRun    time.Time
	lastDeactivationRun time.Time
	discoverySweeps     int
	deactivationSweeps  int
	walletsPromoted     int
	walletsDeactivated  int
}

// allStores holds all storage implementations.
type allStores struct {
	swapStore         storage.SwapStore
	aggregationStore  storage.AggregationStore
	walletStore       storage.WalletStore
	scoreHistoryStore storage.ScoreHistoryStore
}

func main() {
	configPath := flag.String("config", os.Getenv("SENTINEL_CONFIG"), "Path to YAML config file")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("FEED_WS_ENDPOINT"), "Normalized swap feed WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Flags override config file values.
	if *wsEndpoint != "" {
		cfg.Feed.WSEndpoint = *wsEndpoint
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	if cfg.Feed.WSEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if !cfg.Storage.UseMemory && cfg.Storage.PostgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := newServer(cfg, stores, logger)

	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(cfg.Metrics.Addr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// loadConfig reads the YAML config, or returns defaults without a path.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newServer wires the detection components together.
func newServer(cfg *config.Config, stores *allStores, logger *log.Logger) *Server {
	agg := aggregator.New(aggregator.Options{
		Config:            cfg.Aggregation,
		SwapStore:         stores.swapStore,
		AggregationStore:  stores.aggregationStore,
		ScoreHistoryStore: stores.scoreHistoryStore,
		Logger:            log.New(os.Stdout, "[aggregator] ", log.LstdFlags),
	})

	eval := evaluator.New(evaluator.Options{
		Config:    cfg.Evaluation,
		SwapStore: stores.swapStore,
		Logger:    log.New(os.Stdout, "[evaluator] ", log.LstdFlags),
	})

	manager := lifecycle.New(lifecycle.Options{
		Config:      *cfg,
		SwapStore:   stores.swapStore,
		AggStore:    stores.aggregationStore,
		WalletStore: stores.walletStore,
		Evaluator:   eval,
		Classifier:  classifier.New(cfg.Qualification, nil),
		Notifier:    notify.NewLogNotifier(log.New(os.Stdout, "[notify] ", log.LstdFlags)),
		Logger:      log.New(os.Stdout, "[lifecycle] ", log.LstdFlags),
	})

	return &Server{
		cfg:        cfg,
		stores:     stores,
		aggregator: agg,
		manager:    manager,
		logger:     logger,
	}
}

// createStores creates all required stores and applies migrations.
func createStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	if cfg.Storage.UseMemory {
		stores := &allStores{
			swapStore:         memory.NewSwapStore(),
			aggregationStore:  memory.NewAggregationStore(),
			walletStore:       memory.NewWalletStore(),
			scoreHistoryStore: memory.NewScoreHistoryStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	stores := &allStores{
		swapStore:        pgstore.NewSwapStore(pool),
		aggregationStore: pgstore.NewAggregationStore(pool),
		walletStore:      pgstore.NewWalletStore(pool),
	}

	cleanup := func() { pool.Close() }

	// Score history is analytics-only; run without it if ClickHouse is
	// not configured.
	if cfg.Storage.ClickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
		}
		stores.scoreHistoryStore = chstore.NewScoreHistoryStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// Run starts all components. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting wallet-sentinel server...")

	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	errCh := make(chan error, 2)

	go func() {
		err := s.runIngestion(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("ingestion: %w", err)
		}
	}()

	go func() {
		err := s.runSweepScheduler(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("sweep scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runIngestion runs continuous swap feed ingestion.
func (s *Server) runIngestion(ctx context.Context) error {
	source := ingestion.NewWSSwapSource(s.cfg.Feed.WSEndpoint,
		log.New(os.Stdout, "[feed] ", log.LstdFlags))

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:        source,
		SwapStore:     s.stores.swapStore,
		Aggregator:    s.aggregator,
		LagWindow:     s.cfg.Feed.LagWindow.Std(),
		FlushInterval: s.cfg.Feed.FlushInterval.Std(),
		Logger:        log.New(os.Stdout, "[ingestion] ", log.LstdFlags|log.Lshortfile),
	})

	s.logger.Println("Ingestion started")
	return runner.Run(ctx)
}

// runSweepScheduler drives the periodic lifecycle sweeps. Detections are
// delivered more often than wallets are re-evaluated.
func (s *Server) runSweepScheduler(ctx context.Context) error {
	sweepInterval := s.cfg.Discovery.SweepInterval.Std()
	s.logger.Printf("Starting sweep scheduler (interval: %v)...", sweepInterval)

	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	deliveryTicker := time.NewTicker(time.Minute)
	defer deliveryTicker.Stop()

	// First sweep runs on start so a fresh deployment begins tracking
	// without waiting a full interval.
	s.runSweeps(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweepTicker.C:
			s.runSweeps(ctx)
		case <-deliveryTicker.C:
			if _, err := s.manager.ProcessAggregations(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Printf("Aggregation delivery error: %v", err)
			}
		}
	}
}

// runSweeps executes one discovery plus one deactivation pass.
func (s *Server) runSweeps(ctx context.Context) {
	if res, err := s.manager.RunDiscovery(ctx); err != nil {
		if !errors.Is(err, lifecycle.ErrSweepInProgress) && !errors.Is(err, context.Canceled) {
			s.logger.Printf("Discovery sweep error: %v", err)
		}
	} else {
		s.mu.Lock()
		s.lastDiscoveryRun = time.Now()
		s.discoverySweeps++
		s.walletsPromoted += res.Promoted
		s.mu.Unlock()
	}

	if res, err := s.manager.RunDeactivation(ctx); err != nil {
		if !errors.Is(err, lifecycle.ErrSweepInProgress) && !errors.Is(err, context.Canceled) {
			s.logger.Printf("Deactivation sweep error: %v", err)
		}
	} else {
		s.mu.Lock()
		s.lastDeactivationRun = time.Now()
		s.deactivationSweeps++
		s.walletsDeactivated += res.Deactivated
		s.mu.Unlock()
	}
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status              string    `json:"status"`
	Uptime              string    `json:"uptime"`
	OpenWindows         int       `json:"open_windows"`
	LastDiscoveryRun    time.Time `json:"last_discovery_run,omitempty"`
	LastDeactivationRun time.Time `json:"last_deactivation_run,omitempty"`
	DiscoverySweeps     int       `json:"discovery_sweeps"`
	DeactivationSweeps  int       `json:"deactivation_sweeps"`
	WalletsPromoted     int       `json:"wallets_promoted"`
	WalletsDeactivated  int       `json:"wallets_deactivated"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:              "running",
		Uptime:              time.Since(s.started).String(),
		OpenWindows:         s.aggregator.OpenWindows(),
		LastDiscoveryRun:    s.lastDiscoveryRun,
		LastDeactivationRun: s.lastDeactivationRun,
		DiscoverySweeps:     s.discoverySweeps,
		DeactivationSweeps:  s.deactivationSweeps,
		WalletsPromoted:     s.walletsPromoted,
		WalletsDeactivated:  s.walletsDeactivated,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
