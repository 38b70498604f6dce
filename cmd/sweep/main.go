// Package main provides a one-shot lifecycle sweep: discovery,
// deactivation and detection delivery run once, then the process exits.
// Useful for cron-style scheduling and operational reruns.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"wallet-sentinel/internal/classifier"
	"wallet-sentinel/internal/config"
	"wallet-sentinel/internal/evaluator"
	"wallet-sentinel/internal/lifecycle"
	"wallet-sentinel/internal/notify"
	"wallet-sentinel/internal/storage/migrations"
	pgstore "wallet-sentinel/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("SENTINEL_CONFIG"), "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	skipDiscovery := flag.Bool("skip-discovery", false, "Skip the discovery sweep")
	skipDeactivation := flag.Bool("skip-deactivation", false, "Skip the deactivation sweep")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall sweep timeout")

	flag.Parse()

	logger := log.New(os.Stdout, "[sweep] ", log.LstdFlags)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if cfg.Storage.PostgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Failed to apply migrations: %v", err)
	}

	swaps := pgstore.NewSwapStore(pool)

	eval := evaluator.New(evaluator.Options{
		Config:    cfg.Evaluation,
		SwapStore: swaps,
		Logger:    logger,
	})

	manager := lifecycle.New(lifecycle.Options{
		Config:      *cfg,
		SwapStore:   swaps,
		AggStore:    pgstore.NewAggregationStore(pool),
		WalletStore: pgstore.NewWalletStore(pool),
		Evaluator:   eval,
		Classifier:  classifier.New(cfg.Qualification, nil),
		Notifier:    notify.NewLogNotifier(logger),
		Logger:      logger,
	})

	exitCode := 0

	if !*skipDiscovery {
		res, err := manager.RunDiscovery(ctx)
		if err != nil {
			logger.Printf("Discovery sweep failed: %v", err)
			exitCode = 1
		} else {
			fmt.Printf("discovery: seen=%d evaluated=%d qualified=%d promoted=%d duration=%s\n",
				res.CandidatesSeen, res.Evaluated, res.Qualified, res.Promoted, res.Duration)
		}
	}

	if !*skipDeactivation {
		res, err := manager.RunDeactivation(ctx)
		if err != nil {
			logger.Printf("Deactivation sweep failed: %v", err)
			exitCode = 1
		} else {
			fmt.Printf("deactivation: checked=%d deactivated=%d duration=%s\n",
				res.Checked, res.Deactivated, res.Duration)
		}
	}

	res, err := manager.ProcessAggregations(ctx)
	if err != nil {
		logger.Printf("Detection delivery failed: %v", err)
		exitCode = 1
	} else {
		fmt.Printf("delivery: processed=%d duration=%s\n", res.Processed, res.Duration)
	}

	os.Exit(exitCode)
}

// loadConfig reads the YAML config, or returns defaults without a path.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
