// Package config holds every tunable threshold of the detection engine in
// one place. The algorithms never hardcode thresholds; they receive a
// section of this structure.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for wallet-sentinel.
type Config struct {
	Aggregation   AggregationConfig   `yaml:"aggregation"`
	Qualification QualificationConfig `yaml:"qualification"`
	Deactivation  DeactivationConfig  `yaml:"deactivation"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Evaluation    EvaluationConfig    `yaml:"evaluation"`
	Storage       StorageConfig       `yaml:"storage"`
	Feed          FeedConfig          `yaml:"feed"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// AggregationConfig parameterizes the position aggregator.
type AggregationConfig struct {
	TimeWindowMinutes int     `yaml:"time_window_minutes"` // max spread of a window from its first buy
	SizeTolerance     float64 `yaml:"size_tolerance"`      // max coefficient of variation to join a window
	MinPurchaseCount  int     `yaml:"min_purchase_count"`  // window eligibility: number of buys
	MinTotalUSD       float64 `yaml:"min_total_usd"`       // window eligibility: combined size
}

// QualificationConfig holds the smart-money gates. A wallet must pass all
// of them to qualify.
type QualificationConfig struct {
	MinWinRate        float64 `yaml:"min_win_rate"`
	MinTotalPnL       float64 `yaml:"min_total_pnl"`
	MinAvgTradeSize   float64 `yaml:"min_avg_trade_size"`
	MinTotalTrades    int     `yaml:"min_total_trades"`
	MinMaxTradeSize   float64 `yaml:"min_max_trade_size"`
	MaxInactivityDays int     `yaml:"max_inactivity_days"`
}

// DeactivationConfig holds the thresholds for demoting active wallets.
type DeactivationConfig struct {
	MinWinRate        float64 `yaml:"min_win_rate"`
	MaxInactivityDays int     `yaml:"max_inactivity_days"`
	MinTotalPnL       float64 `yaml:"min_total_pnl"` // negative floor
	MinAvgTradeSize   float64 `yaml:"min_avg_trade_size"`
}

// DiscoveryConfig bounds the discovery sweep.
type DiscoveryConfig struct {
	MaxNewWalletsPerSweep int      `yaml:"max_new_wallets_per_sweep"`
	SweepInterval         Duration `yaml:"sweep_interval"`
	LookbackHours         int      `yaml:"lookback_hours"` // how far back to look for candidate wallets
}

// EvaluationConfig parameterizes the performance evaluator.
type EvaluationConfig struct {
	MinTransactions   int      `yaml:"min_transactions"`    // below this the result is insufficient-data
	MaxTransactions   int      `yaml:"max_transactions"`    // history cap for bounded cost
	EarlyEntryMinutes int      `yaml:"early_entry_minutes"` // buys within this of token first trade count as early
	FirstTradeTimeout Duration `yaml:"first_trade_timeout"` // store lookup timeout, degrades to "not early"
}

// StorageConfig holds connection strings.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	UseMemory     bool   `yaml:"use_memory"`
}

// FeedConfig configures the normalized swap feed.
type FeedConfig struct {
	WSEndpoint    string   `yaml:"ws_endpoint"`
	LagWindow     Duration `yaml:"lag_window"`     // reorder buffer depth
	FlushInterval Duration `yaml:"flush_interval"` // safety-net flush tick
}

// MetricsConfig configures the observability HTTP endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads and parses a YAML configuration file, expanding ${ENV} vars
// and applying defaults for every zero field.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every threshold at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero fields with default thresholds.
func (cfg *Config) ApplyDefaults() {
	if cfg.Aggregation.TimeWindowMinutes == 0 {
		cfg.Aggregation.TimeWindowMinutes = 90
	}
	if cfg.Aggregation.SizeTolerance == 0 {
		cfg.Aggregation.SizeTolerance = 0.5
	}
	if cfg.Aggregation.MinPurchaseCount == 0 {
		cfg.Aggregation.MinPurchaseCount = 3
	}
	if cfg.Aggregation.MinTotalUSD == 0 {
		cfg.Aggregation.MinTotalUSD = 10000
	}

	if cfg.Qualification.MinWinRate == 0 {
		cfg.Qualification.MinWinRate = 60
	}
	if cfg.Qualification.MinTotalPnL == 0 {
		cfg.Qualification.MinTotalPnL = 20000
	}
	if cfg.Qualification.MinAvgTradeSize == 0 {
		cfg.Qualification.MinAvgTradeSize = 1500
	}
	if cfg.Qualification.MinTotalTrades == 0 {
		cfg.Qualification.MinTotalTrades = 30
	}
	if cfg.Qualification.MinMaxTradeSize == 0 {
		cfg.Qualification.MinMaxTradeSize = 5000
	}
	if cfg.Qualification.MaxInactivityDays == 0 {
		cfg.Qualification.MaxInactivityDays = 7
	}

	if cfg.Deactivation.MinWinRate == 0 {
		cfg.Deactivation.MinWinRate = 60
	}
	if cfg.Deactivation.MaxInactivityDays == 0 {
		cfg.Deactivation.MaxInactivityDays = 30
	}
	if cfg.Deactivation.MinTotalPnL == 0 {
		cfg.Deactivation.MinTotalPnL = -5000
	}
	if cfg.Deactivation.MinAvgTradeSize == 0 {
		cfg.Deactivation.MinAvgTradeSize = 2000
	}

	if cfg.Discovery.MaxNewWalletsPerSweep == 0 {
		cfg.Discovery.MaxNewWalletsPerSweep = 10
	}
	if cfg.Discovery.SweepInterval == 0 {
		cfg.Discovery.SweepInterval = Duration(6 * time.Hour)
	}
	if cfg.Discovery.LookbackHours == 0 {
		cfg.Discovery.LookbackHours = 24
	}

	if cfg.Evaluation.MinTransactions == 0 {
		cfg.Evaluation.MinTransactions = 30
	}
	if cfg.Evaluation.MaxTransactions == 0 {
		cfg.Evaluation.MaxTransactions = 100
	}
	if cfg.Evaluation.EarlyEntryMinutes == 0 {
		cfg.Evaluation.EarlyEntryMinutes = 60
	}
	if cfg.Evaluation.FirstTradeTimeout == 0 {
		cfg.Evaluation.FirstTradeTimeout = Duration(5 * time.Second)
	}

	if cfg.Feed.LagWindow == 0 {
		cfg.Feed.LagWindow = Duration(10 * time.Second)
	}
	if cfg.Feed.FlushInterval == 0 {
		cfg.Feed.FlushInterval = Duration(5 * time.Second)
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}

// Validate rejects configurations the algorithms cannot run with.
func (cfg *Config) Validate() error {
	if cfg.Aggregation.SizeTolerance < 0 {
		return fmt.Errorf("aggregation.size_tolerance must be >= 0, got %f", cfg.Aggregation.SizeTolerance)
	}
	if cfg.Aggregation.MinPurchaseCount < 2 {
		return fmt.Errorf("aggregation.min_purchase_count must be >= 2, got %d", cfg.Aggregation.MinPurchaseCount)
	}
	if cfg.Evaluation.MaxTransactions < cfg.Evaluation.MinTransactions {
		return fmt.Errorf("evaluation.max_transactions (%d) below min_transactions (%d)",
			cfg.Evaluation.MaxTransactions, cfg.Evaluation.MinTransactions)
	}
	if cfg.Discovery.MaxNewWalletsPerSweep < 0 {
		return fmt.Errorf("discovery.max_new_wallets_per_sweep must be >= 0, got %d", cfg.Discovery.MaxNewWalletsPerSweep)
	}
	return nil
}
