package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `
	address, category, status, deactivation_reason, performance_score,
	total_pnl, win_rate, total_trades, avg_trade_size, max_trade_size, min_trade_size,
	sharpe_ratio, max_drawdown, avg_hold_time_hours, early_entry_rate,
	recent_activity, insufficient_data, last_evaluated_at
`

// Upsert inserts or replaces a wallet record by address. Status, reason
// and metrics land in one statement so readers never observe a partial
// transition.
func (s *WalletStore) Upsert(ctx context.Context, w *domain.WalletRecord) (err error) {
	defer observe("upsert_wallet")(&err)

	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallets (
			address, category, status, deactivation_reason, performance_score,
			total_pnl, win_rate, total_trades, avg_trade_size, max_trade_size, min_trade_size,
			sharpe_ratio, max_drawdown, avg_hold_time_hours, early_entry_rate,
			recent_activity, insufficient_data, last_evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (address) DO UPDATE SET
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			deactivation_reason = EXCLUDED.deactivation_reason,
			performance_score = EXCLUDED.performance_score,
			total_pnl = EXCLUDED.total_pnl,
			win_rate = EXCLUDED.win_rate,
			total_trades = EXCLUDED.total_trades,
			avg_trade_size = EXCLUDED.avg_trade_size,
			max_trade_size = EXCLUDED.max_trade_size,
			min_trade_size = EXCLUDED.min_trade_size,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			avg_hold_time_hours = EXCLUDED.avg_hold_time_hours,
			early_entry_rate = EXCLUDED.early_entry_rate,
			recent_activity = EXCLUDED.recent_activity,
			insufficient_data = EXCLUDED.insufficient_data,
			last_evaluated_at = EXCLUDED.last_evaluated_at
	`

	_, err = s.pool.Exec(ctx, query,
		w.Address, w.Category, w.Status, w.DeactivationReason, w.PerformanceScore,
		w.Metrics.TotalPnL, w.Metrics.WinRate, w.Metrics.TotalTrades,
		w.Metrics.AvgTradeSize, w.Metrics.MaxTradeSize, w.Metrics.MinTradeSize,
		w.Metrics.SharpeRatio, w.Metrics.MaxDrawdown, w.Metrics.AvgHoldTimeHours, w.Metrics.EarlyEntryRate,
		w.Metrics.RecentActivity, w.Metrics.InsufficientData, w.LastEvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

// GetByAddress retrieves a wallet record. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(ctx context.Context, address string) (record *domain.WalletRecord, err error) {
	defer observe("get_wallet_by_address")(&err)

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	w, err := scanWallet(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet by address: %w", err)
	}
	return w, nil
}

// GetByStatus retrieves wallets in a status, performance_score DESC.
func (s *WalletStore) GetByStatus(ctx context.Context, status string) (records []*domain.WalletRecord, err error) {
	defer observe("get_wallets_by_status")(&err)

	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE status = $1
		ORDER BY performance_score DESC, address ASC
	`

	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("get wallets by status: %w", err)
	}
	defer rows.Close()

	var result []*domain.WalletRecord
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return result, nil
}

// GetActive is shorthand for GetByStatus(WalletStatusActive).
func (s *WalletStore) GetActive(ctx context.Context) ([]*domain.WalletRecord, error) {
	return s.GetByStatus(ctx, domain.WalletStatusActive)
}

// scanWallet scans one row into a WalletRecord.
func scanWallet(row pgx.Row) (*domain.WalletRecord, error) {
	var w domain.WalletRecord

	err := row.Scan(
		&w.Address, &w.Category, &w.Status, &w.DeactivationReason, &w.PerformanceScore,
		&w.Metrics.TotalPnL, &w.Metrics.WinRate, &w.Metrics.TotalTrades,
		&w.Metrics.AvgTradeSize, &w.Metrics.MaxTradeSize, &w.Metrics.MinTradeSize,
		&w.Metrics.SharpeRatio, &w.Metrics.MaxDrawdown, &w.Metrics.AvgHoldTimeHours, &w.Metrics.EarlyEntryRate,
		&w.Metrics.RecentActivity, &w.Metrics.InsufficientData, &w.LastEvaluatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
