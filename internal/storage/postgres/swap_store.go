package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// SwapStore implements storage.SwapStore using PostgreSQL.
type SwapStore struct {
	pool *Pool
}

// NewSwapStore creates a new SwapStore.
func NewSwapStore(pool *Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapStore = (*SwapStore)(nil)

// Insert adds a new swap. Returns ErrDuplicateKey if transaction_id exists.
func (s *SwapStore) Insert(ctx context.Context, swap *domain.NormalizedSwap) (err error) {
	defer observe("insert_swap")(&err)

	query := `
		INSERT INTO swaps (
			transaction_id, wallet_address, token_address, token_symbol, amount_usd, timestamp, swap_type, price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.pool.Exec(ctx, query,
		swap.TransactionID,
		swap.WalletAddress,
		swap.TokenAddress,
		swap.TokenSymbol,
		swap.AmountUSD,
		swap.Timestamp,
		swap.SwapType,
		swap.Price,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

// GetWalletHistory retrieves up to limit swaps for a wallet, most recent first.
func (s *SwapStore) GetWalletHistory(ctx context.Context, address string, limit int) (history []*domain.NormalizedSwap, err error) {
	defer observe("get_wallet_history")(&err)

	query := `
		SELECT transaction_id, wallet_address, token_address, token_symbol, amount_usd, timestamp, swap_type, price
		FROM swaps
		WHERE wallet_address = $1
		ORDER BY timestamp DESC, transaction_id DESC
	`
	args := []any{address}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get wallet history: %w", err)
	}
	defer rows.Close()

	return scanSwaps(rows)
}

// IsTransactionAggregated reports whether the transaction has been claimed
// by an aggregation.
func (s *SwapStore) IsTransactionAggregated(ctx context.Context, transactionID string) (claimed bool, err error) {
	defer observe("is_transaction_aggregated")(&err)

	query := `SELECT aggregation_id IS NOT NULL FROM swaps WHERE transaction_id = $1`

	var aggregated bool
	if err := s.pool.QueryRow(ctx, query, transactionID).Scan(&aggregated); err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("check transaction aggregated: %w", err)
	}
	return aggregated, nil
}

// MarkAggregated links the given transactions to an aggregation in one
// statement, so the whole claim is atomic.
func (s *SwapStore) MarkAggregated(ctx context.Context, transactionIDs []string, aggregationID string, score float64) (err error) {
	defer observe("mark_aggregated")(&err)

	if len(transactionIDs) == 0 {
		return nil
	}
	if aggregationID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE swaps
		SET aggregation_id = $1, suspicion_score = $2
		WHERE transaction_id = ANY($3)
	`

	_, err = s.pool.Exec(ctx, query, aggregationID, score, transactionIDs)
	if err != nil {
		return fmt.Errorf("mark transactions aggregated: %w", err)
	}
	return nil
}

// TokenFirstTradeAt returns the earliest swap timestamp for a token.
func (s *SwapStore) TokenFirstTradeAt(ctx context.Context, tokenAddress string) (ts int64, err error) {
	defer observe("token_first_trade_at")(&err)

	query := `SELECT MIN(timestamp) FROM swaps WHERE token_address = $1`

	var first *int64
	if err := s.pool.QueryRow(ctx, query, tokenAddress).Scan(&first); err != nil {
		return 0, fmt.Errorf("get token first trade: %w", err)
	}
	if first == nil {
		return 0, storage.ErrNotFound
	}
	return *first, nil
}

// GetDistinctWallets returns wallet addresses with activity at or after since.
func (s *SwapStore) GetDistinctWallets(ctx context.Context, since int64) (addrs []string, err error) {
	defer observe("get_distinct_wallets")(&err)

	query := `
		SELECT DISTINCT wallet_address
		FROM swaps
		WHERE timestamp >= $1
		ORDER BY wallet_address ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get distinct wallets: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scan wallet address: %w", err)
		}
		addresses = append(addresses, address)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet addresses: %w", err)
	}
	return addresses, nil
}

// scanSwaps scans multiple rows into a slice of NormalizedSwap.
func scanSwaps(rows pgx.Rows) ([]*domain.NormalizedSwap, error) {
	var swaps []*domain.NormalizedSwap

	for rows.Next() {
		var swap domain.NormalizedSwap

		err := rows.Scan(
			&swap.TransactionID,
			&swap.WalletAddress,
			&swap.TokenAddress,
			&swap.TokenSymbol,
			&swap.AmountUSD,
			&swap.Timestamp,
			&swap.SwapType,
			&swap.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}

		swaps = append(swaps, &swap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}

	return swaps, nil
}
