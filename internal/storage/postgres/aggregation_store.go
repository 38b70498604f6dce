package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// AggregationStore implements storage.AggregationStore using PostgreSQL.
type AggregationStore struct {
	pool *Pool
}

// NewAggregationStore creates a new AggregationStore.
func NewAggregationStore(pool *Pool) *AggregationStore {
	return &AggregationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AggregationStore = (*AggregationStore)(nil)

const aggregationColumns = `
	aggregation_id, wallet_address, token_address, token_symbol,
	total_usd, purchase_count, avg_purchase_size, max_purchase_size, min_purchase_size,
	size_std_deviation, size_cov, time_window_minutes,
	first_buy_time, last_buy_time, suspicion_score, risk_level,
	purchases, is_processed, alert_sent
`

// Upsert inserts or replaces the aggregation by its id. Processed flags of
// an existing row survive the replace, so extending an already-delivered
// aggregation never re-triggers delivery.
func (s *AggregationStore) Upsert(ctx context.Context, a *domain.PositionAggregation) (err error) {
	defer observe("upsert_aggregation")(&err)

	if a == nil || a.AggregationID == "" {
		return storage.ErrInvalidInput
	}

	purchases, err := json.Marshal(a.Purchases)
	if err != nil {
		return fmt.Errorf("marshal purchases: %w", err)
	}

	query := `
		INSERT INTO position_aggregations (
			aggregation_id, wallet_address, token_address, token_symbol,
			total_usd, purchase_count, avg_purchase_size, max_purchase_size, min_purchase_size,
			size_std_deviation, size_cov, time_window_minutes,
			first_buy_time, last_buy_time, suspicion_score, risk_level,
			purchases, is_processed, alert_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (aggregation_id) DO UPDATE SET
			token_symbol = EXCLUDED.token_symbol,
			total_usd = EXCLUDED.total_usd,
			purchase_count = EXCLUDED.purchase_count,
			avg_purchase_size = EXCLUDED.avg_purchase_size,
			max_purchase_size = EXCLUDED.max_purchase_size,
			min_purchase_size = EXCLUDED.min_purchase_size,
			size_std_deviation = EXCLUDED.size_std_deviation,
			size_cov = EXCLUDED.size_cov,
			time_window_minutes = EXCLUDED.time_window_minutes,
			last_buy_time = EXCLUDED.last_buy_time,
			suspicion_score = EXCLUDED.suspicion_score,
			risk_level = EXCLUDED.risk_level,
			purchases = EXCLUDED.purchases
	`

	_, err = s.pool.Exec(ctx, query,
		a.AggregationID, a.WalletAddress, a.TokenAddress, a.TokenSymbol,
		a.TotalUSD, a.PurchaseCount, a.AvgPurchaseSize, a.MaxPurchaseSize, a.MinPurchaseSize,
		a.SizeStdDeviation, a.SizeCoefficientOfVariation, a.TimeWindowMinutes,
		a.FirstBuyTime, a.LastBuyTime, a.SuspicionScore, a.RiskLevel,
		purchases, a.IsProcessed, a.AlertSent,
	)
	if err != nil {
		return fmt.Errorf("upsert aggregation: %w", err)
	}
	return nil
}

// GetByID retrieves an aggregation. Returns ErrNotFound if not exists.
func (s *AggregationStore) GetByID(ctx context.Context, aggregationID string) (agg *domain.PositionAggregation, err error) {
	defer observe("get_aggregation_by_id")(&err)

	query := `SELECT ` + aggregationColumns + ` FROM position_aggregations WHERE aggregation_id = $1`

	row := s.pool.QueryRow(ctx, query, aggregationID)
	a, err := scanAggregation(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get aggregation by id: %w", err)
	}
	return a, nil
}

// GetByWalletToken retrieves aggregations for a pair, first_buy_time ASC.
func (s *AggregationStore) GetByWalletToken(ctx context.Context, wallet, token string) (aggs []*domain.PositionAggregation, err error) {
	defer observe("get_aggregations_by_wallet_token")(&err)

	query := `
		SELECT ` + aggregationColumns + `
		FROM position_aggregations
		WHERE wallet_address = $1 AND token_address = $2
		ORDER BY first_buy_time ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet, token)
	if err != nil {
		return nil, fmt.Errorf("get aggregations by wallet token: %w", err)
	}
	defer rows.Close()

	return scanAggregations(rows)
}

// GetUnprocessed retrieves unhandled aggregations, first_buy_time ASC.
func (s *AggregationStore) GetUnprocessed(ctx context.Context) (aggs []*domain.PositionAggregation, err error) {
	defer observe("get_unprocessed_aggregations")(&err)

	query := `
		SELECT ` + aggregationColumns + `
		FROM position_aggregations
		WHERE is_processed = FALSE
		ORDER BY first_buy_time ASC, aggregation_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get unprocessed aggregations: %w", err)
	}
	defer rows.Close()

	return scanAggregations(rows)
}

// MarkProcessed flags an aggregation handled. Returns ErrNotFound if not exists.
func (s *AggregationStore) MarkProcessed(ctx context.Context, aggregationID string, alertSent bool) (err error) {
	defer observe("mark_aggregation_processed")(&err)

	query := `
		UPDATE position_aggregations
		SET is_processed = TRUE, alert_sent = alert_sent OR $2
		WHERE aggregation_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, aggregationID, alertSent)
	if err != nil {
		return fmt.Errorf("mark aggregation processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanAggregation scans one row into a PositionAggregation.
func scanAggregation(row pgx.Row) (*domain.PositionAggregation, error) {
	var a domain.PositionAggregation
	var purchases []byte

	err := row.Scan(
		&a.AggregationID, &a.WalletAddress, &a.TokenAddress, &a.TokenSymbol,
		&a.TotalUSD, &a.PurchaseCount, &a.AvgPurchaseSize, &a.MaxPurchaseSize, &a.MinPurchaseSize,
		&a.SizeStdDeviation, &a.SizeCoefficientOfVariation, &a.TimeWindowMinutes,
		&a.FirstBuyTime, &a.LastBuyTime, &a.SuspicionScore, &a.RiskLevel,
		&purchases, &a.IsProcessed, &a.AlertSent,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(purchases, &a.Purchases); err != nil {
		return nil, fmt.Errorf("unmarshal purchases: %w", err)
	}
	return &a, nil
}

// scanAggregations scans multiple rows into a slice.
func scanAggregations(rows pgx.Rows) ([]*domain.PositionAggregation, error) {
	var result []*domain.PositionAggregation

	for rows.Next() {
		a, err := scanAggregation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregation row: %w", err)
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregation rows: %w", err)
	}
	return result, nil
}
