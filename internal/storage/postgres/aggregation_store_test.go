package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

func testAggregation(id, wallet string, firstBuy int64) *domain.PositionAggregation {
	return &domain.PositionAggregation{
		AggregationID:              id,
		WalletAddress:              wallet,
		TokenAddress:               "t1",
		TokenSymbol:                "TKN",
		TotalUSD:                   12100,
		PurchaseCount:              3,
		AvgPurchaseSize:            4033.33,
		MaxPurchaseSize:            4200,
		MinPurchaseSize:            3900,
		SizeStdDeviation:           124.72,
		SizeCoefficientOfVariation: 0.031,
		TimeWindowMinutes:          20,
		FirstBuyTime:               firstBuy,
		LastBuyTime:                firstBuy + 20*60000,
		SuspicionScore:             65.7,
		RiskLevel:                  domain.RiskLevelMedium,
		Purchases: []domain.Purchase{
			{TransactionID: "tx1", AmountUSD: 4000, Timestamp: firstBuy},
			{TransactionID: "tx2", AmountUSD: 4200, Timestamp: firstBuy + 10*60000},
			{TransactionID: "tx3", AmountUSD: 3900, Timestamp: firstBuy + 20*60000},
		},
	}
}

func TestAggregationStore_Integration(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAggregationStore(pool)
	ctx := context.Background()

	t.Run("upsert and get by id", func(t *testing.T) {
		agg := testAggregation("agg-get", "w-get", 1704067200000)
		require.NoError(t, store.Upsert(ctx, agg))

		got, err := store.GetByID(ctx, "agg-get")
		require.NoError(t, err)
		assert.Equal(t, agg.TotalUSD, got.TotalUSD)
		assert.Equal(t, agg.RiskLevel, got.RiskLevel)
		require.Len(t, got.Purchases, 3)
		assert.Equal(t, "tx2", got.Purchases[1].TransactionID)
		assert.Equal(t, 4200.0, got.Purchases[1].AmountUSD)

		_, err = store.GetByID(ctx, "agg-missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		assert.ErrorIs(t, store.Upsert(ctx, &domain.PositionAggregation{}), storage.ErrInvalidInput)
	})

	t.Run("extension preserves delivery state", func(t *testing.T) {
		agg := testAggregation("agg-ext", "w-ext", 1704067200000)
		require.NoError(t, store.Upsert(ctx, agg))
		require.NoError(t, store.MarkProcessed(ctx, "agg-ext", true))

		extended := testAggregation("agg-ext", "w-ext", 1704067200000)
		extended.PurchaseCount = 4
		extended.TotalUSD = 16200
		require.NoError(t, store.Upsert(ctx, extended))

		got, err := store.GetByID(ctx, "agg-ext")
		require.NoError(t, err)
		assert.True(t, got.IsProcessed, "extension reset is_processed")
		assert.True(t, got.AlertSent, "extension reset alert_sent")
		assert.Equal(t, 4, got.PurchaseCount)
	})

	t.Run("get by wallet token ordered", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, testAggregation("agg-b", "w-pair", 2000)))
		require.NoError(t, store.Upsert(ctx, testAggregation("agg-a", "w-pair", 1000)))

		result, err := store.GetByWalletToken(ctx, "w-pair", "t1")
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, "agg-a", result[0].AggregationID)
		assert.Equal(t, "agg-b", result[1].AggregationID)
	})

	t.Run("unprocessed and mark", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, testAggregation("agg-p1", "w-proc", 1000)))
		require.NoError(t, store.Upsert(ctx, testAggregation("agg-p2", "w-proc", 2000)))

		pending, err := store.GetUnprocessed(ctx)
		require.NoError(t, err)
		ids := make(map[string]bool)
		for _, a := range pending {
			ids[a.AggregationID] = true
		}
		assert.True(t, ids["agg-p1"] && ids["agg-p2"])

		require.NoError(t, store.MarkProcessed(ctx, "agg-p1", false))

		pending, err = store.GetUnprocessed(ctx)
		require.NoError(t, err)
		for _, a := range pending {
			assert.NotEqual(t, "agg-p1", a.AggregationID)
		}

		got, err := store.GetByID(ctx, "agg-p1")
		require.NoError(t, err)
		assert.False(t, got.AlertSent, "alert_sent set without being requested")

		assert.ErrorIs(t, store.MarkProcessed(ctx, "agg-missing", true), storage.ErrNotFound)
	})
}
