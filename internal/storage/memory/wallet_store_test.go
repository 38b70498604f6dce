package memory

import (
	"context"
	"errors"
	"testing"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

func testWallet(address string, score float64, status string) *domain.WalletRecord {
	return &domain.WalletRecord{
		Address:          address,
		Category:         domain.CategoryHunter,
		PerformanceScore: score,
		Status:           status,
		CreatedAt:        1000,
	}
}

func TestWalletStore_UpsertAndGet(t *testing.T) {
	s := NewWalletStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, testWallet("w1", 50, domain.WalletStatusCandidate)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.GetByAddress(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.PerformanceScore != 50 {
		t.Errorf("PerformanceScore = %f", got.PerformanceScore)
	}

	if _, err := s.GetByAddress(ctx, "w-missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Upsert(ctx, &domain.WalletRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty address accepted: %v", err)
	}
}

func TestWalletStore_UpsertPreservesCreatedAt(t *testing.T) {
	s := NewWalletStore()
	ctx := context.Background()

	s.Upsert(ctx, testWallet("w1", 50, domain.WalletStatusCandidate))

	update := testWallet("w1", 60, domain.WalletStatusActive)
	update.CreatedAt = 9999
	s.Upsert(ctx, update)

	got, _ := s.GetByAddress(ctx, "w1")
	if got.CreatedAt != 1000 {
		t.Errorf("CreatedAt = %d, want original 1000", got.CreatedAt)
	}
	if got.Status != domain.WalletStatusActive || got.PerformanceScore != 60 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestWalletStore_GetByStatus(t *testing.T) {
	s := NewWalletStore()
	ctx := context.Background()

	s.Upsert(ctx, testWallet("w-low", 30, domain.WalletStatusActive))
	s.Upsert(ctx, testWallet("w-high", 90, domain.WalletStatusActive))
	s.Upsert(ctx, testWallet("w-mid", 60, domain.WalletStatusActive))
	s.Upsert(ctx, testWallet("w-out", 99, domain.WalletStatusDeactivated))

	active, err := s.GetByStatus(ctx, domain.WalletStatusActive)
	if err != nil {
		t.Fatalf("GetByStatus failed: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 active wallets, got %d", len(active))
	}
	// performance_score descending.
	for i, want := range []string{"w-high", "w-mid", "w-low"} {
		if active[i].Address != want {
			t.Errorf("position %d = %s, want %s", i, active[i].Address, want)
		}
	}

	viaShorthand, _ := s.GetActive(ctx)
	if len(viaShorthand) != 3 {
		t.Errorf("GetActive returned %d wallets", len(viaShorthand))
	}
}

func TestWalletStore_GetByStatusTieBreak(t *testing.T) {
	s := NewWalletStore()
	ctx := context.Background()

	s.Upsert(ctx, testWallet("w-b", 50, domain.WalletStatusActive))
	s.Upsert(ctx, testWallet("w-a", 50, domain.WalletStatusActive))

	active, _ := s.GetByStatus(ctx, domain.WalletStatusActive)
	if active[0].Address != "w-a" || active[1].Address != "w-b" {
		t.Errorf("equal scores not ordered by address: %s, %s", active[0].Address, active[1].Address)
	}
}
