package domain

import (
	"errors"
	"testing"
)

func validSwap() *NormalizedSwap {
	return &NormalizedSwap{
		TransactionID: "tx1",
		WalletAddress: "wallet-1",
		TokenAddress:  "token-1",
		AmountUSD:     100,
		Timestamp:     1704067200000,
		SwapType:      SwapTypeBuy,
	}
}

func TestSwapValidate(t *testing.T) {
	if err := validSwap().Validate(); err != nil {
		t.Fatalf("valid swap rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*NormalizedSwap)
	}{
		{"missing transaction id", func(s *NormalizedSwap) { s.TransactionID = "" }},
		{"missing wallet", func(s *NormalizedSwap) { s.WalletAddress = "" }},
		{"missing token", func(s *NormalizedSwap) { s.TokenAddress = "" }},
		{"zero amount", func(s *NormalizedSwap) { s.AmountUSD = 0 }},
		{"negative amount", func(s *NormalizedSwap) { s.AmountUSD = -5 }},
		{"unknown swap type", func(s *NormalizedSwap) { s.SwapType = "stake" }},
		{"zero timestamp", func(s *NormalizedSwap) { s.Timestamp = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSwap()
			tt.mutate(s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidSwap) {
				t.Errorf("expected ErrInvalidSwap, got %v", err)
			}
		})
	}

	var nilSwap *NormalizedSwap
	if err := nilSwap.Validate(); !errors.Is(err, ErrInvalidSwap) {
		t.Errorf("nil swap should be invalid, got %v", err)
	}
}

func TestSwapTypePredicates(t *testing.T) {
	s := validSwap()
	if !s.IsBuy() || s.IsSell() {
		t.Error("buy predicates wrong")
	}
	s.SwapType = SwapTypeSell
	if s.IsBuy() || !s.IsSell() {
		t.Error("sell predicates wrong")
	}
}

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, RiskLevelLow},
		{49.9, RiskLevelLow},
		{50, RiskLevelMedium},
		{74.9, RiskLevelMedium},
		{75, RiskLevelHigh},
		{100, RiskLevelHigh},
	}
	for _, tt := range tests {
		if got := RiskLevelForScore(tt.score); got != tt.want {
			t.Errorf("RiskLevelForScore(%f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
