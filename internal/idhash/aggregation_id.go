package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAggregationID computes a deterministic aggregation id using SHA256.
// Formula: SHA256(wallet_address|token_address|first_buy_time)
// Returns hex-encoded hash (64 characters).
func ComputeAggregationID(walletAddress, tokenAddress string, firstBuyTime int64) string {
	data := fmt.Sprintf("%s|%s|%d", walletAddress, tokenAddress, firstBuyTime)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
