package domain

import (
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidSwap is returned when a normalized swap fails validation.
var ErrInvalidSwap = errors.New("invalid normalized swap")

// ValidWalletAddress reports whether addr is a plausible user wallet.
// A wallet address must decode to 32 bytes of base58 and lie on the
// ed25519 curve. Program derived addresses are off-curve by construction
// and never belong to a human trader, so they are rejected here.
func ValidWalletAddress(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}

// ValidTokenAddress reports whether addr decodes as a 32-byte base58 mint.
// Mints may be PDAs, so no curve check is applied.
func ValidTokenAddress(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}
