package ingestion

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/observability"
)

const (
	baseReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay  = 30 * time.Second
)

// SwapSource produces normalized swaps. The channel is closed when the
// context is cancelled.
type SwapSource interface {
	Subscribe(ctx context.Context) (<-chan *domain.NormalizedSwap, error)
}

// feedMessage is the wire format of the upstream normalizer feed.
type feedMessage struct {
	TransactionID string  `json:"transaction_id"`
	WalletAddress string  `json:"wallet_address"`
	TokenAddress  string  `json:"token_address"`
	TokenSymbol   string  `json:"token_symbol"`
	AmountUSD     float64 `json:"amount_usd"`
	Timestamp     int64   `json:"timestamp"`
	SwapType      string  `json:"swap_type"`
	Price         float64 `json:"price"`
}

// WSSwapSource provides real-time normalized swaps via WebSocket
// subscription, reconnecting with exponential backoff on failure.
type WSSwapSource struct {
	endpoint string
	dialer   *websocket.Dialer
	logger   *log.Logger
}

// NewWSSwapSource creates a new WebSocket-based swap source.
func NewWSSwapSource(endpoint string, logger *log.Logger) *WSSwapSource {
	if logger == nil {
		logger = log.Default()
	}
	return &WSSwapSource{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
	}
}

// Compile-time interface check.
var _ SwapSource = (*WSSwapSource)(nil)

// Subscribe returns a channel of swaps from the live feed. The channel is
// closed when the context is cancelled; connection drops are handled
// internally by reconnecting.
func (s *WSSwapSource) Subscribe(ctx context.Context) (<-chan *domain.NormalizedSwap, error) {
	swapsCh := make(chan *domain.NormalizedSwap, 100)

	go func() {
		defer close(swapsCh)

		delay := baseReconnectDelay
		for {
			if ctx.Err() != nil {
				return
			}

			conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
			if err != nil {
				s.logger.Printf("Error connecting to feed %s: %v (retry in %v)", s.endpoint, err, delay)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
				if delay *= 2; delay > maxReconnectDelay {
					delay = maxReconnectDelay
				}
				continue
			}

			s.logger.Printf("Connected to swap feed: %s", s.endpoint)
			delay = baseReconnectDelay

			s.readLoop(ctx, conn, swapsCh)
			conn.Close()

			if ctx.Err() != nil {
				return
			}
			observability.DefaultMetrics.FeedReconnects.Inc()
			s.logger.Println("Feed connection lost, reconnecting...")
		}
	}()

	return swapsCh, nil
}

// readLoop reads messages until the connection breaks or ctx is cancelled.
func (s *WSSwapSource) readLoop(ctx context.Context, conn *websocket.Conn, swapsCh chan<- *domain.NormalizedSwap) {
	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Printf("Error reading feed message: %v", err)
			}
			return
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			observability.RecordSwapRejected("malformed")
			s.logger.Printf("Skipping malformed feed message: %v", err)
			continue
		}

		swap := &domain.NormalizedSwap{
			TransactionID: msg.TransactionID,
			WalletAddress: msg.WalletAddress,
			TokenAddress:  msg.TokenAddress,
			TokenSymbol:   msg.TokenSymbol,
			AmountUSD:     msg.AmountUSD,
			Timestamp:     msg.Timestamp,
			SwapType:      msg.SwapType,
			Price:         msg.Price,
		}

		select {
		case swapsCh <- swap:
		case <-ctx.Done():
			return
		}
	}
}
