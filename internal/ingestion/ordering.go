package ingestion

import (
	"sort"
	"time"

	"wallet-sentinel/internal/domain"
)

// SortSwaps orders swaps by (timestamp ASC, transaction_id ASC). This is
// the deterministic processing order for everything downstream.
func SortSwaps(swaps []*domain.NormalizedSwap) {
	sort.Slice(swaps, func(i, j int) bool {
		if swaps[i].Timestamp != swaps[j].Timestamp {
			return swaps[i].Timestamp < swaps[j].Timestamp
		}
		return swaps[i].TransactionID < swaps[j].TransactionID
	})
}

// reorderBuffer holds swaps in per-second buckets until the lag window
// passes, so slightly out-of-order feed delivery still reaches the
// aggregator in timestamp order. A bucket is sealed once the newest
// event is at least lagSeconds ahead of it.
type reorderBuffer struct {
	buckets    map[int64][]*domain.NormalizedSwap // keyed by timestamp second
	highest    int64                              // highest bucket second seen
	lagSeconds int64
}

func newReorderBuffer(lag time.Duration) *reorderBuffer {
	lagSeconds := int64(lag / time.Second)
	if lagSeconds < 1 {
		lagSeconds = 1
	}
	return &reorderBuffer{
		buckets:    make(map[int64][]*domain.NormalizedSwap),
		lagSeconds: lagSeconds,
	}
}

// add buffers a swap and returns any buckets the new high-water mark
// seals, in order. An event older than every sealed bucket bypasses the
// buffer: holding it would not restore its order anyway.
func (b *reorderBuffer) add(swap *domain.NormalizedSwap) []*domain.NormalizedSwap {
	bucket := swap.Timestamp / 1000

	if bucket <= b.highest-b.lagSeconds {
		return []*domain.NormalizedSwap{swap}
	}

	b.buckets[bucket] = append(b.buckets[bucket], swap)
	if bucket > b.highest {
		b.highest = bucket
		return b.flushSealed()
	}
	return nil
}

// flushSealed drains every bucket behind the lag window, oldest first.
func (b *reorderBuffer) flushSealed() []*domain.NormalizedSwap {
	return b.drain(b.highest - b.lagSeconds)
}

// flushAll drains everything regardless of the lag window. Used on
// shutdown and on the periodic safety-net tick when the feed goes quiet.
func (b *reorderBuffer) flushAll() []*domain.NormalizedSwap {
	return b.drain(b.highest)
}

// drain removes buckets up to and including limit and returns their
// swaps in deterministic order.
func (b *reorderBuffer) drain(limit int64) []*domain.NormalizedSwap {
	var sealed []int64
	for bucket := range b.buckets {
		if bucket <= limit {
			sealed = append(sealed, bucket)
		}
	}
	if len(sealed) == 0 {
		return nil
	}
	sort.Slice(sealed, func(i, j int) bool { return sealed[i] < sealed[j] })

	var out []*domain.NormalizedSwap
	for _, bucket := range sealed {
		swaps := b.buckets[bucket]
		SortSwaps(swaps)
		out = append(out, swaps...)
		delete(b.buckets, bucket)
	}
	return out
}

// size reports how many buckets are currently held.
func (b *reorderBuffer) size() int {
	return len(b.buckets)
}
