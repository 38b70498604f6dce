package ingestion

import (
	"testing"
	"time"

	"wallet-sentinel/internal/domain"
)

func ts(tx string, tsMs int64) *domain.NormalizedSwap {
	return &domain.NormalizedSwap{TransactionID: tx, Timestamp: tsMs}
}

func txIDs(swaps []*domain.NormalizedSwap) []string {
	ids := make([]string, len(swaps))
	for i, s := range swaps {
		ids[i] = s.TransactionID
	}
	return ids
}

func assertOrder(t *testing.T, got []*domain.NormalizedSwap, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", txIDs(got), want)
	}
	for i, id := range want {
		if got[i].TransactionID != id {
			t.Fatalf("got %v, want %v", txIDs(got), want)
		}
	}
}

func TestSortSwaps(t *testing.T) {
	swaps := []*domain.NormalizedSwap{
		ts("b", 2000),
		ts("c", 1000),
		ts("a", 2000),
	}
	SortSwaps(swaps)

	// Timestamp first, transaction ID breaks ties.
	assertOrder(t, swaps, "c", "a", "b")
}

func TestReorderBuffer_ReordersWithinLag(t *testing.T) {
	b := newReorderBuffer(3 * time.Second)

	if out := b.add(ts("tx1", 1000)); out != nil {
		t.Fatalf("premature flush: %v", txIDs(out))
	}
	// Out of order within the lag window: buffered, not emitted.
	if out := b.add(ts("tx3", 3000)); out != nil {
		t.Fatalf("premature flush: %v", txIDs(out))
	}
	if out := b.add(ts("tx2", 2000)); out != nil {
		t.Fatalf("premature flush: %v", txIDs(out))
	}

	// A new high-water mark 4 seconds ahead seals the first bucket.
	out := b.add(ts("tx4", 5000))
	assertOrder(t, out, "tx1", "tx2")

	// The rest drains in order on flushAll.
	assertOrder(t, b.flushAll(), "tx3", "tx4")
	if b.size() != 0 {
		t.Errorf("buffer not empty after flushAll: %d buckets", b.size())
	}
}

func TestReorderBuffer_SortsWithinBucket(t *testing.T) {
	b := newReorderBuffer(time.Second)

	b.add(ts("late", 1500))
	b.add(ts("early", 1100))
	b.add(ts("mid", 1300))

	assertOrder(t, b.flushAll(), "early", "mid", "late")
}

func TestReorderBuffer_VeryLateEventBypasses(t *testing.T) {
	b := newReorderBuffer(2 * time.Second)

	b.add(ts("tx1", 1000))
	b.add(ts("tx2", 10000)) // seals everything up to second 8

	// An event behind the sealed frontier cannot be reordered by holding
	// it; it passes straight through.
	out := b.add(ts("tx-ancient", 500))
	assertOrder(t, out, "tx-ancient")
	if b.size() != 1 {
		t.Errorf("bypassed event was buffered: %d buckets", b.size())
	}
}

func TestReorderBuffer_FlushAllOnQuietFeed(t *testing.T) {
	b := newReorderBuffer(10 * time.Second)

	b.add(ts("tx1", 1000))
	b.add(ts("tx2", 2000))

	// Nothing is sealed yet, but a safety-net flush drains everything.
	if out := b.flushSealed(); out != nil {
		t.Fatalf("flushSealed drained unsealed buckets: %v", txIDs(out))
	}
	assertOrder(t, b.flushAll(), "tx1", "tx2")
}

func TestReorderBuffer_MinimumLag(t *testing.T) {
	// Sub-second lag rounds up to one second so the buffer still works.
	b := newReorderBuffer(100 * time.Millisecond)
	if b.lagSeconds != 1 {
		t.Errorf("lagSeconds = %d, want 1", b.lagSeconds)
	}
}
