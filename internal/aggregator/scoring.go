package aggregator

import "math"

// Suspicion score component caps. The concrete weights are tunable
// defaults; each component is individually capped and the total is
// clamped to [0,100].
const (
	maxCountScore         = 30.0
	maxSizeScore          = 25.0
	maxUniformityScore    = 25.0
	maxConcentrationScore = 20.0
)

// suspicionScore rates how mechanical a cluster of buys looks.
// Monotonic in purchase count, total size, size uniformity (lower
// coefficient of variation scores higher) and time concentration
// (fewer minutes per purchase scores higher).
func suspicionScore(purchaseCount int, totalUSD, cov, windowMinutes, sizeTolerance float64) float64 {
	score := countScore(purchaseCount) +
		sizeScore(totalUSD) +
		uniformityScore(cov, sizeTolerance) +
		concentrationScore(purchaseCount, windowMinutes)

	return clamp(score, 0, 100)
}

// countScore grows 6 points per purchase, capped.
func countScore(purchaseCount int) float64 {
	return math.Min(maxCountScore, float64(purchaseCount)*6)
}

// sizeScore is log-scaled on total USD: 8 points per decade above $1,000.
func sizeScore(totalUSD float64) float64 {
	if totalUSD <= 1000 {
		return 0
	}
	return math.Min(maxSizeScore, 8*math.Log10(totalUSD/1000))
}

// uniformityScore rewards low coefficient of variation. A perfectly
// uniform cluster (cov=0) takes the full component; cov at the tolerance
// boundary takes zero.
func uniformityScore(cov, sizeTolerance float64) float64 {
	if sizeTolerance <= 0 {
		return 0
	}
	frac := cov / sizeTolerance
	if frac > 1 {
		frac = 1
	}
	return maxUniformityScore * (1 - frac)
}

// concentrationScore rewards short windows relative to purchase count.
// Zero once the cluster averages 30+ minutes per purchase.
func concentrationScore(purchaseCount int, windowMinutes float64) float64 {
	if purchaseCount <= 0 {
		return 0
	}
	minutesPerPurchase := windowMinutes / float64(purchaseCount)
	frac := minutesPerPurchase / 30
	if frac > 1 {
		frac = 1
	}
	return maxConcentrationScore * (1 - frac)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sizeStats computes mean, population standard deviation and coefficient
// of variation for a set of purchase sizes.
func sizeStats(sizes []float64) (mean, stddev, cov float64) {
	n := len(sizes)
	if n == 0 {
		return 0, 0, 0
	}

	sum := 0.0
	for _, s := range sizes {
		sum += s
	}
	mean = sum / float64(n)

	sumSq := 0.0
	for _, s := range sizes {
		diff := s - mean
		sumSq += diff * diff
	}
	stddev = math.Sqrt(sumSq / float64(n))

	if mean > 0 {
		cov = stddev / mean
	}
	return mean, stddev, cov
}
