package aggregator

import (
	"math"
	"testing"
)

func TestSuspicionScore_ScenarioValues(t *testing.T) {
	// Three near-uniform $4k buys over 20 minutes.
	// count: 3*6 = 18
	// size:  8*log10(12.1) ≈ 8.66
	// uniformity: cov ≈ 0.031 against tolerance 0.5 → ≈ 23.45
	// concentration: 6.67 min/buy → ≈ 15.56
	_, _, cov := sizeStats([]float64{4000, 4200, 3900})
	score := suspicionScore(3, 12100, cov, 20, 0.5)

	if score < 60 || score > 70 {
		t.Errorf("expected score near 65.7, got %f", score)
	}
}

func TestSuspicionScore_Clamped(t *testing.T) {
	// Every component at its cap still stays within 100.
	score := suspicionScore(100, 1e12, 0, 0.001, 0.5)
	if score > 100 {
		t.Errorf("score exceeded 100: %f", score)
	}
	if score != maxCountScore+maxSizeScore+maxUniformityScore+maxConcentrationScore {
		t.Errorf("expected all components capped, got %f", score)
	}

	// Degenerate inputs stay at the floor.
	if score := suspicionScore(0, 0, 10, 1e9, 0.5); score != 0 {
		t.Errorf("expected 0 for degenerate inputs, got %f", score)
	}
}

func TestSuspicionScore_Monotonicity(t *testing.T) {
	base := suspicionScore(3, 12000, 0.1, 30, 0.5)

	if more := suspicionScore(4, 12000, 0.1, 30, 0.5); more <= base {
		t.Errorf("more purchases should score higher: %f <= %f", more, base)
	}
	if bigger := suspicionScore(3, 120000, 0.1, 30, 0.5); bigger <= base {
		t.Errorf("larger total should score higher: %f <= %f", bigger, base)
	}
	if uniform := suspicionScore(3, 12000, 0.01, 30, 0.5); uniform <= base {
		t.Errorf("more uniform sizes should score higher: %f <= %f", uniform, base)
	}
	if tighter := suspicionScore(3, 12000, 0.1, 5, 0.5); tighter <= base {
		t.Errorf("tighter window should score higher: %f <= %f", tighter, base)
	}
}

func TestCountScore_Cap(t *testing.T) {
	if got := countScore(2); got != 12 {
		t.Errorf("countScore(2) = %f, want 12", got)
	}
	if got := countScore(5); got != 30 {
		t.Errorf("countScore(5) = %f, want cap 30", got)
	}
	if got := countScore(50); got != 30 {
		t.Errorf("countScore(50) = %f, want cap 30", got)
	}
}

func TestSizeScore_LogScale(t *testing.T) {
	if got := sizeScore(500); got != 0 {
		t.Errorf("sizeScore below $1000 should be 0, got %f", got)
	}
	// One decade above $1000 → 8 points.
	if got := sizeScore(10000); math.Abs(got-8) > 1e-9 {
		t.Errorf("sizeScore(10000) = %f, want 8", got)
	}
	if got := sizeScore(1e12); got != 25 {
		t.Errorf("sizeScore(1e12) = %f, want cap 25", got)
	}
}

func TestUniformityScore_Boundaries(t *testing.T) {
	if got := uniformityScore(0, 0.5); got != 25 {
		t.Errorf("cov=0 should take the full component, got %f", got)
	}
	if got := uniformityScore(0.5, 0.5); got != 0 {
		t.Errorf("cov at tolerance should score 0, got %f", got)
	}
	if got := uniformityScore(2, 0.5); got != 0 {
		t.Errorf("cov past tolerance should score 0, got %f", got)
	}
	if got := uniformityScore(0.1, 0); got != 0 {
		t.Errorf("zero tolerance should score 0, got %f", got)
	}
}

func TestConcentrationScore_Boundaries(t *testing.T) {
	// 30+ minutes per purchase scores zero.
	if got := concentrationScore(2, 60); got != 0 {
		t.Errorf("30 min/purchase should score 0, got %f", got)
	}
	// Instant burst takes the full component.
	if got := concentrationScore(5, 0); got != 20 {
		t.Errorf("instant cluster should score 20, got %f", got)
	}
	if got := concentrationScore(0, 10); got != 0 {
		t.Errorf("zero purchases should score 0, got %f", got)
	}
}

func TestSizeStats(t *testing.T) {
	mean, stddev, cov := sizeStats([]float64{4000, 4200, 3900})

	if math.Abs(mean-4033.3333) > 0.01 {
		t.Errorf("mean = %f, want 4033.33", mean)
	}
	// Population stddev: sqrt(((−33.33)² + 166.67² + (−133.33)²)/3) ≈ 124.72
	if math.Abs(stddev-124.72) > 0.01 {
		t.Errorf("stddev = %f, want 124.72", stddev)
	}
	if math.Abs(cov-stddev/mean) > 1e-12 {
		t.Errorf("cov = %f, want stddev/mean", cov)
	}

	if _, _, cov := sizeStats(nil); cov != 0 {
		t.Errorf("empty input should give cov 0, got %f", cov)
	}
	if _, stddev, _ := sizeStats([]float64{1000}); stddev != 0 {
		t.Errorf("single value should give stddev 0, got %f", stddev)
	}
}
