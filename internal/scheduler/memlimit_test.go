package scheduler

import "testing"

func TestComputeQuadLimitNeverReturnsZero(t *testing.T) {
	// Whatever this platform's RAM detection does, ComputeQuadLimit must
	// still hand back something usable by NewMemoryCache (which would
	// otherwise build an unbounded cache).
	limit := ComputeQuadLimit(DefaultRAMFraction, false)
	if limit <= 0 {
		t.Fatalf("expected a positive quad limit, got %d", limit)
	}
}

func TestComputeQuadLimitFallsBackOnTinyFraction(t *testing.T) {
	limit := ComputeQuadLimit(0.0000001, false)
	if limit != DefaultQuadLimit {
		t.Fatalf("expected fallback to DefaultQuadLimit for a near-zero fraction, got %d", limit)
	}
}
