package math_test

import (
	"LendAuction/internal/math"
	gomath "math"
	"testing"
)

// ============================================================================
// Test: checked u64 arithmetic
// ============================================================================

func TestAddU64(t *testing.T) {
	if sum, ok := math.AddU64(1, 2); !ok || sum != 3 {
		t.Errorf("1+2: got %d (ok=%v)", sum, ok)
	}
	if sum, ok := math.AddU64(gomath.MaxUint64, 0); !ok || sum != gomath.MaxUint64 {
		t.Errorf("max+0: got %d (ok=%v)", sum, ok)
	}
	if _, ok := math.AddU64(gomath.MaxUint64, 1); ok {
		t.Error("max+1 should overflow")
	}
}

func TestSubU64(t *testing.T) {
	if diff, ok := math.SubU64(5, 3); !ok || diff != 2 {
		t.Errorf("5-3: got %d (ok=%v)", diff, ok)
	}
	if diff, ok := math.SubU64(5, 5); !ok || diff != 0 {
		t.Errorf("5-5: got %d (ok=%v)", diff, ok)
	}
	if _, ok := math.SubU64(3, 5); ok {
		t.Error("3-5 should underflow")
	}
}

func TestMulU64(t *testing.T) {
	if p, ok := math.MulU64(1_000_000, 1_000_000); !ok || p != 1_000_000_000_000 {
		t.Errorf("1e6*1e6: got %d (ok=%v)", p, ok)
	}
	if p, ok := math.MulU64(gomath.MaxUint64, 1); !ok || p != gomath.MaxUint64 {
		t.Errorf("max*1: got %d (ok=%v)", p, ok)
	}
	if _, ok := math.MulU64(uint64(1)<<32, uint64(1)<<32); ok {
		t.Error("2^32 * 2^32 should overflow")
	}
}

func TestDivU64(t *testing.T) {
	if q, ok := math.DivU64(7, 2); !ok || q != 3 {
		t.Errorf("7/2 should truncate to 3, got %d (ok=%v)", q, ok)
	}
	if _, ok := math.DivU64(1, 0); ok {
		t.Error("division by zero should fail")
	}
}

// ============================================================================
// Test: MulDiv128
// ============================================================================

func TestMulDiv128_IntermediateExceeds64Bits(t *testing.T) {
	// a*b overflows u64 but the quotient fits.
	a := uint64(1) << 40
	b := uint64(1) << 40
	c := uint64(1) << 30

	got, ok := math.MulDiv128(a, b, c)
	if !ok {
		t.Fatal("quotient fits in u64, should succeed")
	}
	if want := uint64(1) << 50; got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestMulDiv128_Truncates(t *testing.T) {
	if got, ok := math.MulDiv128(7, 3, 2); !ok || got != 10 {
		t.Errorf("7*3/2 should truncate to 10, got %d (ok=%v)", got, ok)
	}
}

func TestMulDiv128_QuotientOverflow(t *testing.T) {
	if _, ok := math.MulDiv128(gomath.MaxUint64, 2, 1); ok {
		t.Error("quotient above 2^64-1 should fail")
	}
}

func TestMulDiv128_DivideByZero(t *testing.T) {
	if _, ok := math.MulDiv128(1, 1, 0); ok {
		t.Error("division by zero should fail")
	}
}
