package amm_test

import (
	"LendAuction/internal/amm"
	"errors"
	"testing"
)

func newSOLUSDCMarket() *amm.Market {
	m := amm.NewMarket()
	m.AddPool("SOL", 100_000_000, "USDC", 1_000_000_000)
	return m
}

// ============================================================================
// Test: constant-product swaps
// ============================================================================

func TestSwap_ConstantProductOutput(t *testing.T) {
	m := newSOLUSDCMarket()

	// out = 1_000_000_000 * 150_000 / (100_000_000 + 150_000)
	out, err := m.Swap("SOL", "USDC", 150_000, 0)
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	want := uint64(1_497_753)
	if out != want {
		t.Errorf("got %d, want %d", out, want)
	}
}

func TestSwap_MovesReserves(t *testing.T) {
	m := newSOLUSDCMarket()

	out, err := m.Swap("SOL", "USDC", 150_000, 0)
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}

	snap := m.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(snap))
	}
	pool := snap[0]
	if pool.AssetA != "SOL" || pool.AssetB != "USDC" {
		t.Fatalf("unexpected pair %s/%s", pool.AssetA, pool.AssetB)
	}
	if pool.ReserveA != 100_150_000 {
		t.Errorf("SOL reserve: got %d, want 100_150_000", pool.ReserveA)
	}
	if pool.ReserveB != 1_000_000_000-out {
		t.Errorf("USDC reserve: got %d, want %d", pool.ReserveB, 1_000_000_000-out)
	}
}

func TestSwap_ReverseDirection(t *testing.T) {
	m := newSOLUSDCMarket()

	// out = 100_000_000 * 1_000_000 / (1_000_000_000 + 1_000_000)
	out, err := m.Swap("USDC", "SOL", 1_000_000, 0)
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if want := uint64(99_900); out != want {
		t.Errorf("got %d, want %d", out, want)
	}
}

func TestSwap_PriceImpactGrowsWithSize(t *testing.T) {
	small := newSOLUSDCMarket()
	large := newSOLUSDCMarket()

	smallOut, _ := small.Swap("SOL", "USDC", 1_000, 0)
	largeOut, _ := large.Swap("SOL", "USDC", 10_000_000, 0)

	// Per-unit proceeds shrink as the trade grows.
	if smallOut*10_000 <= largeOut {
		t.Errorf("large trade should pay worse per unit: small=%d large=%d", smallOut, largeOut)
	}
}

func TestQuote_MatchesSwapWithoutMovingReserves(t *testing.T) {
	m := newSOLUSDCMarket()
	before := m.Snapshot()

	quoted, err := m.Quote("SOL", "USDC", 150_000, 0)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if after := m.Snapshot(); before[0] != after[0] {
		t.Errorf("quote moved reserves: %+v != %+v", before[0], after[0])
	}

	swapped, err := m.Swap("SOL", "USDC", 150_000, 0)
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if quoted != swapped {
		t.Errorf("quote %d diverged from settled swap %d", quoted, swapped)
	}
}

func TestQuote_Slippage(t *testing.T) {
	m := newSOLUSDCMarket()

	if _, err := m.Quote("SOL", "USDC", 150_000, uint64(1)<<62); !errors.Is(err, amm.ErrSlippage) {
		t.Errorf("expected ErrSlippage, got %v", err)
	}
}

// ============================================================================
// Test: swap failure modes
// ============================================================================

func TestSwap_Slippage_PoolUntouched(t *testing.T) {
	m := newSOLUSDCMarket()
	before := m.Snapshot()

	_, err := m.Swap("SOL", "USDC", 150_000, uint64(1)<<62)
	if !errors.Is(err, amm.ErrSlippage) {
		t.Fatalf("expected ErrSlippage, got %v", err)
	}

	after := m.Snapshot()
	if before[0] != after[0] {
		t.Errorf("pool mutated on rejected swap: %+v != %+v", before[0], after[0])
	}
}

func TestSwap_NoPool(t *testing.T) {
	m := newSOLUSDCMarket()

	if _, err := m.Swap("SOL", "DOGE", 100, 0); !errors.Is(err, amm.ErrNoPool) {
		t.Errorf("expected ErrNoPool, got %v", err)
	}
}

func TestSwap_InputOverflow_PoolUntouched(t *testing.T) {
	m := amm.NewMarket()
	m.AddPool("SOL", 1<<63, "USDC", 1_000)
	before := m.Snapshot()

	if _, err := m.Swap("SOL", "USDC", 1<<63, 0); err == nil {
		t.Fatal("expected overflow error")
	}

	if after := m.Snapshot(); before[0] != after[0] {
		t.Errorf("pool mutated on rejected swap")
	}
}

// ============================================================================
// Test: pool keying and snapshots
// ============================================================================

func TestAddPool_CanonicalKeying(t *testing.T) {
	m := amm.NewMarket()
	// Registered with the pair reversed; both orderings hit the same pool.
	m.AddPool("USDC", 1_000_000_000, "SOL", 100_000_000)

	out, err := m.Swap("SOL", "USDC", 150_000, 0)
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if want := uint64(1_497_753); out != want {
		t.Errorf("got %d, want %d", out, want)
	}

	snap := m.Snapshot()
	if snap[0].AssetA != "SOL" || snap[0].AssetB != "USDC" {
		t.Errorf("pair not stored canonically: %s/%s", snap[0].AssetA, snap[0].AssetB)
	}
}

func TestAddPool_ReplacesExisting(t *testing.T) {
	m := newSOLUSDCMarket()
	m.AddPool("SOL", 1, "USDC", 1)

	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].ReserveA != 1 || snap[0].ReserveB != 1 {
		t.Errorf("re-adding a pair should replace the pool: %+v", snap)
	}
}

func TestSnapshot_SortedByPairKey(t *testing.T) {
	m := amm.NewMarket()
	m.AddPool("SOL", 1, "USDC", 1)
	m.AddPool("BTC", 1, "USDC", 1)
	m.AddPool("ETH", 1, "SOL", 1)

	snap := m.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 pools, got %d", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		prev := snap[i-1].AssetA + "/" + snap[i-1].AssetB
		cur := snap[i].AssetA + "/" + snap[i].AssetB
		if prev >= cur {
			t.Errorf("snapshot not sorted: %s before %s", prev, cur)
		}
	}
}

func TestRestore_Roundtrip(t *testing.T) {
	m := newSOLUSDCMarket()
	if _, err := m.Swap("SOL", "USDC", 150_000, 0); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	snap := m.Snapshot()

	restored := amm.NewMarket()
	restored.Restore(snap)

	// Both markets must now quote identically.
	a, errA := m.Swap("SOL", "USDC", 50_000, 0)
	b, errB := restored.Swap("SOL", "USDC", 50_000, 0)
	if errA != nil || errB != nil {
		t.Fatalf("swaps failed: %v / %v", errA, errB)
	}
	if a != b {
		t.Errorf("restored market diverged: %d != %d", a, b)
	}
}
