package auction_test

import (
	"LendAuction/internal/auction"
	"testing"
)

// ============================================================================
// Test: Shard routing
// ============================================================================

func TestComputeShardID_Deterministic(t *testing.T) {
	first := auction.ComputeShardID("USDC", 9, 16)
	for i := 0; i < 10; i++ {
		if got := auction.ComputeShardID("USDC", 9, 16); got != first {
			t.Fatalf("routing not deterministic: got %d, want %d", got, first)
		}
	}
}

func TestComputeShardID_WithinRange(t *testing.T) {
	const shardCount = 7
	for rate := uint8(0); rate <= 100; rate++ {
		shard := auction.ComputeShardID("USDC", rate, shardCount)
		if shard >= shardCount {
			t.Errorf("rate %d routed to shard %d, out of range [0,%d)", rate, shard, shardCount)
		}
	}
}

func TestComputeShardID_SingleShard_AlwaysZero(t *testing.T) {
	for rate := uint8(0); rate <= 100; rate++ {
		if shard := auction.ComputeShardID("SOL", rate, 1); shard != 0 {
			t.Errorf("rate %d: got shard %d, want 0", rate, shard)
		}
	}
}

func TestComputeShardID_SpreadsAcrossShards(t *testing.T) {
	// Not a distribution test, just a sanity check that routing is not
	// collapsing everything onto one shard.
	seen := make(map[uint64]bool)
	for rate := uint8(0); rate <= 100; rate++ {
		seen[auction.ComputeShardID("USDC", rate, 16)] = true
	}
	if len(seen) < 2 {
		t.Errorf("101 rates routed to %d shard(s)", len(seen))
	}
}

func TestComputeShardID_AssetChangesRouting(t *testing.T) {
	// Different assets at the same rate should not always collide. Checked
	// across many rates so a single honest collision cannot fail the test.
	diverged := false
	for rate := uint8(0); rate <= 100; rate++ {
		if auction.ComputeShardID("USDC", rate, 64) != auction.ComputeShardID("SOL", rate, 64) {
			diverged = true
			break
		}
	}
	if !diverged {
		t.Error("USDC and SOL routed identically for every rate")
	}
}
