package persistence_test

import (
	"LendAuction/internal/amm"
	"LendAuction/internal/auction"
	"LendAuction/internal/core"
	"LendAuction/internal/ledger"
	"LendAuction/internal/persistence"
	"testing"

	"github.com/google/uuid"
)

// ============================================================================
// Test: snapshot serialization roundtrip
// ============================================================================

func sampleCoreSnapshot() *core.SnapshotState {
	admin := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	lender := uuid.MustParse("660e8400-e29b-41d4-a716-446655440001")

	state := &auction.State{
		Admin:           admin,
		ShardCount:      4,
		TotalLoans:      1,
		SupportedAssets: []string{"USDC", "SOL"},
	}
	ledger.RegisterAssets(state.SupportedAssets)
	usdc, _ := ledger.GetAssetID("USDC")

	book := auction.NewBook(2)
	book.InsertBid(auction.Bid{Lender: lender, Amount: 1_000, MinRate: 8, Asset: "USDC"})

	pool := auction.NewLoanPool(2)
	pool.Loans = append(pool.Loans, auction.Loan{
		Lender: lender, Borrower: admin, Amount: 500, Rate: 9, Shard: 2,
		Asset: "USDC", CollateralAsset: "SOL",
	})

	snap := &core.SnapshotState{
		Sequence:  42,
		Auction:   state,
		Books:     map[uint64]*auction.Book{2: book},
		LoanPools: map[uint64]*auction.LoanPool{2: pool},
		Balances: map[ledger.AccountKey]int64{
			ledger.NewUserAccountKey(lender, usdc): 1_000_000,
			ledger.NewVaultAccountKey(2, usdc):     500,
			ledger.NewFeeVaultAccountKey(2, usdc):  5,
			ledger.NewExternalAccountKey(usdc):     -1_000_505,
		},
		Pools:           []amm.PoolState{{AssetA: "SOL", AssetB: "USDC", ReserveA: 100, ReserveB: 1_000}},
		SequenceState:   map[string]int64{"admin": 1, "funds": 3, "bids": 2},
		IdempotencyKeys: []string{uuid.NewString(), uuid.NewString()},
	}
	for i := range snap.StateHash {
		snap.StateHash[i] = byte(i)
	}
	return snap
}

func TestSnapshotConversion_Roundtrip(t *testing.T) {
	original := sampleCoreSnapshot()

	data := persistence.FromCoreSnapshot(original)
	restored, err := data.ToCoreSnapshot()
	if err != nil {
		t.Fatalf("ToCoreSnapshot failed: %v", err)
	}

	if restored.Sequence != original.Sequence {
		t.Errorf("sequence: got %d, want %d", restored.Sequence, original.Sequence)
	}
	if restored.StateHash != original.StateHash {
		t.Errorf("state hash: got %x, want %x", restored.StateHash, original.StateHash)
	}
	if restored.Auction.ShardCount != 4 || restored.Auction.TotalLoans != 1 {
		t.Errorf("auction state: %+v", restored.Auction)
	}

	if len(restored.Balances) != len(original.Balances) {
		t.Fatalf("balances: got %d entries, want %d", len(restored.Balances), len(original.Balances))
	}
	for key, want := range original.Balances {
		if got := restored.Balances[key]; got != want {
			t.Errorf("balance %s: got %d, want %d", key.AccountPath(), got, want)
		}
	}

	if len(restored.Books[2].Bids) != 1 || restored.Books[2].Bids[0].MinRate != 8 {
		t.Errorf("book not restored: %+v", restored.Books[2])
	}
	if len(restored.LoanPools[2].Loans) != 1 || restored.LoanPools[2].Loans[0].Rate != 9 {
		t.Errorf("loan pool not restored: %+v", restored.LoanPools[2])
	}
	if restored.SequenceState["funds"] != 3 {
		t.Errorf("sequence state: %+v", restored.SequenceState)
	}
	if len(restored.IdempotencyKeys) != 2 {
		t.Errorf("idempotency keys: got %d, want 2", len(restored.IdempotencyKeys))
	}
	if len(restored.Pools) != 1 || restored.Pools[0].ReserveB != 1_000 {
		t.Errorf("amm pools: %+v", restored.Pools)
	}
}

func TestToCoreSnapshot_BadStateHash(t *testing.T) {
	data := persistence.FromCoreSnapshot(sampleCoreSnapshot())
	data.StateHash = data.StateHash[:16]

	if _, err := data.ToCoreSnapshot(); err == nil {
		t.Fatal("expected error for truncated state hash")
	}
}

func TestToCoreSnapshot_BalancesWithoutAuctionState(t *testing.T) {
	data := persistence.FromCoreSnapshot(sampleCoreSnapshot())
	data.Auction = nil

	// Without the supported-asset list the registry cannot be rebuilt, so
	// the account paths are unparseable.
	if _, err := data.ToCoreSnapshot(); err == nil {
		t.Fatal("expected error for balances without auction state")
	}
}
