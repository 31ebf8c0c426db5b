package auction_test

import (
	"LendAuction/internal/auction"
	"testing"

	"github.com/google/uuid"
)

func testAsk(maxRate uint8, amount uint64) auction.Ask {
	return auction.Ask{
		Borrower:        uuid.New(),
		Amount:          amount,
		MaxRate:         maxRate,
		Collateral:      amount * 15 / 10,
		Asset:           "USDC",
		CollateralAsset: "SOL",
	}
}

func testBid(minRate uint8, amount uint64) auction.Bid {
	return auction.Bid{
		Lender:   uuid.New(),
		Amount:   amount,
		MinRate:  minRate,
		Asset:    "USDC",
		Duration: 1_000_000,
	}
}

// ============================================================================
// Test: MatchBid
// ============================================================================

func TestMatchBid_EmptyBook_NoFills(t *testing.T) {
	asks := []auction.Ask{}
	if fills := auction.MatchBid(testBid(8, 100), &asks); fills != nil {
		t.Errorf("expected nil fills, got %d", len(fills))
	}
}

func TestMatchBid_OverlappingRates_FillsAtMidpoint(t *testing.T) {
	asks := []auction.Ask{testAsk(10, 100)}

	fills := auction.MatchBid(testBid(8, 100), &asks)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Rate != 9 {
		t.Errorf("rate: got %d, want 9 (midpoint of 8 and 10)", fills[0].Rate)
	}
	if fills[0].Ask.Amount != 100 {
		t.Errorf("fill amount: got %d, want 100", fills[0].Ask.Amount)
	}
	if len(asks) != 0 {
		t.Errorf("matched ask should be removed, %d remain", len(asks))
	}
}

func TestMatchBid_MidpointTruncates(t *testing.T) {
	asks := []auction.Ask{testAsk(10, 100)}

	fills := auction.MatchBid(testBid(7, 100), &asks)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	// (7 + 10) / 2 truncates to 8.
	if fills[0].Rate != 8 {
		t.Errorf("rate: got %d, want 8", fills[0].Rate)
	}
}

func TestMatchBid_MidpointWideBounds_NoWraparound(t *testing.T) {
	// The bound sum exceeds what uint8 holds; the midpoint must still
	// land between the bounds, not below them.
	asks := []auction.Ask{testAsk(203, 100)}

	fills := auction.MatchBid(testBid(200, 100), &asks)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Rate != 201 {
		t.Errorf("rate: got %d, want 201 (midpoint of 200 and 203)", fills[0].Rate)
	}
}

func TestMatchBid_NoRateOverlap_AskRests(t *testing.T) {
	asks := []auction.Ask{testAsk(5, 100)}

	fills := auction.MatchBid(testBid(8, 100), &asks)

	if len(fills) != 0 {
		t.Errorf("ask max 5 < bid min 8 should not match, got %d fills", len(fills))
	}
	if len(asks) != 1 {
		t.Errorf("unmatched ask should rest, %d remain", len(asks))
	}
}

func TestMatchBid_ToleranceExceeded_AskRests(t *testing.T) {
	// Rates overlap (10 >= 2) but the spread of 8 exceeds the band of 5.
	asks := []auction.Ask{testAsk(10, 100)}

	fills := auction.MatchBid(testBid(2, 100), &asks)

	if len(fills) != 0 {
		t.Errorf("spread 8 > tolerance %d should not match", auction.MaxRateDiff)
	}
	if len(asks) != 1 {
		t.Errorf("ask should still rest, %d remain", len(asks))
	}
}

func TestMatchBid_ToleranceBoundary_Matches(t *testing.T) {
	asks := []auction.Ask{testAsk(10, 100)}

	fills := auction.MatchBid(testBid(5, 100), &asks)

	if len(fills) != 1 {
		t.Errorf("spread exactly %d should match", auction.MaxRateDiff)
	}
}

func TestMatchBid_AssetMismatch_AskRests(t *testing.T) {
	ask := testAsk(10, 100)
	ask.Asset = "SOL"
	asks := []auction.Ask{ask}

	if fills := auction.MatchBid(testBid(8, 100), &asks); len(fills) != 0 {
		t.Errorf("different loan asset should not match, got %d fills", len(fills))
	}
}

func TestMatchBid_WholesaleRemoval_DiscardsRemainder(t *testing.T) {
	asks := []auction.Ask{testAsk(10, 100)}

	fills := auction.MatchBid(testBid(8, 60), &asks)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Ask.Amount != 60 {
		t.Errorf("fill amount: got %d, want 60", fills[0].Ask.Amount)
	}
	// The unmatched 40 is not reinserted.
	if len(asks) != 0 {
		t.Errorf("partially consumed ask should be removed wholesale, %d remain", len(asks))
	}
}

func TestMatchBid_ConsumesMultipleAsks(t *testing.T) {
	asks := []auction.Ask{testAsk(10, 60), testAsk(9, 40), testAsk(8, 50)}

	fills := auction.MatchBid(testBid(8, 100), &asks)

	var total uint64
	for _, f := range fills {
		total += f.Ask.Amount
	}
	if total != 100 {
		t.Errorf("total filled: got %d, want 100", total)
	}
	if len(fills) != 2 {
		t.Errorf("expected 2 fills, got %d", len(fills))
	}
	// The third ask is untouched once the bid is satisfied.
	if len(asks) != 1 {
		t.Errorf("expected 1 resting ask, got %d", len(asks))
	}
}

func TestMatchBid_SkipsIneligible_ConsumesLater(t *testing.T) {
	far := testAsk(10, 100) // Spread 8 from minRate 2, skipped
	near := testAsk(6, 100)
	asks := []auction.Ask{far, near}

	fills := auction.MatchBid(testBid(2, 100), &asks)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Ask.MaxRate != 6 {
		t.Errorf("expected the in-band ask to fill, got maxRate %d", fills[0].Ask.MaxRate)
	}
	if len(asks) != 1 || asks[0].MaxRate != 10 {
		t.Errorf("skipped ask should still rest")
	}
}

// ============================================================================
// Test: MatchAsk
// ============================================================================

func TestMatchAsk_EmptyBook_NoFills(t *testing.T) {
	bids := []auction.Bid{}
	if fills := auction.MatchAsk(testAsk(10, 100), &bids); fills != nil {
		t.Errorf("expected nil fills, got %d", len(fills))
	}
}

func TestMatchAsk_ConsumesRestingBid(t *testing.T) {
	bids := []auction.Bid{testBid(8, 100)}

	fills := auction.MatchAsk(testAsk(10, 100), &bids)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Rate != 9 {
		t.Errorf("rate: got %d, want 9", fills[0].Rate)
	}
	if len(bids) != 0 {
		t.Errorf("matched bid should be removed, %d remain", len(bids))
	}
}

func TestMatchAsk_ToleranceExceeded_BidRests(t *testing.T) {
	bids := []auction.Bid{testBid(2, 100)}

	fills := auction.MatchAsk(testAsk(10, 100), &bids)

	if len(fills) != 0 {
		t.Errorf("spread 8 should not match, got %d fills", len(fills))
	}
	if len(bids) != 1 {
		t.Errorf("bid should still rest")
	}
}

func TestMatchAsk_WholesaleRemoval(t *testing.T) {
	bids := []auction.Bid{testBid(8, 100)}

	fills := auction.MatchAsk(testAsk(10, 30), &bids)

	if len(fills) != 1 || fills[0].Bid.Amount != 30 {
		t.Fatalf("expected a single fill of 30, got %+v", fills)
	}
	if len(bids) != 0 {
		t.Errorf("partially consumed bid should be removed wholesale, %d remain", len(bids))
	}
}
