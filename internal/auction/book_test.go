package auction_test

import (
	"LendAuction/internal/auction"
	"testing"

	"github.com/google/uuid"
)

// ============================================================================
// Test: Book ordering
// ============================================================================

func TestBook_InsertBid_SortedAscendingByMinRate(t *testing.T) {
	book := auction.NewBook(0)
	for _, rate := range []uint8{9, 3, 7, 1, 5} {
		book.InsertBid(testBid(rate, 100))
	}

	want := []uint8{1, 3, 5, 7, 9}
	for i, bid := range book.Bids {
		if bid.MinRate != want[i] {
			t.Errorf("bids[%d].MinRate: got %d, want %d", i, bid.MinRate, want[i])
		}
	}
}

func TestBook_InsertBid_StableOnTies(t *testing.T) {
	book := auction.NewBook(0)
	first := testBid(5, 100)
	second := testBid(5, 200)
	book.InsertBid(first)
	book.InsertBid(second)

	if book.Bids[0].Amount != 100 || book.Bids[1].Amount != 200 {
		t.Errorf("equal rates should keep insertion order, got %d then %d",
			book.Bids[0].Amount, book.Bids[1].Amount)
	}
}

func TestBook_InsertAsk_SortedDescendingByMaxRate(t *testing.T) {
	book := auction.NewBook(0)
	for _, rate := range []uint8{2, 8, 4, 10, 6} {
		book.InsertAsk(testAsk(rate, 100))
	}

	want := []uint8{10, 8, 6, 4, 2}
	for i, ask := range book.Asks {
		if ask.MaxRate != want[i] {
			t.Errorf("asks[%d].MaxRate: got %d, want %d", i, ask.MaxRate, want[i])
		}
	}
}

func TestBook_InsertAsk_StableOnTies(t *testing.T) {
	book := auction.NewBook(0)
	book.InsertAsk(testAsk(7, 100))
	book.InsertAsk(testAsk(7, 200))

	if book.Asks[0].Amount != 100 || book.Asks[1].Amount != 200 {
		t.Errorf("equal rates should keep insertion order, got %d then %d",
			book.Asks[0].Amount, book.Asks[1].Amount)
	}
}

// ============================================================================
// Test: Book clone isolation
// ============================================================================

func TestBook_Clone_IsolatedFromOriginal(t *testing.T) {
	book := auction.NewBook(3)
	book.InsertBid(testBid(5, 100))
	book.InsertAsk(testAsk(8, 200))

	clone := book.Clone()
	clone.InsertBid(testBid(6, 300))
	clone.Asks = clone.Asks[:0]

	if len(book.Bids) != 1 {
		t.Errorf("original bids affected by clone mutation: %d", len(book.Bids))
	}
	if len(book.Asks) != 1 {
		t.Errorf("original asks affected by clone mutation: %d", len(book.Asks))
	}
	if clone.Shard != book.Shard {
		t.Errorf("clone shard: got %d, want %d", clone.Shard, book.Shard)
	}
}

func TestLoanPool_Clone_IsolatedFromOriginal(t *testing.T) {
	pool := auction.NewLoanPool(1)
	pool.Loans = append(pool.Loans, auction.Loan{
		Lender:   uuid.New(),
		Borrower: uuid.New(),
		Amount:   100,
		Rate:     9,
	})

	clone := pool.Clone()
	clone.Loans[0].Repaid = true

	if pool.Loans[0].Repaid {
		t.Error("original loan affected by clone mutation")
	}
}
