package auction

import "sort"

const (
	// Capacity bounds are asymmetric. Checked at the call site before
	// insertion (PoolFull), never inside the insert routines.
	MaxBids = 10
	MaxAsks = 1000

	// MaxRateDiff is the fixed tolerance band for matching.
	MaxRateDiff = 5

	// MaxRate is the top of the integer rate scale. Submissions above it
	// are rejected before routing.
	MaxRate uint8 = 100

	// StaleAge is the cleanup threshold: entries older than 24 hours
	// (epoch microseconds) are expired.
	StaleAge int64 = 24 * 60 * 60 * 1_000_000
)

// Book holds one shard's resting orders. Bids are sorted ascending by
// MinRate, asks descending by MaxRate; ties keep insertion order.
type Book struct {
	Shard uint64 `json:"shard_id"`
	Bids  []Bid  `json:"bids"`
	Asks  []Ask  `json:"asks"`
}

func NewBook(shard uint64) *Book {
	return &Book{
		Shard: shard,
		Bids:  make([]Bid, 0),
		Asks:  make([]Ask, 0),
	}
}

// Clone returns a deep copy. Matching runs against a clone so a rejected
// submission leaves the live book untouched.
func (b *Book) Clone() *Book {
	bids := make([]Bid, len(b.Bids))
	copy(bids, b.Bids)
	asks := make([]Ask, len(b.Asks))
	copy(asks, b.Asks)
	return &Book{Shard: b.Shard, Bids: bids, Asks: asks}
}

// InsertBid keeps Bids sorted ascending by MinRate, stable on ties.
func (b *Book) InsertBid(bid Bid) {
	idx := sort.Search(len(b.Bids), func(i int) bool {
		return b.Bids[i].MinRate > bid.MinRate
	})
	b.Bids = append(b.Bids, Bid{})
	copy(b.Bids[idx+1:], b.Bids[idx:])
	b.Bids[idx] = bid
}

// InsertAsk keeps Asks sorted descending by MaxRate, stable on ties.
func (b *Book) InsertAsk(ask Ask) {
	idx := sort.Search(len(b.Asks), func(i int) bool {
		return b.Asks[i].MaxRate < ask.MaxRate
	})
	b.Asks = append(b.Asks, Ask{})
	copy(b.Asks[idx+1:], b.Asks[idx:])
	b.Asks[idx] = ask
}
