package auction

// AskFill is a consumed resting ask together with the agreed rate. The
// embedded Ask carries the matched amount, not the ask's original amount.
type AskFill struct {
	Ask  Ask
	Rate uint8
}

// BidFill is the symmetric fill for a consumed resting bid.
type BidFill struct {
	Bid  Bid
	Rate uint8
}

// MatchBid consumes asks for an incoming bid, scanning from the head of the
// sorted collection. A candidate is accepted when the rate ranges overlap
// and the difference is within the tolerance band. Accepted candidates are
// removed wholesale: when only part of a candidate's amount is needed the
// unmatched remainder is discarded, not reinserted.
//
// The caller enforces the all-or-nothing contract (sum of fill amounts must
// equal bid.Amount), so this must run against a cloned slice.
func MatchBid(bid Bid, asks *[]Ask) []AskFill {
	if len(*asks) == 0 {
		return nil
	}

	fills := make([]AskFill, 0)
	remaining := bid.Amount

	i := 0
	for i < len(*asks) && remaining > 0 {
		ask := (*asks)[i]
		if ask.MaxRate >= bid.MinRate && ask.Asset == bid.Asset {
			rateDiff := rateDistance(bid.MinRate, ask.MaxRate)
			if rateDiff <= MaxRateDiff {
				matchAmount := minU64(remaining, ask.Amount)
				rate := agreedRate(bid.MinRate, ask.MaxRate)

				matched := removeAsk(asks, i)
				matched.Amount = matchAmount
				fills = append(fills, AskFill{Ask: matched, Rate: rate})

				remaining -= matchAmount
				continue
			}
		}
		i++
	}

	return fills
}

// MatchAsk consumes bids for an incoming ask. Same scan, same wholesale
// removal of partially consumed candidates.
func MatchAsk(ask Ask, bids *[]Bid) []BidFill {
	if len(*bids) == 0 {
		return nil
	}

	fills := make([]BidFill, 0)
	remaining := ask.Amount

	i := 0
	for i < len(*bids) && remaining > 0 {
		bid := (*bids)[i]
		if bid.MinRate <= ask.MaxRate && bid.Asset == ask.Asset {
			rateDiff := rateDistance(bid.MinRate, ask.MaxRate)
			if rateDiff <= MaxRateDiff {
				matchAmount := minU64(remaining, bid.Amount)
				rate := agreedRate(bid.MinRate, ask.MaxRate)

				matched := removeBid(bids, i)
				matched.Amount = matchAmount
				fills = append(fills, BidFill{Bid: matched, Rate: rate})

				remaining -= matchAmount
				continue
			}
		}
		i++
	}

	return fills
}

// agreedRate is the midpoint of the two bounds, truncating, capped at the
// ask's maximum. The sum is widened so it cannot wrap in uint8.
func agreedRate(bidMin, askMax uint8) uint8 {
	mid := uint8((int(bidMin) + int(askMax)) / 2)
	if mid > askMax {
		return askMax
	}
	return mid
}

func rateDistance(bidMin, askMax uint8) uint8 {
	if askMax > bidMin {
		return askMax - bidMin
	}
	return bidMin - askMax
}

func removeAsk(asks *[]Ask, i int) Ask {
	a := (*asks)[i]
	*asks = append((*asks)[:i], (*asks)[i+1:]...)
	return a
}

func removeBid(bids *[]Bid, i int) Bid {
	b := (*bids)[i]
	*bids = append((*bids)[:i], (*bids)[i+1:]...)
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
