package auction

import (
	"github.com/google/uuid"
)

// Rates are expressed on a 0-100 integer scale.
// Amounts and collateral are integer base units of their asset.
// Timestamps and durations are epoch microseconds carried on commands,
// never wall-clock reads.

// Bid is a lender's resting order.
type Bid struct {
	Lender    uuid.UUID `json:"lender"`
	Amount    uint64    `json:"amount"`
	MinRate   uint8     `json:"min_rate"`
	Timestamp int64     `json:"timestamp_us"`
	Asset     string    `json:"asset"`
	Duration  int64     `json:"duration_us"`
}

// Ask is a borrower's resting order. Collateral is escrowed on submission.
type Ask struct {
	Borrower        uuid.UUID `json:"borrower"`
	Amount          uint64    `json:"amount"`
	MaxRate         uint8     `json:"max_rate"`
	Collateral      uint64    `json:"collateral"`
	Timestamp       int64     `json:"timestamp_us"`
	Asset           string    `json:"asset"`
	CollateralAsset string    `json:"collateral_asset"`
}

// Loan is an issued loan. Append-only: only the Repaid flag ever flips,
// and once true it stays true.
type Loan struct {
	Lender          uuid.UUID `json:"lender"`
	Borrower        uuid.UUID `json:"borrower"`
	Amount          uint64    `json:"amount"`
	Rate            uint8     `json:"rate"`
	Collateral      uint64    `json:"collateral"`
	Repaid          bool      `json:"repaid"`
	Shard           uint64    `json:"shard_id"`
	Asset           string    `json:"asset"`
	CollateralAsset string    `json:"collateral_asset"`
	StartTimestamp  int64     `json:"start_timestamp_us"`
	Duration        int64     `json:"duration_us"`
}

// State is the global auction configuration. Created once by Initialize;
// only TotalLoans mutates afterwards.
type State struct {
	Admin           uuid.UUID `json:"admin"`
	ShardCount      uint64    `json:"shard_count"`
	TotalLoans      uint64    `json:"total_loans"`
	SupportedAssets []string  `json:"supported_assets"`
}

func (s *State) SupportsAsset(symbol string) bool {
	for _, a := range s.SupportedAssets {
		if a == symbol {
			return true
		}
	}
	return false
}

// LoanPool holds the issued loans of one shard.
type LoanPool struct {
	Shard uint64 `json:"shard_id"`
	Loans []Loan `json:"loans"`
}

func NewLoanPool(shard uint64) *LoanPool {
	return &LoanPool{Shard: shard, Loans: make([]Loan, 0)}
}

// Clone returns a deep copy for staged commits.
func (p *LoanPool) Clone() *LoanPool {
	loans := make([]Loan, len(p.Loans))
	copy(loans, p.Loans)
	return &LoanPool{Shard: p.Shard, Loans: loans}
}
