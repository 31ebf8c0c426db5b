package event

import "github.com/google/uuid"

// Outbound events published after a command commits. One command can emit
// several (a matched submission emits one LoanIssued per fill).
const (
	OutboundAuctionInitialized = "AuctionInitialized"
	OutboundFundsDeposited     = "FundsDeposited"
	OutboundBidSubmitted       = "BidSubmitted"
	OutboundAskSubmitted       = "AskSubmitted"
	OutboundLoanIssued         = "LoanIssued"
	OutboundLoanRepaid         = "LoanRepaid"
	OutboundLoanLiquidated     = "LoanLiquidated"
	OutboundBidExpired         = "BidExpired"
	OutboundAskExpired         = "AskExpired"
	OutboundFeesWithdrawn      = "FeesWithdrawn"
)

// OutboundEvent pairs a type name with its payload for publishing.
type OutboundEvent struct {
	Type    string
	Payload interface{}
}

type AuctionInitialized struct {
	Admin           uuid.UUID `json:"admin"`
	ShardCount      uint64    `json:"shard_count"`
	SupportedAssets []string  `json:"supported_assets"`
}

type FundsDeposited struct {
	UserID uuid.UUID `json:"user_id"`
	Asset  string    `json:"asset"`
	Amount uint64    `json:"amount"`
}

type BidSubmitted struct {
	Lender  uuid.UUID `json:"lender"`
	Amount  uint64    `json:"amount"`
	MinRate uint8     `json:"min_rate"`
	Shard   uint64    `json:"shard_id"`
	Asset   string    `json:"asset"`
}

type AskSubmitted struct {
	Borrower        uuid.UUID `json:"borrower"`
	Amount          uint64    `json:"amount"`
	MaxRate         uint8     `json:"max_rate"`
	Collateral      uint64    `json:"collateral"`
	Shard           uint64    `json:"shard_id"`
	Asset           string    `json:"asset"`
	CollateralAsset string    `json:"collateral_asset"`
}

type LoanIssued struct {
	Lender          uuid.UUID `json:"lender"`
	Borrower        uuid.UUID `json:"borrower"`
	LoanIndex       uint64    `json:"loan_index"`
	Amount          uint64    `json:"amount"`
	Rate            uint8     `json:"rate"`
	Collateral      uint64    `json:"collateral"`
	Duration        int64     `json:"duration_us"`
	Shard           uint64    `json:"shard_id"`
	Asset           string    `json:"asset"`
	CollateralAsset string    `json:"collateral_asset"`
}

type LoanRepaid struct {
	Lender          uuid.UUID `json:"lender"`
	Borrower        uuid.UUID `json:"borrower"`
	LoanIndex       uint64    `json:"loan_index"`
	Amount          uint64    `json:"amount"` // repayment due, principal + interest
	Shard           uint64    `json:"shard_id"`
	Asset           string    `json:"asset"`
	CollateralAsset string    `json:"collateral_asset"`
}

type LoanLiquidated struct {
	Lender          uuid.UUID `json:"lender"`
	Borrower        uuid.UUID `json:"borrower"`
	Liquidator      uuid.UUID `json:"liquidator"`
	LoanIndex       uint64    `json:"loan_index"`
	Amount          uint64    `json:"amount"` // repayment due paid to the lender
	Collateral      uint64    `json:"collateral"`
	Profit          uint64    `json:"profit"`
	Shard           uint64    `json:"shard_id"`
	Asset           string    `json:"asset"`
	CollateralAsset string    `json:"collateral_asset"`
}

type BidExpired struct {
	Lender       uuid.UUID `json:"lender"`
	Amount       uint64    `json:"amount"`
	RefundAmount uint64    `json:"refund_amount"`
	FeeAmount    uint64    `json:"fee_amount"`
	Shard        uint64    `json:"shard_id"`
	Asset        string    `json:"asset"`
}

type AskExpired struct {
	Borrower        uuid.UUID `json:"borrower"`
	Amount          uint64    `json:"amount"`
	RefundAmount    uint64    `json:"refund_amount"`
	FeeAmount       uint64    `json:"fee_amount"`
	Shard           uint64    `json:"shard_id"`
	Asset           string    `json:"asset"`
	CollateralAsset string    `json:"collateral_asset"`
}

type FeesWithdrawn struct {
	Admin  uuid.UUID `json:"admin"`
	Shard  uint64    `json:"shard_id"`
	Amount uint64    `json:"amount"`
	Asset  string    `json:"asset"`
}
