package query

import "github.com/google/uuid"

// BalanceResponse is one account balance for API queries. All responses
// carry as_of_sequence: the last command sequence the projections have
// applied.
type BalanceResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Asset        string    `json:"asset"`
	Balance      int64     `json:"balance"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// OrderResponse is a resting order for API queries.
type OrderResponse struct {
	Shard           uint64    `json:"shard_id"`
	Side            string    `json:"side"`
	Owner           uuid.UUID `json:"owner"`
	Asset           string    `json:"asset"`
	Amount          uint64    `json:"amount"`
	Rate            uint8     `json:"rate"`
	Collateral      *uint64   `json:"collateral,omitempty"`
	CollateralAsset *string   `json:"collateral_asset,omitempty"`
	Timestamp       int64     `json:"timestamp_us"`
}

// BookDepthResponse is one shard's resting orders.
type BookDepthResponse struct {
	Shard        uint64          `json:"shard_id"`
	Bids         []OrderResponse `json:"bids"`
	Asks         []OrderResponse `json:"asks"`
	AsOfSequence int64           `json:"as_of_sequence"`
}

// LoanResponse is an issued loan for API queries.
type LoanResponse struct {
	Shard           uint64    `json:"shard_id"`
	LoanIndex       uint64    `json:"loan_index"`
	Lender          uuid.UUID `json:"lender"`
	Borrower        uuid.UUID `json:"borrower"`
	Amount          uint64    `json:"amount"`
	Rate            uint8     `json:"rate"`
	Collateral      uint64    `json:"collateral"`
	Asset           string    `json:"asset"`
	CollateralAsset string    `json:"collateral_asset"`
	Status          string    `json:"status"`
	StartTimestamp  int64     `json:"start_timestamp_us"`
	Duration        int64     `json:"duration_us"`
	AsOfSequence    int64     `json:"as_of_sequence"`
}

// FeeVaultResponse is one shard's accumulated fees in one asset.
type FeeVaultResponse struct {
	Shard        uint64 `json:"shard_id"`
	Asset        string `json:"asset"`
	Balance      int64  `json:"balance"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// EventResponse is an event-log row for API queries.
type EventResponse struct {
	Sequence       int64  `json:"sequence"`
	EventType      string `json:"event_type"`
	IdempotencyKey string `json:"idempotency_key"`
	ShardID        *int64 `json:"shard_id,omitempty"`
	Payload        []byte `json:"payload"`
	StateHash      []byte `json:"state_hash"`
	PrevHash       []byte `json:"prev_hash"`
}

// JournalHistoryEntry is a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset is an asset whose balances do not sum to zero.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
