package event

import "github.com/google/uuid"

// SubmitBid is a lender's rate-bounded offer to lend. The shard is derived
// from (asset, min_rate) during processing, so ShardID is nil here.
// Idempotency key: command_id.
type SubmitBid struct {
	CommandID uuid.UUID
	Lender    uuid.UUID
	Asset     string
	Amount    uint64
	MinRate   uint8
	Duration  int64 // Requested loan duration, microseconds
	Sequence  int64
	Timestamp int64
}

func (c *SubmitBid) IdempotencyKey() string { return c.CommandID.String() }
func (c *SubmitBid) EventType() EventType   { return EventTypeSubmitBid }
func (c *SubmitBid) ShardID() *uint64       { return nil }
func (c *SubmitBid) Partition() string      { return "bids" }
func (c *SubmitBid) SourceSequence() int64  { return c.Sequence }

// SubmitAsk is a borrower's rate-bounded request to borrow, with collateral
// escrowed on submission.
type SubmitAsk struct {
	CommandID       uuid.UUID
	Borrower        uuid.UUID
	Asset           string
	Amount          uint64
	MaxRate         uint8
	Collateral      uint64
	CollateralAsset string
	Sequence        int64
	Timestamp       int64
}

func (c *SubmitAsk) IdempotencyKey() string { return c.CommandID.String() }
func (c *SubmitAsk) EventType() EventType   { return EventTypeSubmitAsk }
func (c *SubmitAsk) ShardID() *uint64       { return nil }
func (c *SubmitAsk) Partition() string      { return "asks" }
func (c *SubmitAsk) SourceSequence() int64  { return c.Sequence }
