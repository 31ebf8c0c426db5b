package event

import "github.com/google/uuid"

// RepayLoan settles a loan in full: the borrower pays principal plus
// accrued interest to the lender and the collateral is released.
type RepayLoan struct {
	CommandID      uuid.UUID
	Borrower       uuid.UUID
	Shard          uint64
	LoanIndex      uint64
	RepaymentAsset string
	Sequence       int64
	Timestamp      int64
}

func (c *RepayLoan) IdempotencyKey() string { return c.CommandID.String() }
func (c *RepayLoan) EventType() EventType   { return EventTypeRepayLoan }
func (c *RepayLoan) ShardID() *uint64       { s := c.Shard; return &s }
func (c *RepayLoan) Partition() string      { return "loans" }
func (c *RepayLoan) SourceSequence() int64  { return c.Sequence }

// LiquidateLoan swaps an unhealthy loan's collateral for the loan asset
// and pays the lender out of the proceeds. MinimumProceeds is the
// caller-chosen worst-acceptable swap output.
type LiquidateLoan struct {
	CommandID       uuid.UUID
	Liquidator      uuid.UUID
	Shard           uint64
	LoanIndex       uint64
	MinimumProceeds uint64
	Sequence        int64
	Timestamp       int64
}

func (c *LiquidateLoan) IdempotencyKey() string { return c.CommandID.String() }
func (c *LiquidateLoan) EventType() EventType   { return EventTypeLiquidateLoan }
func (c *LiquidateLoan) ShardID() *uint64       { s := c.Shard; return &s }
func (c *LiquidateLoan) Partition() string      { return "loans" }
func (c *LiquidateLoan) SourceSequence() int64  { return c.Sequence }
