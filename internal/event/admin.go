package event

import (
	"github.com/google/uuid"
)

// InitializeAuction configures the auction once: admin, shard count and
// the supported asset list. Idempotency key: command_id.
type InitializeAuction struct {
	CommandID       uuid.UUID
	Admin           uuid.UUID
	ShardCount      uint64
	SupportedAssets []string
	Sequence        int64
	Timestamp       int64 // Versioned input timestamp, epoch microseconds
}

func (c *InitializeAuction) IdempotencyKey() string { return c.CommandID.String() }
func (c *InitializeAuction) EventType() EventType   { return EventTypeInitializeAuction }
func (c *InitializeAuction) ShardID() *uint64       { return nil }
func (c *InitializeAuction) Partition() string      { return "admin" }
func (c *InitializeAuction) SourceSequence() int64  { return c.Sequence }

// WithdrawFees moves accumulated cleanup fees from one shard's fee vault
// to the caller, who must be the admin.
type WithdrawFees struct {
	CommandID uuid.UUID
	Caller    uuid.UUID
	Shard     uint64
	Asset     string
	Amount    uint64
	Sequence  int64
	Timestamp int64
}

func (c *WithdrawFees) IdempotencyKey() string { return c.CommandID.String() }
func (c *WithdrawFees) EventType() EventType   { return EventTypeWithdrawFees }
func (c *WithdrawFees) ShardID() *uint64       { s := c.Shard; return &s }
func (c *WithdrawFees) Partition() string      { return "admin" }
func (c *WithdrawFees) SourceSequence() int64  { return c.Sequence }
