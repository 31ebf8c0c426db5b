package event

import (
	"time"
)

// EventType discriminator for command payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeInitializeAuction
	EventTypeDeposit
	EventTypeSubmitBid
	EventTypeSubmitAsk
	EventTypeRepayLoan
	EventTypeLiquidateLoan
	EventTypeCleanupShard
	EventTypeWithdrawFees
)

// EventEnvelope wraps every processed command in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	EventType EventType

	// Shard context (nullable for global commands and for submissions,
	// whose shard is derived during processing)
	ShardID *uint64

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Command is the interface all command payloads must implement
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// ShardID returns the shard context (nil when unknown or global)
	ShardID() *uint64

	// Partition returns the source-stream key for sequence validation
	Partition() string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeInitializeAuction:
		return "InitializeAuction"
	case EventTypeDeposit:
		return "Deposit"
	case EventTypeSubmitBid:
		return "SubmitBid"
	case EventTypeSubmitAsk:
		return "SubmitAsk"
	case EventTypeRepayLoan:
		return "RepayLoan"
	case EventTypeLiquidateLoan:
		return "LiquidateLoan"
	case EventTypeCleanupShard:
		return "CleanupShard"
	case EventTypeWithdrawFees:
		return "WithdrawFees"
	default:
		return "Unknown"
	}
}
