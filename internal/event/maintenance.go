package event

import "github.com/google/uuid"

// CleanupShard expires every resting order in one shard older than the
// staleness threshold, settling each with a refund/fee split. Safe to
// submit repeatedly: entries already removed are simply absent.
type CleanupShard struct {
	CommandID uuid.UUID
	Shard     uint64
	Sequence  int64
	Timestamp int64
}

func (c *CleanupShard) IdempotencyKey() string { return c.CommandID.String() }
func (c *CleanupShard) EventType() EventType   { return EventTypeCleanupShard }
func (c *CleanupShard) ShardID() *uint64       { s := c.Shard; return &s }
func (c *CleanupShard) Partition() string      { return "maintenance" }
func (c *CleanupShard) SourceSequence() int64  { return c.Sequence }
