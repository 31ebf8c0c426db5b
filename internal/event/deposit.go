// internal/event/deposit.go
package event

import "github.com/google/uuid"

// Deposit credits a user account from the external boundary. Value enters
// the system only through deposits. Idempotency key: deposit_id.
type Deposit struct {
	DepositID uuid.UUID
	UserID    uuid.UUID
	Asset     string
	Amount    uint64
	Sequence  int64
	Timestamp int64
}

func (d *Deposit) IdempotencyKey() string {
	return d.DepositID.String()
}

func (d *Deposit) EventType() EventType {
	return EventTypeDeposit
}

func (d *Deposit) ShardID() *uint64 {
	return nil // Global command
}

func (d *Deposit) Partition() string {
	return "funds"
}

func (d *Deposit) SourceSequence() int64 {
	return d.Sequence
}
