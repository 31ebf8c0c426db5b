package ingestion

import (
	"LendAuction/internal/event"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IngestService provides direct command injection for the HTTP API and
// admin tooling. Not for high-throughput ingestion (use NATS for that).
//
// The service allocates per-partition source sequences itself, since API
// callers, unlike NATS producers, have no sequence of their own. Timestamps
// are stamped here at the boundary; the core never reads the clock.
type IngestService struct {
	commandChan chan<- event.Command

	mu      sync.Mutex
	nextSeq map[string]int64
}

func NewIngestService(commandChan chan<- event.Command) *IngestService {
	return &IngestService{
		commandChan: commandChan,
		nextSeq:     make(map[string]int64),
	}
}

// SeedSequence sets the next source sequence for a partition, used on
// startup to continue from where the recovered core expects.
func (s *IngestService) SeedSequence(partition string, next int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq[partition] = next
}

func (s *IngestService) allocate(partition string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq[partition]
	s.nextSeq[partition] = seq + 1
	return seq
}

func (s *IngestService) send(ctx context.Context, cmd event.Command) error {
	select {
	case s.commandChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectInitialize submits the one-time auction configuration.
func (s *IngestService) InjectInitialize(
	ctx context.Context,
	admin uuid.UUID,
	shardCount uint64,
	supportedAssets []string,
) error {
	if shardCount == 0 {
		return fmt.Errorf("shard count must be positive")
	}
	if len(supportedAssets) == 0 {
		return fmt.Errorf("supported assets must be non-empty")
	}

	cmd := &event.InitializeAuction{
		CommandID:       uuid.New(),
		Admin:           admin,
		ShardCount:      shardCount,
		SupportedAssets: supportedAssets,
		Timestamp:       time.Now().UnixMicro(),
	}
	cmd.Sequence = s.allocate(cmd.Partition())
	return s.send(ctx, cmd)
}

// InjectDeposit credits a user from the external boundary.
func (s *IngestService) InjectDeposit(
	ctx context.Context,
	userID uuid.UUID,
	asset string,
	amount uint64,
) error {
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}

	cmd := &event.Deposit{
		DepositID: uuid.New(),
		UserID:    userID,
		Asset:     asset,
		Amount:    amount,
		Timestamp: time.Now().UnixMicro(),
	}
	cmd.Sequence = s.allocate(cmd.Partition())
	return s.send(ctx, cmd)
}

// InjectSubmitBid submits a lender's offer.
func (s *IngestService) InjectSubmitBid(
	ctx context.Context,
	lender uuid.UUID,
	asset string,
	amount uint64,
	minRate uint8,
	duration time.Duration,
) error {
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}

	cmd := &event.SubmitBid{
		CommandID: uuid.New(),
		Lender:    lender,
		Asset:     asset,
		Amount:    amount,
		MinRate:   minRate,
		Duration:  duration.Microseconds(),
		Timestamp: time.Now().UnixMicro(),
	}
	cmd.Sequence = s.allocate(cmd.Partition())
	return s.send(ctx, cmd)
}

// InjectSubmitAsk submits a borrower's request.
func (s *IngestService) InjectSubmitAsk(
	ctx context.Context,
	borrower uuid.UUID,
	asset string,
	amount uint64,
	maxRate uint8,
	collateral uint64,
	collateralAsset string,
) error {
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	if collateral == 0 {
		return fmt.Errorf("collateral must be positive")
	}

	cmd := &event.SubmitAsk{
		CommandID:       uuid.New(),
		Borrower:        borrower,
		Asset:           asset,
		Amount:          amount,
		MaxRate:         maxRate,
		Collateral:      collateral,
		CollateralAsset: collateralAsset,
		Timestamp:       time.Now().UnixMicro(),
	}
	cmd.Sequence = s.allocate(cmd.Partition())
	return s.send(ctx, cmd)
}

// InjectRepay settles a loan in full.
func (s *IngestService) InjectRepay(
	ctx context.Context,
	borrower uuid.UUID,
	shard uint64,
	loanIndex uint64,
	repaymentAsset string,
) error {
	cmd := &event.RepayLoan{
		CommandID:      uuid.New(),
		Borrower:       borrower,
		Shard:          shard,
		LoanIndex:      loanIndex,
		RepaymentAsset: repaymentAsset,
		Timestamp:      time.Now().UnixMicro(),
	}
	cmd.Sequence = s.allocate(cmd.Partition())
	return s.send(ctx, cmd)
}

// InjectLiquidate liquidates an unhealthy loan.
func (s *IngestService) InjectLiquidate(
	ctx context.Context,
	liquidator uuid.UUID,
	shard uint64,
	loanIndex uint64,
	minimumProceeds uint64,
) error {
	cmd := &event.LiquidateLoan{
		CommandID:       uuid.New(),
		Liquidator:      liquidator,
		Shard:           shard,
		LoanIndex:       loanIndex,
		MinimumProceeds: minimumProceeds,
		Timestamp:       time.Now().UnixMicro(),
	}
	cmd.Sequence = s.allocate(cmd.Partition())
	return s.send(ctx, cmd)
}

// InjectCleanup expires stale orders in one shard.
func (s *IngestService) InjectCleanup(ctx context.Context, shard uint64) error {
	cmd := &event.CleanupShard{
		CommandID: uuid.New(),
		Shard:     shard,
		Timestamp: time.Now().UnixMicro(),
	}
	cmd.Sequence = s.allocate(cmd.Partition())
	return s.send(ctx, cmd)
}

// InjectWithdrawFees moves accumulated fees to the admin.
func (s *IngestService) InjectWithdrawFees(
	ctx context.Context,
	caller uuid.UUID,
	shard uint64,
	asset string,
	amount uint64,
) error {
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}

	cmd := &event.WithdrawFees{
		CommandID: uuid.New(),
		Caller:    caller,
		Shard:     shard,
		Asset:     asset,
		Amount:    amount,
		Timestamp: time.Now().UnixMicro(),
	}
	cmd.Sequence = s.allocate(cmd.Partition())
	return s.send(ctx, cmd)
}
