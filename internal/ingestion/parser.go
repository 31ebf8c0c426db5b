package ingestion

import (
	"LendAuction/internal/event"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed event.Command. The ingestion shell validates, parses, and
// converts raw messages before sending to the deterministic core.
func ParseRawCommand(raw RawCommand, commandType string) (event.Command, error) {
	switch commandType {
	case "InitializeAuction":
		return parseInitializeAuction(raw.Data)
	case "Deposit":
		return parseDeposit(raw.Data)
	case "SubmitBid":
		return parseSubmitBid(raw.Data)
	case "SubmitAsk":
		return parseSubmitAsk(raw.Data)
	case "RepayLoan":
		return parseRepayLoan(raw.Data)
	case "LiquidateLoan":
		return parseLiquidateLoan(raw.Data)
	case "CleanupShard":
		return parseCleanupShard(raw.Data)
	case "WithdrawFees":
		return parseWithdrawFees(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type initializeAuctionJSON struct {
	CommandID       string   `json:"command_id"`
	Admin           string   `json:"admin"`
	ShardCount      uint64   `json:"shard_count"`
	SupportedAssets []string `json:"supported_assets"`
	Sequence        int64    `json:"sequence"`
	TimestampUs     int64    `json:"timestamp_us"`
}

func parseInitializeAuction(data []byte) (*event.InitializeAuction, error) {
	var j initializeAuctionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InitializeAuction: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	admin, err := uuid.Parse(j.Admin)
	if err != nil {
		return nil, fmt.Errorf("parse admin: %w", err)
	}
	return &event.InitializeAuction{
		CommandID:       commandID,
		Admin:           admin,
		ShardCount:      j.ShardCount,
		SupportedAssets: j.SupportedAssets,
		Sequence:        j.Sequence,
		Timestamp:       j.TimestampUs,
	}, nil
}

type depositJSON struct {
	DepositID   string `json:"deposit_id"`
	UserID      string `json:"user_id"`
	Asset       string `json:"asset"`
	Amount      uint64 `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDeposit(data []byte) (*event.Deposit, error) {
	var j depositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Deposit: %w", err)
	}
	depositID, err := uuid.Parse(j.DepositID)
	if err != nil {
		return nil, fmt.Errorf("parse deposit_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	return &event.Deposit{
		DepositID: depositID,
		UserID:    userID,
		Asset:     j.Asset,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type submitBidJSON struct {
	CommandID   string `json:"command_id"`
	Lender      string `json:"lender"`
	Asset       string `json:"asset"`
	Amount      uint64 `json:"amount"`
	MinRate     uint8  `json:"min_rate"`
	DurationUs  int64  `json:"duration_us"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseSubmitBid(data []byte) (*event.SubmitBid, error) {
	var j submitBidJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SubmitBid: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	lender, err := uuid.Parse(j.Lender)
	if err != nil {
		return nil, fmt.Errorf("parse lender: %w", err)
	}
	return &event.SubmitBid{
		CommandID: commandID,
		Lender:    lender,
		Asset:     j.Asset,
		Amount:    j.Amount,
		MinRate:   j.MinRate,
		Duration:  j.DurationUs,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type submitAskJSON struct {
	CommandID       string `json:"command_id"`
	Borrower        string `json:"borrower"`
	Asset           string `json:"asset"`
	Amount          uint64 `json:"amount"`
	MaxRate         uint8  `json:"max_rate"`
	Collateral      uint64 `json:"collateral"`
	CollateralAsset string `json:"collateral_asset"`
	Sequence        int64  `json:"sequence"`
	TimestampUs     int64  `json:"timestamp_us"`
}

func parseSubmitAsk(data []byte) (*event.SubmitAsk, error) {
	var j submitAskJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SubmitAsk: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	borrower, err := uuid.Parse(j.Borrower)
	if err != nil {
		return nil, fmt.Errorf("parse borrower: %w", err)
	}
	return &event.SubmitAsk{
		CommandID:       commandID,
		Borrower:        borrower,
		Asset:           j.Asset,
		Amount:          j.Amount,
		MaxRate:         j.MaxRate,
		Collateral:      j.Collateral,
		CollateralAsset: j.CollateralAsset,
		Sequence:        j.Sequence,
		Timestamp:       j.TimestampUs,
	}, nil
}

type repayLoanJSON struct {
	CommandID      string `json:"command_id"`
	Borrower       string `json:"borrower"`
	Shard          uint64 `json:"shard_id"`
	LoanIndex      uint64 `json:"loan_index"`
	RepaymentAsset string `json:"repayment_asset"`
	Sequence       int64  `json:"sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseRepayLoan(data []byte) (*event.RepayLoan, error) {
	var j repayLoanJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RepayLoan: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	borrower, err := uuid.Parse(j.Borrower)
	if err != nil {
		return nil, fmt.Errorf("parse borrower: %w", err)
	}
	return &event.RepayLoan{
		CommandID:      commandID,
		Borrower:       borrower,
		Shard:          j.Shard,
		LoanIndex:      j.LoanIndex,
		RepaymentAsset: j.RepaymentAsset,
		Sequence:       j.Sequence,
		Timestamp:      j.TimestampUs,
	}, nil
}

type liquidateLoanJSON struct {
	CommandID       string `json:"command_id"`
	Liquidator      string `json:"liquidator"`
	Shard           uint64 `json:"shard_id"`
	LoanIndex       uint64 `json:"loan_index"`
	MinimumProceeds uint64 `json:"minimum_proceeds"`
	Sequence        int64  `json:"sequence"`
	TimestampUs     int64  `json:"timestamp_us"`
}

func parseLiquidateLoan(data []byte) (*event.LiquidateLoan, error) {
	var j liquidateLoanJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidateLoan: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	liquidator, err := uuid.Parse(j.Liquidator)
	if err != nil {
		return nil, fmt.Errorf("parse liquidator: %w", err)
	}
	return &event.LiquidateLoan{
		CommandID:       commandID,
		Liquidator:      liquidator,
		Shard:           j.Shard,
		LoanIndex:       j.LoanIndex,
		MinimumProceeds: j.MinimumProceeds,
		Sequence:        j.Sequence,
		Timestamp:       j.TimestampUs,
	}, nil
}

type cleanupShardJSON struct {
	CommandID   string `json:"command_id"`
	Shard       uint64 `json:"shard_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseCleanupShard(data []byte) (*event.CleanupShard, error) {
	var j cleanupShardJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CleanupShard: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	return &event.CleanupShard{
		CommandID: commandID,
		Shard:     j.Shard,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type withdrawFeesJSON struct {
	CommandID   string `json:"command_id"`
	Caller      string `json:"caller"`
	Shard       uint64 `json:"shard_id"`
	Asset       string `json:"asset"`
	Amount      uint64 `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseWithdrawFees(data []byte) (*event.WithdrawFees, error) {
	var j withdrawFeesJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawFees: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	caller, err := uuid.Parse(j.Caller)
	if err != nil {
		return nil, fmt.Errorf("parse caller: %w", err)
	}
	return &event.WithdrawFees{
		CommandID: commandID,
		Caller:    caller,
		Shard:     j.Shard,
		Asset:     j.Asset,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}
