package ingestion_test

import (
	"LendAuction/internal/event"
	"LendAuction/internal/ingestion"
	"encoding/json"
	"testing"
	"time"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseInitializeAuction(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":       "550e8400-e29b-41d4-a716-446655440000",
		"admin":            "660e8400-e29b-41d4-a716-446655440001",
		"shard_count":      uint64(16),
		"supported_assets": []string{"USDC", "SOL"},
		"sequence":         int64(0),
		"timestamp_us":     int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "InitializeAuction")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	init, ok := cmd.(*event.InitializeAuction)
	if !ok {
		t.Fatalf("expected *event.InitializeAuction, got %T", cmd)
	}

	if init.ShardCount != 16 {
		t.Errorf("shard_count: got %d, want 16", init.ShardCount)
	}
	if len(init.SupportedAssets) != 2 || init.SupportedAssets[0] != "USDC" {
		t.Errorf("supported_assets: got %v", init.SupportedAssets)
	}
	if init.Partition() != "admin" {
		t.Errorf("partition: got %s, want admin", init.Partition())
	}
}

func TestParseSubmitBid(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"lender":       "660e8400-e29b-41d4-a716-446655440001",
		"asset":        "USDC",
		"amount":       uint64(1_000_000),
		"min_rate":     uint8(10),
		"duration_us":  int64(86_400_000_000),
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SubmitBid")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	bid, ok := cmd.(*event.SubmitBid)
	if !ok {
		t.Fatalf("expected *event.SubmitBid, got %T", cmd)
	}

	if bid.Asset != "USDC" {
		t.Errorf("asset: got %s, want USDC", bid.Asset)
	}
	if bid.Amount != 1_000_000 {
		t.Errorf("amount: got %d, want 1_000_000", bid.Amount)
	}
	if bid.MinRate != 10 {
		t.Errorf("min_rate: got %d, want 10", bid.MinRate)
	}
	if bid.Duration != 86_400_000_000 {
		t.Errorf("duration_us: got %d, want 86_400_000_000", bid.Duration)
	}
	if bid.EventType() != event.EventTypeSubmitBid {
		t.Errorf("command type: got %v, want SubmitBid", bid.EventType())
	}
}

func TestParseSubmitAsk(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":       "550e8400-e29b-41d4-a716-446655440000",
		"borrower":         "660e8400-e29b-41d4-a716-446655440001",
		"asset":            "USDC",
		"amount":           uint64(500_000),
		"max_rate":         uint8(12),
		"collateral":       uint64(900_000),
		"collateral_asset": "SOL",
		"sequence":         int64(3),
		"timestamp_us":     int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SubmitAsk")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ask, ok := cmd.(*event.SubmitAsk)
	if !ok {
		t.Fatalf("expected *event.SubmitAsk, got %T", cmd)
	}

	if ask.Collateral != 900_000 {
		t.Errorf("collateral: got %d, want 900_000", ask.Collateral)
	}
	if ask.CollateralAsset != "SOL" {
		t.Errorf("collateral_asset: got %s, want SOL", ask.CollateralAsset)
	}
	if ask.MaxRate != 12 {
		t.Errorf("max_rate: got %d, want 12", ask.MaxRate)
	}
}

func TestParseRepayLoan(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":      "550e8400-e29b-41d4-a716-446655440000",
		"borrower":        "660e8400-e29b-41d4-a716-446655440001",
		"shard_id":        uint64(3),
		"loan_index":      uint64(7),
		"repayment_asset": "USDC",
		"sequence":        int64(9),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "RepayLoan")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	repay, ok := cmd.(*event.RepayLoan)
	if !ok {
		t.Fatalf("expected *event.RepayLoan, got %T", cmd)
	}

	if repay.Shard != 3 {
		t.Errorf("shard_id: got %d, want 3", repay.Shard)
	}
	if repay.LoanIndex != 7 {
		t.Errorf("loan_index: got %d, want 7", repay.LoanIndex)
	}
	if shard := repay.ShardID(); shard == nil || *shard != 3 {
		t.Errorf("ShardID: got %v, want 3", shard)
	}
}

func TestParseLiquidateLoan(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":       "550e8400-e29b-41d4-a716-446655440000",
		"liquidator":       "660e8400-e29b-41d4-a716-446655440001",
		"shard_id":         uint64(1),
		"loan_index":       uint64(0),
		"minimum_proceeds": uint64(550_000),
		"sequence":         int64(4),
		"timestamp_us":     int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "LiquidateLoan")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	liq, ok := cmd.(*event.LiquidateLoan)
	if !ok {
		t.Fatalf("expected *event.LiquidateLoan, got %T", cmd)
	}

	if liq.MinimumProceeds != 550_000 {
		t.Errorf("minimum_proceeds: got %d, want 550_000", liq.MinimumProceeds)
	}
}

func TestParseCleanupShard(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"shard_id":     uint64(5),
		"sequence":     int64(2),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "CleanupShard")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cleanup, ok := cmd.(*event.CleanupShard)
	if !ok {
		t.Fatalf("expected *event.CleanupShard, got %T", cmd)
	}

	if cleanup.Shard != 5 {
		t.Errorf("shard_id: got %d, want 5", cleanup.Shard)
	}
	if cleanup.Partition() != "maintenance" {
		t.Errorf("partition: got %s, want maintenance", cleanup.Partition())
	}
}

func TestParseWithdrawFees(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller":       "660e8400-e29b-41d4-a716-446655440001",
		"shard_id":     uint64(2),
		"asset":        "USDC",
		"amount":       uint64(5_000),
		"sequence":     int64(8),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "WithdrawFees")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	wf, ok := cmd.(*event.WithdrawFees)
	if !ok {
		t.Fatalf("expected *event.WithdrawFees, got %T", cmd)
	}

	if wf.Amount != 5_000 {
		t.Errorf("amount: got %d, want 5_000", wf.Amount)
	}
	if wf.Asset != "USDC" {
		t.Errorf("asset: got %s, want USDC", wf.Asset)
	}
}

func TestParseDeposit(t *testing.T) {
	payload := map[string]interface{}{
		"deposit_id":   "550e8400-e29b-41d4-a716-446655440000",
		"user_id":      "660e8400-e29b-41d4-a716-446655440001",
		"asset":        "USDC",
		"amount":       uint64(2_000_000),
		"sequence":     int64(0),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "Deposit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dep, ok := cmd.(*event.Deposit)
	if !ok {
		t.Fatalf("expected *event.Deposit, got %T", cmd)
	}

	if dep.Amount != 2_000_000 {
		t.Errorf("amount: got %d, want 2_000_000", dep.Amount)
	}
	if dep.Partition() != "funds" {
		t.Errorf("partition: got %s, want funds", dep.Partition())
	}
}

func TestParseUnknownCommandType_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawCommand(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawCommand(raw, "SubmitBid")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "not-a-uuid",
		"lender":       "also-not-a-uuid",
		"asset":        "USDC",
		"amount":       uint64(1),
		"min_rate":     uint8(1),
		"duration_us":  int64(1),
		"sequence":     int64(0),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, "SubmitBid")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
