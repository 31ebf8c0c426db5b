package ledger_test

import (
	"LendAuction/internal/ledger"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	// The registry is normally populated by the Initialize command.
	ledger.RegisterAssets([]string{"USDC", "SOL"})
	os.Exit(m.Run())
}

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_UserPath(t *testing.T) {
	userID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	assetID, _ := ledger.GetAssetID("USDC")
	key := ledger.NewUserAccountKey(userID, assetID)

	path := key.AccountPath()
	expected := "user:550e8400-e29b-41d4-a716-446655440000:USDC"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_VaultPaths(t *testing.T) {
	assetID, _ := ledger.GetAssetID("SOL")

	vault := ledger.NewVaultAccountKey(7, assetID)
	if vault.AccountPath() != "vault:shard:7:SOL" {
		t.Errorf("got %q, want %q", vault.AccountPath(), "vault:shard:7:SOL")
	}
	if vault.Shard() != 7 {
		t.Errorf("got shard %d, want 7", vault.Shard())
	}

	feeVault := ledger.NewFeeVaultAccountKey(7, assetID)
	if feeVault.AccountPath() != "feevault:shard:7:SOL" {
		t.Errorf("got %q, want %q", feeVault.AccountPath(), "feevault:shard:7:SOL")
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	assetID, _ := ledger.GetAssetID("USDC")
	key := ledger.NewExternalAccountKey(assetID)

	if key.AccountPath() != "external:USDC" {
		t.Errorf("got %q, want %q", key.AccountPath(), "external:USDC")
	}
}

func TestParseAccountPath_Roundtrip(t *testing.T) {
	assetID, _ := ledger.GetAssetID("USDC")
	keys := []ledger.AccountKey{
		ledger.NewUserAccountKey(uuid.New(), assetID),
		ledger.NewVaultAccountKey(3, assetID),
		ledger.NewFeeVaultAccountKey(3, assetID),
		ledger.NewExternalAccountKey(assetID),
	}

	for _, key := range keys {
		path := key.AccountPath()
		parsed, err := ledger.ParseAccountPath(path)
		if err != nil {
			t.Errorf("parse %q: %v", path, err)
			continue
		}
		if parsed != key {
			t.Errorf("roundtrip mismatch for %q: %+v != %+v", path, parsed, key)
		}
	}
}

func TestParseAccountPath_Malformed(t *testing.T) {
	for _, path := range []string{
		"",
		"user:not-a-uuid:USDC",
		"user:550e8400-e29b-41d4-a716-446655440000:DOGE",
		"vault:shard:abc:USDC",
		"external:DOGE",
		"something:else",
	} {
		if _, err := ledger.ParseAccountPath(path); err == nil {
			t.Errorf("expected error for %q", path)
		}
	}
}

func TestGetAssetID_RegistryOrder(t *testing.T) {
	usdc, ok := ledger.GetAssetID("USDC")
	if !ok || usdc != 1 {
		t.Errorf("USDC should be asset 1, got %d (ok=%v)", usdc, ok)
	}
	sol, ok := ledger.GetAssetID("SOL")
	if !ok || sol != 2 {
		t.Errorf("SOL should be asset 2, got %d (ok=%v)", sol, ok)
	}
	if _, ok := ledger.GetAssetID("DOGE"); ok {
		t.Error("DOGE should not be a known asset")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func depositJournal(userID uuid.UUID, assetID ledger.AssetID, amount int64) ledger.Journal {
	return ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewUserAccountKey(userID, assetID),
		CreditAccount: ledger.NewExternalAccountKey(assetID),
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   ledger.JournalTypeDeposit,
	}
}

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	assetID, _ := ledger.GetAssetID("USDC")

	if b := bt.GetUserBalance(uuid.New(), assetID); b != 0 {
		t.Errorf("initial balance should be 0, got %d", b)
	}
}

func TestBalanceTracker_DebitIncreasesCreditDecreases(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()
	assetID, _ := ledger.GetAssetID("USDC")

	bt.ApplyJournal(depositJournal(userID, assetID, 1_000_000))

	if b := bt.GetUserBalance(userID, assetID); b != 1_000_000 {
		t.Errorf("user balance: got %d, want 1_000_000", b)
	}
	external := bt.GetBalance(ledger.NewExternalAccountKey(assetID))
	if external != -1_000_000 {
		t.Errorf("external balance: got %d, want -1_000_000", external)
	}
}

func TestBalanceTracker_ApplyBatch(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()
	assetID, _ := ledger.GetAssetID("USDC")
	batchID := uuid.New()

	j := depositJournal(userID, assetID, 500_000)
	j.BatchID = batchID

	if err := bt.ApplyBatch(&ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{j}}); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	if b := bt.GetUserBalance(userID, assetID); b != 500_000 {
		t.Errorf("expected 500_000 after batch apply, got %d", b)
	}
}

func TestBalanceTracker_GlobalBalanceZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()
	usdc, _ := ledger.GetAssetID("USDC")

	bt.ApplyJournal(depositJournal(userID, usdc, 1_000_000))

	// Escrow into a shard vault keeps the books balanced.
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewVaultAccountKey(0, usdc),
		CreditAccount: ledger.NewUserAccountKey(userID, usdc),
		AssetID:       usdc,
		Amount:        300_000,
		JournalType:   ledger.JournalTypeBidEscrow,
	})

	for assetID, total := range bt.ComputeGlobalBalance() {
		if total != 0 {
			t.Errorf("asset %d has non-zero global balance: %d", assetID, total)
		}
	}
}

func TestBalanceTracker_ValidateSufficient(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()
	assetID, _ := ledger.GetAssetID("USDC")
	key := ledger.NewUserAccountKey(userID, assetID)

	if err := bt.ValidateSufficient(key, 100); err == nil {
		t.Error("expected error for insufficient balance")
	}

	bt.ApplyJournal(depositJournal(userID, assetID, 1_000))

	if err := bt.ValidateSufficient(key, 1_000); err != nil {
		t.Errorf("should have sufficient balance: %v", err)
	}
	if err := bt.ValidateSufficient(key, 1_001); err == nil {
		t.Error("expected error for 1_001 > 1_000")
	}
}

func TestBalanceTracker_Snapshot(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	userID := uuid.New()
	assetID, _ := ledger.GetAssetID("USDC")

	bt.ApplyJournal(depositJournal(userID, assetID, 999))

	snap := bt.Snapshot()
	if len(snap) == 0 {
		t.Fatal("snapshot should not be empty")
	}

	// Mutating the snapshot must not affect the tracker.
	for k := range snap {
		snap[k] = 0
	}

	if b := bt.GetUserBalance(userID, assetID); b != 999 {
		t.Errorf("tracker balance affected by snapshot mutation: %d", b)
	}
}

// ============================================================================
// Test: Batch Validation
// ============================================================================

func TestBatchValidate_EmptyBatch_Fails(t *testing.T) {
	batch := &ledger.Batch{BatchID: uuid.New(), Journals: []ledger.Journal{}}
	if err := batch.Validate(); err == nil {
		t.Error("empty batch should fail validation")
	}
}

func TestBatchValidate_NonPositiveAmount_Fails(t *testing.T) {
	assetID, _ := ledger.GetAssetID("USDC")
	batchID := uuid.New()

	for _, amount := range []int64{0, -100} {
		j := depositJournal(uuid.New(), assetID, amount)
		j.BatchID = batchID
		batch := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{j}}
		if err := batch.Validate(); err == nil {
			t.Errorf("amount %d should fail validation", amount)
		}
	}
}

func TestBatchValidate_SelfTransfer_Fails(t *testing.T) {
	assetID, _ := ledger.GetAssetID("USDC")
	batchID := uuid.New()
	sameAccount := ledger.NewUserAccountKey(uuid.New(), assetID)

	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  sameAccount,
			CreditAccount: sameAccount,
			AssetID:       assetID,
			Amount:        100,
		}},
	}
	if err := batch.Validate(); err == nil {
		t.Error("self-transfer should fail validation")
	}
}

func TestBatchValidate_MismatchedBatchID_Fails(t *testing.T) {
	assetID, _ := ledger.GetAssetID("USDC")

	j := depositJournal(uuid.New(), assetID, 100) // Random batch ID inside
	batch := &ledger.Batch{BatchID: uuid.New(), Journals: []ledger.Journal{j}}
	if err := batch.Validate(); err == nil {
		t.Error("mismatched batch ID should fail validation")
	}
}

func TestBatchValidate_ValidBatch_Passes(t *testing.T) {
	assetID, _ := ledger.GetAssetID("USDC")
	batchID := uuid.New()

	j := depositJournal(uuid.New(), assetID, 1_000_000)
	j.BatchID = batchID
	batch := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{j}}
	if err := batch.Validate(); err != nil {
		t.Errorf("valid batch should pass: %v", err)
	}
}

// ============================================================================
// Test: JournalGenerator
// ============================================================================

func TestGenerator_BidSubmission_RequiresLenderFunds(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)
	lender := uuid.New()
	assetID, _ := ledger.GetAssetID("USDC")

	_, err := gen.GenerateBidSubmission(0, lender, assetID, 100_000, nil, "ref", 0)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	bt.ApplyJournal(depositJournal(lender, assetID, 100_000))

	batch, err := gen.GenerateBidSubmission(0, lender, assetID, 100_000, nil, "ref", 0)
	if err != nil {
		t.Fatalf("GenerateBidSubmission failed: %v", err)
	}
	if len(batch.Journals) != 1 || batch.Journals[0].JournalType != ledger.JournalTypeBidEscrow {
		t.Errorf("expected a single escrow journal, got %+v", batch.Journals)
	}
}

func TestGenerator_MatchedBid_DisbursesPerLoan(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)
	lender := uuid.New()
	borrowerA, borrowerB := uuid.New(), uuid.New()
	assetID, _ := ledger.GetAssetID("USDC")

	bt.ApplyJournal(depositJournal(lender, assetID, 100_000))

	batch, err := gen.GenerateBidSubmission(0, lender, assetID, 100_000,
		[]ledger.LoanDisbursement{
			{Borrower: borrowerA, Amount: 60_000},
			{Borrower: borrowerB, Amount: 40_000},
		}, "ref", 0)
	if err != nil {
		t.Fatalf("GenerateBidSubmission failed: %v", err)
	}
	if len(batch.Journals) != 3 {
		t.Fatalf("expected escrow + 2 disbursements, got %d journals", len(batch.Journals))
	}

	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}
	if b := bt.GetVaultBalance(0, assetID); b != 0 {
		t.Errorf("vault should be fully disbursed, got %d", b)
	}
	if b := bt.GetUserBalance(borrowerA, assetID); b != 60_000 {
		t.Errorf("borrower A: got %d, want 60_000", b)
	}
}

func TestGenerator_Cleanup_SplitsRefundAndFee(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)
	lender := uuid.New()
	assetID, _ := ledger.GetAssetID("USDC")

	// Escrowed funds sit in the shard vault.
	bt.ApplyJournal(depositJournal(lender, assetID, 1_000_000))
	escrow, _ := gen.GenerateBidSubmission(0, lender, assetID, 1_000_000, nil, "ref1", 0)
	if err := bt.ApplyBatch(escrow); err != nil {
		t.Fatalf("apply escrow: %v", err)
	}

	batch, err := gen.GenerateCleanup(0, []ledger.CleanupSettlement{{
		Recipient: lender,
		AssetID:   assetID,
		Refund:    995_000,
		Fee:       5_000,
	}}, "ref2", 0)
	if err != nil {
		t.Fatalf("GenerateCleanup failed: %v", err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("apply cleanup: %v", err)
	}

	if b := bt.GetVaultBalance(0, assetID); b != 0 {
		t.Errorf("vault residue after cleanup: %d", b)
	}
	if b := bt.GetFeeVaultBalance(0, assetID); b != 5_000 {
		t.Errorf("fee vault: got %d, want 5_000", b)
	}
	if b := bt.GetUserBalance(lender, assetID); b != 995_000 {
		t.Errorf("refunded lender: got %d, want 995_000", b)
	}
}

func TestGenerator_FeeWithdrawal_RequiresVaultFunds(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)
	admin := uuid.New()
	assetID, _ := ledger.GetAssetID("USDC")

	_, err := gen.GenerateFeeWithdrawal(0, admin, assetID, 5_000, "ref", 0)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_GlobalBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("empty ledger should have zero global balance: %v", err)
	}

	assetID, _ := ledger.GetAssetID("USDC")
	bt.ApplyJournal(depositJournal(uuid.New(), assetID, 1_000_000))

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("balanced ledger should have zero global balance: %v", err)
	}
}

func TestInvariantValidator_DetectsImbalance(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)
	assetID, _ := ledger.GetAssetID("USDC")

	// SetBalance bypasses double entry (snapshot-restore path), so a bad
	// snapshot surfaces here.
	bt.SetBalance(ledger.NewUserAccountKey(uuid.New(), assetID), 42)

	if err := v.ValidateGlobalBalance(); err == nil {
		t.Error("expected imbalance to be detected")
	}
}
