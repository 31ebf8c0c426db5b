package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInsufficientBalance is returned when a pre-check shows the paying
// account cannot cover the transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

// LoanDisbursement is one vault-to-borrower leg of a matched submission.
type LoanDisbursement struct {
	Borrower uuid.UUID
	Amount   int64
}

// CleanupSettlement is one expired order's refund/fee split.
type CleanupSettlement struct {
	Recipient uuid.UUID
	AssetID   AssetID
	Refund    int64
	Fee       int64
}

// JournalGenerator creates balanced journal batches for auction operations.
// Pre-checks run against the balance tracker BEFORE any journal is applied,
// so a failed operation produces no batch at all.
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // Reference for pre-checks
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// SetSequence restores the generator sequence after snapshot load
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

// GenerateDeposit creates journals for funds entering the system.
// Moves funds: external → user
func (jg *JournalGenerator) GenerateDeposit(
	userID uuid.UUID,
	assetID AssetID,
	amount int64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals: []Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewUserAccountKey(userID, assetID),
			CreditAccount: NewExternalAccountKey(assetID),
			AssetID:       assetID,
			Amount:        amount,
			JournalType:   JournalTypeDeposit,
			Timestamp:     timestamp,
		}},
	}

	jg.sequence++
	return batch, nil
}

// GenerateBidSubmission escrows the lender's bid amount into the shard
// vault and, when the bid matched, disburses each loan amount from the
// vault to its borrower.
// Moves funds: lender → vault, then vault → borrower per loan
func (jg *JournalGenerator) GenerateBidSubmission(
	shard uint64,
	lender uuid.UUID,
	assetID AssetID,
	amount int64,
	disbursements []LoanDisbursement,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	lenderKey := NewUserAccountKey(lender, assetID)
	if jg.balanceTracker.GetBalance(lenderKey) < amount {
		return nil, fmt.Errorf("%w: %s needs %d",
			ErrInsufficientBalance, lenderKey.AccountPath(), amount)
	}

	vaultKey := NewVaultAccountKey(shard, assetID)
	batchID := uuid.New()
	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1+len(disbursements)),
	}

	batch.Journals = append(batch.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  vaultKey,
		CreditAccount: lenderKey,
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   JournalTypeBidEscrow,
		Timestamp:     timestamp,
	})

	for _, d := range disbursements {
		batch.Journals = append(batch.Journals, Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewUserAccountKey(d.Borrower, assetID),
			CreditAccount: vaultKey,
			AssetID:       assetID,
			Amount:        d.Amount,
			JournalType:   JournalTypeLoanDisbursement,
			Timestamp:     timestamp,
		})
	}

	jg.sequence++
	return batch, nil
}

// GenerateAskSubmission escrows the borrower's collateral into the shard
// vault and, when the ask matched, disburses the loan asset from the vault
// (funded by resting bids' escrow) to the borrower.
// Moves funds: borrower → vault (collateral), vault → borrower (loan asset)
func (jg *JournalGenerator) GenerateAskSubmission(
	shard uint64,
	borrower uuid.UUID,
	collateralAssetID AssetID,
	collateral int64,
	loanAssetID AssetID,
	disbursed int64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	borrowerCollateralKey := NewUserAccountKey(borrower, collateralAssetID)
	if jg.balanceTracker.GetBalance(borrowerCollateralKey) < collateral {
		return nil, fmt.Errorf("%w: %s needs %d",
			ErrInsufficientBalance, borrowerCollateralKey.AccountPath(), collateral)
	}

	loanVaultKey := NewVaultAccountKey(shard, loanAssetID)
	if disbursed > 0 && jg.balanceTracker.GetBalance(loanVaultKey) < disbursed {
		return nil, fmt.Errorf("%w: %s needs %d",
			ErrInsufficientBalance, loanVaultKey.AccountPath(), disbursed)
	}

	batchID := uuid.New()
	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 2),
	}

	batch.Journals = append(batch.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewVaultAccountKey(shard, collateralAssetID),
		CreditAccount: borrowerCollateralKey,
		AssetID:       collateralAssetID,
		Amount:        collateral,
		JournalType:   JournalTypeCollateralEscrow,
		Timestamp:     timestamp,
	})

	if disbursed > 0 {
		batch.Journals = append(batch.Journals, Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewUserAccountKey(borrower, loanAssetID),
			CreditAccount: loanVaultKey,
			AssetID:       loanAssetID,
			Amount:        disbursed,
			JournalType:   JournalTypeLoanDisbursement,
			Timestamp:     timestamp,
		})
	}

	jg.sequence++
	return batch, nil
}

// GenerateRepayment pays the lender the repayment due from the borrower and
// releases the escrowed collateral back to the borrower.
// Moves funds: borrower → lender (loan asset), vault → borrower (collateral)
func (jg *JournalGenerator) GenerateRepayment(
	shard uint64,
	borrower, lender uuid.UUID,
	loanAssetID AssetID,
	repaymentDue int64,
	collateralAssetID AssetID,
	collateral int64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	borrowerKey := NewUserAccountKey(borrower, loanAssetID)
	if jg.balanceTracker.GetBalance(borrowerKey) < repaymentDue {
		return nil, fmt.Errorf("%w: %s needs %d",
			ErrInsufficientBalance, borrowerKey.AccountPath(), repaymentDue)
	}

	collateralVaultKey := NewVaultAccountKey(shard, collateralAssetID)
	if jg.balanceTracker.GetBalance(collateralVaultKey) < collateral {
		return nil, fmt.Errorf("%w: %s needs %d",
			ErrInsufficientBalance, collateralVaultKey.AccountPath(), collateral)
	}

	batchID := uuid.New()
	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals: []Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      eventRef,
				Sequence:      jg.sequence,
				DebitAccount:  NewUserAccountKey(lender, loanAssetID),
				CreditAccount: borrowerKey,
				AssetID:       loanAssetID,
				Amount:        repaymentDue,
				JournalType:   JournalTypeRepayment,
				Timestamp:     timestamp,
			},
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      eventRef,
				Sequence:      jg.sequence,
				DebitAccount:  NewUserAccountKey(borrower, collateralAssetID),
				CreditAccount: collateralVaultKey,
				AssetID:       collateralAssetID,
				Amount:        collateral,
				JournalType:   JournalTypeCollateralRelease,
				Timestamp:     timestamp,
			},
		},
	}

	jg.sequence++
	return batch, nil
}

// GenerateLiquidation records the collateral leaving the vault for the swap,
// the swap proceeds arriving on the liquidator, and the repayment forwarded
// from the liquidator to the lender. The remainder of the proceeds stays
// with the liquidator as profit.
// Moves funds: vault → external (collateral), external → liquidator
// (proceeds), liquidator → lender (repayment)
func (jg *JournalGenerator) GenerateLiquidation(
	shard uint64,
	liquidator, lender uuid.UUID,
	collateralAssetID AssetID,
	collateral int64,
	loanAssetID AssetID,
	proceeds, repaymentDue int64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	collateralVaultKey := NewVaultAccountKey(shard, collateralAssetID)
	if jg.balanceTracker.GetBalance(collateralVaultKey) < collateral {
		return nil, fmt.Errorf("%w: %s needs %d",
			ErrInsufficientBalance, collateralVaultKey.AccountPath(), collateral)
	}

	batchID := uuid.New()
	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals: []Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      eventRef,
				Sequence:      jg.sequence,
				DebitAccount:  NewExternalAccountKey(collateralAssetID),
				CreditAccount: collateralVaultKey,
				AssetID:       collateralAssetID,
				Amount:        collateral,
				JournalType:   JournalTypeSwapOut,
				Timestamp:     timestamp,
			},
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      eventRef,
				Sequence:      jg.sequence,
				DebitAccount:  NewUserAccountKey(liquidator, loanAssetID),
				CreditAccount: NewExternalAccountKey(loanAssetID),
				AssetID:       loanAssetID,
				Amount:        proceeds,
				JournalType:   JournalTypeSwapProceeds,
				Timestamp:     timestamp,
			},
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      eventRef,
				Sequence:      jg.sequence,
				DebitAccount:  NewUserAccountKey(lender, loanAssetID),
				CreditAccount: NewUserAccountKey(liquidator, loanAssetID),
				AssetID:       loanAssetID,
				Amount:        repaymentDue,
				JournalType:   JournalTypeLiquidationPayout,
				Timestamp:     timestamp,
			},
		},
	}

	jg.sequence++
	return batch, nil
}

// GenerateCleanup settles expired orders: each removal refunds the
// submitter from the shard vault and credits the fee to the fee vault.
// Moves funds: vault → submitter (refund), vault → fee vault (fee)
func (jg *JournalGenerator) GenerateCleanup(
	shard uint64,
	settlements []CleanupSettlement,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()
	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 2*len(settlements)),
	}

	for _, s := range settlements {
		vaultKey := NewVaultAccountKey(shard, s.AssetID)
		if s.Refund > 0 {
			batch.Journals = append(batch.Journals, Journal{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      eventRef,
				Sequence:      jg.sequence,
				DebitAccount:  NewUserAccountKey(s.Recipient, s.AssetID),
				CreditAccount: vaultKey,
				AssetID:       s.AssetID,
				Amount:        s.Refund,
				JournalType:   JournalTypeCleanupRefund,
				Timestamp:     timestamp,
			})
		}
		if s.Fee > 0 {
			batch.Journals = append(batch.Journals, Journal{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      eventRef,
				Sequence:      jg.sequence,
				DebitAccount:  NewFeeVaultAccountKey(shard, s.AssetID),
				CreditAccount: vaultKey,
				AssetID:       s.AssetID,
				Amount:        s.Fee,
				JournalType:   JournalTypeCleanupFee,
				Timestamp:     timestamp,
			})
		}
	}

	jg.sequence++
	return batch, nil
}

// GenerateFeeWithdrawal debits a shard fee vault and credits the admin.
// Moves funds: fee vault → admin
func (jg *JournalGenerator) GenerateFeeWithdrawal(
	shard uint64,
	admin uuid.UUID,
	assetID AssetID,
	amount int64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	feeVaultKey := NewFeeVaultAccountKey(shard, assetID)
	if jg.balanceTracker.GetBalance(feeVaultKey) < amount {
		return nil, fmt.Errorf("%w: %s needs %d",
			ErrInsufficientBalance, feeVaultKey.AccountPath(), amount)
	}

	batchID := uuid.New()
	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals: []Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewUserAccountKey(admin, assetID),
			CreditAccount: feeVaultKey,
			AssetID:       assetID,
			Amount:        amount,
			JournalType:   JournalTypeFeeWithdrawal,
			Timestamp:     timestamp,
		}},
	}

	jg.sequence++
	return batch, nil
}
