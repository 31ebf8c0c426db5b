package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies a batch is balanced and well-formed
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateVaultNonNegative checks a shard escrow vault never goes negative
func (v *InvariantValidator) ValidateVaultNonNegative(shard uint64, assetID AssetID) error {
	return v.tracker.ValidateNonNegative(NewVaultAccountKey(shard, assetID))
}

// ValidateFeeVaultNonNegative checks a shard fee vault never goes negative
func (v *InvariantValidator) ValidateFeeVaultNonNegative(shard uint64, assetID AssetID) error {
	return v.tracker.ValidateNonNegative(NewFeeVaultAccountKey(shard, assetID))
}

// ValidateUserNonNegative checks a user account never goes negative
func (v *InvariantValidator) ValidateUserNonNegative(userID uuid.UUID, assetID AssetID) error {
	return v.tracker.ValidateNonNegative(NewUserAccountKey(userID, assetID))
}

// ValidateGlobalBalance verifies the system is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}
