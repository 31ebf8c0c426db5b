package ledger

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	// Escrow vault of one shard: holds resting bid amounts and ask collateral.
	AccountScopeVault
	// Fee vault of one shard: accumulates cleanup fees, debited by withdrawal.
	AccountScopeFeeVault
	// External boundary: deposits enter the system from here.
	AccountScopeExternal
)

// AssetID maps asset symbols to numeric IDs for performance
type AssetID uint16

// The asset registry is populated exactly once, from the Initialize
// command's supported-asset list. IDs are assigned in list order so a
// replay rebuilds the same mapping.
var (
	assetToID = map[string]AssetID{}
	idToAsset = map[AssetID]string{}
)

func RegisterAssets(symbols []string) {
	assetToID = make(map[string]AssetID, len(symbols))
	idToAsset = make(map[AssetID]string, len(symbols))
	for i, s := range symbols {
		id := AssetID(i + 1)
		assetToID[s] = id
		idToAsset[id] = s
	}
}

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking (19 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for users, little-endian shard id for vaults
	AssetID  AssetID
}

// NewUserAccountKey creates a key for user accounts
func NewUserAccountKey(userID uuid.UUID, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: userID,
		AssetID:  assetID,
	}
}

// NewVaultAccountKey creates a key for a shard's escrow vault
func NewVaultAccountKey(shard uint64, assetID AssetID) AccountKey {
	var entityID [16]byte
	binary.LittleEndian.PutUint64(entityID[:8], shard)
	return AccountKey{
		Scope:    AccountScopeVault,
		EntityID: entityID,
		AssetID:  assetID,
	}
}

// NewFeeVaultAccountKey creates a key for a shard's fee vault
func NewFeeVaultAccountKey(shard uint64, assetID AssetID) AccountKey {
	var entityID [16]byte
	binary.LittleEndian.PutUint64(entityID[:8], shard)
	return AccountKey{
		Scope:    AccountScopeFeeVault,
		EntityID: entityID,
		AssetID:  assetID,
	}
}

// NewExternalAccountKey creates a key for the external boundary account
func NewExternalAccountKey(assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		AssetID: assetID,
	}
}

// Shard extracts the shard id from vault and fee-vault keys.
func (k AccountKey) Shard() uint64 {
	return binary.LittleEndian.Uint64(k.EntityID[:8])
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:%s", uid.String(), assetName)
	case AccountScopeVault:
		return fmt.Sprintf("vault:shard:%d:%s", k.Shard(), assetName)
	case AccountScopeFeeVault:
		return fmt.Sprintf("feevault:shard:%d:%s", k.Shard(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s", assetName)
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath. The asset registry must
// already be populated: paths carry asset names, not IDs.
func ParseAccountPath(path string) (AccountKey, error) {
	switch {
	case strings.HasPrefix(path, "user:"):
		parts := strings.SplitN(path, ":", 3)
		if len(parts) != 3 {
			return AccountKey{}, fmt.Errorf("malformed user account path: %q", path)
		}
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse user id in %q: %w", path, err)
		}
		assetID, ok := GetAssetID(parts[2])
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown asset in %q", path)
		}
		return NewUserAccountKey(uid, assetID), nil

	case strings.HasPrefix(path, "vault:shard:"), strings.HasPrefix(path, "feevault:shard:"):
		parts := strings.SplitN(path, ":", 4)
		if len(parts) != 4 {
			return AccountKey{}, fmt.Errorf("malformed vault account path: %q", path)
		}
		shard, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse shard in %q: %w", path, err)
		}
		assetID, ok := GetAssetID(parts[3])
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown asset in %q", path)
		}
		if parts[0] == "vault" {
			return NewVaultAccountKey(shard, assetID), nil
		}
		return NewFeeVaultAccountKey(shard, assetID), nil

	case strings.HasPrefix(path, "external:"):
		assetID, ok := GetAssetID(strings.TrimPrefix(path, "external:"))
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown asset in %q", path)
		}
		return NewExternalAccountKey(assetID), nil
	}
	return AccountKey{}, fmt.Errorf("unrecognized account path: %q", path)
}
