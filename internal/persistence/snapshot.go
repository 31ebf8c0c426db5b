package persistence

import (
	"LendAuction/internal/amm"
	"LendAuction/internal/auction"
	"LendAuction/internal/core"
	"LendAuction/internal/ledger"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager creates and loads state snapshots for recovery.
// A snapshot captures everything the core needs to resume: balances,
// books, loan pools, auction config, AMM reserves, per-partition
// sequence counters, the idempotency LRU, and the last state hash.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serialized form of core.SnapshotState. Balances
// are keyed by account path since JSON cannot key a map by struct.
type SnapshotData struct {
	Sequence        int64                        `json:"sequence"`
	StateHash       []byte                       `json:"state_hash"`
	Auction         *auction.State               `json:"auction,omitempty"`
	Books           map[uint64]*auction.Book     `json:"books"`
	LoanPools       map[uint64]*auction.LoanPool `json:"loan_pools"`
	Balances        map[string]int64             `json:"balances"`
	Pools           []amm.PoolState              `json:"amm_pools"`
	SequenceState   map[string]int64             `json:"sequence_state"`
	IdempotencyKeys []string                     `json:"idempotency_keys"`
	CreatedAt       time.Time                    `json:"created_at"`
}

// FromCoreSnapshot converts the core's snapshot into serializable form.
func FromCoreSnapshot(snap *core.SnapshotState) *SnapshotData {
	balances := make(map[string]int64, len(snap.Balances))
	for key, bal := range snap.Balances {
		balances[key.AccountPath()] = bal
	}

	return &SnapshotData{
		Sequence:        snap.Sequence,
		StateHash:       snap.StateHash[:],
		Auction:         snap.Auction,
		Books:           snap.Books,
		LoanPools:       snap.LoanPools,
		Balances:        balances,
		Pools:           snap.Pools,
		SequenceState:   snap.SequenceState,
		IdempotencyKeys: snap.IdempotencyKeys,
		CreatedAt:       time.Now(),
	}
}

// ToCoreSnapshot converts back for core restore. The auction state must
// be present: account paths carry asset names, so the registry has to
// be rebuilt before balances can be parsed.
func (sd *SnapshotData) ToCoreSnapshot() (*core.SnapshotState, error) {
	if len(sd.StateHash) != 32 {
		return nil, fmt.Errorf("snapshot state hash has %d bytes, want 32", len(sd.StateHash))
	}
	if sd.Auction == nil && len(sd.Balances) > 0 {
		return nil, fmt.Errorf("snapshot has balances but no auction state")
	}

	if sd.Auction != nil {
		ledger.RegisterAssets(sd.Auction.SupportedAssets)
	}

	balances := make(map[ledger.AccountKey]int64, len(sd.Balances))
	for path, bal := range sd.Balances {
		key, err := ledger.ParseAccountPath(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot balance: %w", err)
		}
		balances[key] = bal
	}

	snap := &core.SnapshotState{
		Sequence:        sd.Sequence,
		Auction:         sd.Auction,
		Books:           sd.Books,
		LoanPools:       sd.LoanPools,
		Balances:        balances,
		Pools:           sd.Pools,
		SequenceState:   sd.SequenceState,
		IdempotencyKeys: sd.IdempotencyKeys,
	}
	copy(snap.StateHash[:], sd.StateHash)
	return snap, nil
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot to Postgres. Snapshots are taken
// periodically and marked verified after an integrity check against
// the event log.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	sizeBytes := len(data)
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, sizeBytes, snap.CreatedAt)

	return sizeBytes, err
}

// LoadLatestSnapshot loads the most recent verified snapshot, or nil
// on a cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events from a given sequence for replay. Used for
// warm restart (replay from snapshot) and cold restart (replay all).
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, shard_id, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.ShardID,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
