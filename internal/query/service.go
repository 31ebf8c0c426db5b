package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// QueryService provides read-only access to the projection tables and
// the event log. Queries never touch the core's in-memory state; every
// response carries as_of_sequence for freshness semantics.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetBalance returns a user's balance for one asset.
func (qs *QueryService) GetBalance(
	ctx context.Context,
	userID uuid.UUID,
	asset string,
) (*BalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	accountPath := fmt.Sprintf("user:%s:%s", userID, asset)

	var balance int64
	err = qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &BalanceResponse{
		UserID:       userID,
		Asset:        asset,
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetBalances returns all of a user's asset balances.
func (qs *QueryService) GetBalances(
	ctx context.Context,
	userID uuid.UUID,
) ([]BalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("user:%s:%%", userID)
	rows, err := qs.db.QueryContext(ctx, `
		SELECT account_path, balance FROM projections.balances
		WHERE account_path LIKE $1
		ORDER BY account_path
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefixLen := len(prefix) - 1 // strip the trailing %
	var balances []BalanceResponse
	for rows.Next() {
		var path string
		var b BalanceResponse
		if err := rows.Scan(&path, &b.Balance); err != nil {
			return nil, err
		}
		b.UserID = userID
		b.Asset = path[prefixLen:]
		b.AsOfSequence = asOfSeq
		balances = append(balances, b)
	}

	return balances, rows.Err()
}

// GetBookDepth returns one shard's resting orders, in book order.
func (qs *QueryService) GetBookDepth(
	ctx context.Context,
	shard uint64,
) (*BookDepthResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	resp := &BookDepthResponse{
		Shard:        shard,
		Bids:         []OrderResponse{},
		Asks:         []OrderResponse{},
		AsOfSequence: asOfSeq,
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT side, owner, asset, amount, rate, collateral, collateral_asset, timestamp
		FROM projections.open_orders
		WHERE shard_id = $1
		ORDER BY
			side,
			CASE WHEN side = 'bid' THEN rate ELSE -rate END ASC,
			order_seq ASC
	`, shard)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o OrderResponse
		var collateral sql.NullInt64
		var collateralAsset sql.NullString
		if err := rows.Scan(
			&o.Side, &o.Owner, &o.Asset, &o.Amount, &o.Rate,
			&collateral, &collateralAsset, &o.Timestamp,
		); err != nil {
			return nil, err
		}
		o.Shard = shard
		if collateral.Valid {
			c := uint64(collateral.Int64)
			o.Collateral = &c
		}
		if collateralAsset.Valid {
			a := collateralAsset.String
			o.CollateralAsset = &a
		}

		if o.Side == "bid" {
			resp.Bids = append(resp.Bids, o)
		} else {
			resp.Asks = append(resp.Asks, o)
		}
	}

	return resp, rows.Err()
}

// LoanFilter narrows GetLoans. Nil fields match everything.
type LoanFilter struct {
	Borrower *uuid.UUID
	Lender   *uuid.UUID
	Shard    *uint64
	Status   *string
}

// GetLoans returns loans matching the filter, newest first.
func (qs *QueryService) GetLoans(
	ctx context.Context,
	filter LoanFilter,
	limit int,
) ([]LoanResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT shard_id, loan_index, lender, borrower, amount, rate, collateral,
		       asset, collateral_asset, status, start_timestamp, duration
		FROM projections.loans
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Borrower != nil {
		query += fmt.Sprintf(" AND borrower = $%d", argIdx)
		args = append(args, *filter.Borrower)
		argIdx++
	}
	if filter.Lender != nil {
		query += fmt.Sprintf(" AND lender = $%d", argIdx)
		args = append(args, *filter.Lender)
		argIdx++
	}
	if filter.Shard != nil {
		query += fmt.Sprintf(" AND shard_id = $%d", argIdx)
		args = append(args, *filter.Shard)
		argIdx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	query += " ORDER BY created_sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []LoanResponse
	for rows.Next() {
		var l LoanResponse
		if err := rows.Scan(
			&l.Shard, &l.LoanIndex, &l.Lender, &l.Borrower, &l.Amount, &l.Rate,
			&l.Collateral, &l.Asset, &l.CollateralAsset, &l.Status,
			&l.StartTimestamp, &l.Duration,
		); err != nil {
			return nil, err
		}
		l.AsOfSequence = asOfSeq
		loans = append(loans, l)
	}

	return loans, rows.Err()
}

// GetFeeVaults returns all fee vault balances, largest first.
func (qs *QueryService) GetFeeVaults(ctx context.Context) ([]FeeVaultResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT shard_id, asset, balance FROM projections.fee_vaults
		ORDER BY balance DESC, shard_id, asset
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vaults []FeeVaultResponse
	for rows.Next() {
		var v FeeVaultResponse
		if err := rows.Scan(&v.Shard, &v.Asset, &v.Balance); err != nil {
			return nil, err
		}
		v.AsOfSequence = asOfSeq
		vaults = append(vaults, v)
	}

	return vaults, rows.Err()
}

// GetRecentEvents returns event-log rows with cursor-based pagination.
func (qs *QueryService) GetRecentEvents(
	ctx context.Context,
	limit int,
	beforeSequence *int64,
) ([]EventResponse, error) {
	query := `
		SELECT sequence, event_type, idempotency_key, shard_id, payload, state_hash, prev_hash
		FROM event_log.events
	`
	args := []interface{}{}
	argIdx := 1

	if beforeSequence != nil {
		query += fmt.Sprintf(" WHERE sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.ShardID,
			&e.Payload, &e.StateHash, &e.PrevHash,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetJournalHistory returns a user's journal entries with pagination.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", userID)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity and the global zero-sum
// invariant from the durable log, independent of the in-memory core.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Per-asset balances must sum to zero across all accounts
	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
