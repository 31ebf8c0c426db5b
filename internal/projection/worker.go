package projection

import (
	"LendAuction/internal/event"
	"LendAuction/internal/observability"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ProjectionOutput mirrors the slice of core.CoreOutput that projections
// consume. The orchestrator (cmd/lendauctiond) bridges between the two.
type ProjectionOutput struct {
	Sequence       int64
	EventType      string
	ShardID        *uint64
	Timestamp      int64 // command timestamp, epoch microseconds
	JournalEntries []JournalEntry
	Events         []event.OutboundEvent
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
}

// ProjectionWorker updates the read models from processed commands.
// The projection channel is non-blocking with drop: if projections fall
// behind they go stale, and the balance tables can be rebuilt from the
// event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	metrics   *observability.Metrics
	lastSeq   int64
	log       zerolog.Logger
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput, metrics *observability.Metrics) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       observability.NewLogger("projection"),
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.processOutput(ctx, output); err != nil {
				pw.log.Warn().Err(err).Int64("sequence", output.Sequence).Msg("projection update failed")
				// Projections are eventually consistent; keep going
			}
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.WithLabelValues("main").Observe(time.Since(start).Seconds())
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range output.JournalEntries {
		if err := pw.updateBalances(ctx, tx, output.Sequence, j); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
		if err := pw.updateFeeVaults(ctx, tx, output.Sequence, j); err != nil {
			return fmt.Errorf("fee vault projection: %w", err)
		}
	}

	for _, evt := range output.Events {
		if err := pw.applyEvent(ctx, tx, output, evt); err != nil {
			return fmt.Errorf("event projection (%s): %w", evt.Type, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// updateBalances applies one journal entry: the debit account's balance
// increases, the credit account's decreases.
func (pw *ProjectionWorker) updateBalances(ctx context.Context, tx *sql.Tx, seq int64, j JournalEntry) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, j.DebitAccount, j.AssetID, j.Amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, j.CreditAccount, j.AssetID, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

// updateFeeVaults maintains the per-shard fee vault listing for journal
// entries that touch a feevault account.
func (pw *ProjectionWorker) updateFeeVaults(ctx context.Context, tx *sql.Tx, seq int64, j JournalEntry) error {
	if shard, asset, ok := parseFeeVaultPath(j.DebitAccount); ok {
		if err := pw.upsertFeeVault(ctx, tx, shard, asset, j.Amount, seq); err != nil {
			return err
		}
	}
	if shard, asset, ok := parseFeeVaultPath(j.CreditAccount); ok {
		if err := pw.upsertFeeVault(ctx, tx, shard, asset, -j.Amount, seq); err != nil {
			return err
		}
	}
	return nil
}

func (pw *ProjectionWorker) upsertFeeVault(ctx context.Context, tx *sql.Tx, shard int64, asset string, delta int64, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.fee_vaults (shard_id, asset, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shard_id, asset)
		DO UPDATE SET balance = projections.fee_vaults.balance + $3, last_sequence = $4
	`, shard, asset, delta, seq)
	return err
}

func (pw *ProjectionWorker) applyEvent(ctx context.Context, tx *sql.Tx, output ProjectionOutput, evt event.OutboundEvent) error {
	switch p := evt.Payload.(type) {
	case event.BidSubmitted:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.open_orders
				(order_seq, shard_id, side, owner, asset, amount, rate, timestamp)
			VALUES ($1, $2, 'bid', $3, $4, $5, $6, $7)
			ON CONFLICT (order_seq) DO NOTHING
		`, output.Sequence, p.Shard, p.Lender, p.Asset, p.Amount, p.MinRate, output.Timestamp)
		return err

	case event.AskSubmitted:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.open_orders
				(order_seq, shard_id, side, owner, asset, amount, rate, collateral, collateral_asset, timestamp)
			VALUES ($1, $2, 'ask', $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (order_seq) DO NOTHING
		`, output.Sequence, p.Shard, p.Borrower, p.Asset, p.Amount, p.MaxRate,
			p.Collateral, p.CollateralAsset, output.Timestamp)
		return err

	case event.LoanIssued:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.loans
				(shard_id, loan_index, lender, borrower, amount, rate, collateral,
				 asset, collateral_asset, status, start_timestamp, duration,
				 created_sequence, updated_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active', $10, $11, $12, $12)
			ON CONFLICT (shard_id, loan_index) DO NOTHING
		`, p.Shard, p.LoanIndex, p.Lender, p.Borrower, p.Amount, p.Rate, p.Collateral,
			p.Asset, p.CollateralAsset, output.Timestamp, p.Duration, output.Sequence); err != nil {
			return err
		}
		// Each fill consumed one resting order on the opposite side of
		// the submitted command wholesale.
		switch output.EventType {
		case "SubmitBid":
			return pw.removeConsumedOrder(ctx, tx, p.Shard, "ask", p.Borrower.String())
		case "SubmitAsk":
			return pw.removeConsumedOrder(ctx, tx, p.Shard, "bid", p.Lender.String())
		}
		return nil

	case event.LoanRepaid:
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.loans
			SET status = 'repaid', updated_sequence = $3
			WHERE shard_id = $1 AND loan_index = $2
		`, p.Shard, p.LoanIndex, output.Sequence)
		return err

	case event.LoanLiquidated:
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.loans
			SET status = 'liquidated', updated_sequence = $3
			WHERE shard_id = $1 AND loan_index = $2
		`, p.Shard, p.LoanIndex, output.Sequence)
		return err

	case event.BidExpired:
		return pw.removeExpiredOrder(ctx, tx, p.Shard, "bid", p.Lender.String(), int64(p.Amount))

	case event.AskExpired:
		return pw.removeExpiredOrder(ctx, tx, p.Shard, "ask", p.Borrower.String(), int64(p.Amount))
	}

	// AuctionInitialized, FundsDeposited, FeesWithdrawn carry no
	// projection state beyond their journal entries.
	return nil
}

// removeConsumedOrder deletes the owner's first resting order in book
// order (bids ascending by rate, asks descending, ties by age). This
// matches the engine's scan order when the owner's orders all overlap
// the incoming rate.
func (pw *ProjectionWorker) removeConsumedOrder(ctx context.Context, tx *sql.Tx, shard uint64, side, owner string) error {
	order := "rate ASC, order_seq ASC"
	if side == "ask" {
		order = "rate DESC, order_seq ASC"
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM projections.open_orders
		WHERE order_seq = (
			SELECT order_seq FROM projections.open_orders
			WHERE shard_id = $1 AND side = $2 AND owner = $3
			ORDER BY %s
			LIMIT 1
		)
	`, order), shard, side, owner)
	return err
}

// removeExpiredOrder deletes the owner's oldest resting order with the
// expired amount.
func (pw *ProjectionWorker) removeExpiredOrder(ctx context.Context, tx *sql.Tx, shard uint64, side, owner string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM projections.open_orders
		WHERE order_seq = (
			SELECT order_seq FROM projections.open_orders
			WHERE shard_id = $1 AND side = $2 AND owner = $3 AND amount = $4
			ORDER BY timestamp ASC, order_seq ASC
			LIMIT 1
		)
	`, shard, side, owner, amount)
	return err
}

// parseFeeVaultPath extracts shard and asset from
// "feevault:shard:{n}:{asset}" account paths.
func parseFeeVaultPath(path string) (int64, string, bool) {
	if !strings.HasPrefix(path, "feevault:shard:") {
		return 0, "", false
	}
	rest := strings.TrimPrefix(path, "feevault:shard:")
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	var shard int64
	if _, err := fmt.Sscanf(parts[0], "%d", &shard); err != nil {
		return 0, "", false
	}
	return shard, parts[1], true
}

// RebuildProjections rebuilds the journal-derived tables from the event
// log. Loans and open orders are derived from outbound events, not
// journals, so rebuilding those requires replaying commands through the
// core (cmd/lendauctiond handles that on startup).
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.fee_vaults`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Debits increase, credits decrease
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			asset_id,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account, asset_id
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			asset_id,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.fee_vaults (shard_id, asset, balance, last_sequence)
		SELECT
			split_part(account_path, ':', 3)::BIGINT AS shard_id,
			split_part(account_path, ':', 4) AS asset,
			balance,
			last_sequence
		FROM projections.balances
		WHERE account_path LIKE 'feevault:shard:%'
	`)
	if err != nil {
		return fmt.Errorf("rebuild fee vaults: %w", err)
	}

	log := observability.NewLogger("projection")
	log.Info().Msg("projection rebuild complete")
	return nil
}
