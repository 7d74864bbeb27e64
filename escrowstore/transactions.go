package escrowstore

import (
	"context"
	"database/sql"
	"encoding/json"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const transactionColumns = `
       id,
       deal_id,
       status,
       source_network,
       target_network,
       from_address,
       to_address,
       amount,
       token_address,
       needs_bridge,
       steps,
       bridge_info,
       fee_estimate,
       user_id,
       last_updated,
       created_at
`

// InsertTransaction persists a freshly prepared cross-chain transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transaction record to persist.
//
// Returns:
// - error: an error if the database operation fails.
func (s *Store) InsertTransaction(ctx context.Context, tx *types.CrossChainTransaction) error {
	if tx == nil || tx.ID == "" {
		return commonerrors.NewValidationError("transaction", "must not be empty")
	}

	stepsRaw, err := json.Marshal(tx.Steps)
	if err != nil {
		return commonerrors.NewPersistenceError("marshal steps", err)
	}
	bridgeRaw, err := json.Marshal(tx.BridgeInfo)
	if err != nil {
		return commonerrors.NewPersistenceError("marshal bridge info", err)
	}
	feeRaw, err := json.Marshal(tx.FeeEstimate)
	if err != nil {
		return commonerrors.NewPersistenceError("marshal fee estimate", err)
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
       INSERT INTO cross_chain_transactions (
           id,
           deal_id,
           status,
           source_network,
           target_network,
           from_address,
           to_address,
           amount,
           token_address,
           needs_bridge,
           steps,
           bridge_info,
           fee_estimate,
           user_id,
           last_checked_at,
           last_updated,
           created_at
       ) VALUES (
           $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
           NOW(), NOW(), NOW()
       )`,
		tx.ID,
		tx.DealID,
		string(tx.Status),
		tx.SourceNetwork.String(),
		tx.TargetNetwork.String(),
		tx.FromAddress,
		tx.ToAddress,
		tx.Amount,
		tx.TokenAddress,
		tx.NeedsBridge,
		stepsRaw,
		bridgeRaw,
		feeRaw,
		tx.UserID,
	)
	if err != nil {
		return commonerrors.NewPersistenceError("insert transaction", err)
	}

	return nil
}

// GetTransaction returns the transaction with the given id.
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*types.CrossChainTransaction, error) {
	if transactionID == "" {
		return nil, commonerrors.NewValidationError("transactionId", "must not be empty")
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return nil, commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	row := db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM cross_chain_transactions WHERE id = $1`, transactionID)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, commonerrors.NewNotFoundError("transaction", transactionID)
	}
	if err != nil {
		return nil, commonerrors.NewPersistenceError("get transaction", err)
	}

	return tx, nil
}

// GetTransactionByDeal returns the transaction linked to a deal.
func (s *Store) GetTransactionByDeal(ctx context.Context, dealID string) (*types.CrossChainTransaction, error) {
	if dealID == "" {
		return nil, commonerrors.NewValidationError("dealId", "must not be empty")
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return nil, commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `
       SELECT `+transactionColumns+`
       FROM cross_chain_transactions
       WHERE deal_id = $1
       ORDER BY created_at DESC
       LIMIT 1`, dealID)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, commonerrors.NewNotFoundError("transaction for deal", dealID)
	}
	if err != nil {
		return nil, commonerrors.NewPersistenceError("get transaction by deal", err)
	}

	return tx, nil
}

// GetTransactionsPendingCheck returns prepared or in-progress transactions
// whose last status check is older than the polling threshold.
func (s *Store) GetTransactionsPendingCheck(ctx context.Context) ([]types.CrossChainTransaction, error) {
	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return nil, commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	statuses := []string{
		string(types.TxStatusPrepared),
		string(types.TxStatusInProgress),
	}

	rows, err := db.QueryContext(ctx, `
       SELECT `+transactionColumns+`
       FROM cross_chain_transactions
       WHERE status = ANY($1)
         AND last_checked_at < NOW() - $2::interval
       ORDER BY last_checked_at ASC`,
		pq.Array(statuses), s.pollingThreshold.String())
	if err != nil {
		return nil, commonerrors.NewPersistenceError("query pending transactions", err)
	}
	defer rows.Close()

	var txs []types.CrossChainTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, commonerrors.NewPersistenceError("scan transaction", err)
		}
		txs = append(txs, *tx)
	}

	if err = rows.Err(); err != nil {
		return nil, commonerrors.NewPersistenceError("iterate transactions", err)
	}

	return txs, nil
}

// UpdateStep writes one step's state and the transaction's aggregate status
// in a single statement, keeping the step array and status consistent.
func (s *Store) UpdateStep(ctx context.Context, transactionID string, step *types.Step, txStatus types.TransactionStatus) error {
	if transactionID == "" {
		return commonerrors.NewValidationError("transactionId", "must not be empty")
	}
	if step == nil || step.Index < 1 {
		return commonerrors.NewValidationError("step", "must carry a 1-based index")
	}

	stepRaw, err := json.Marshal(step)
	if err != nil {
		return commonerrors.NewPersistenceError("marshal step", err)
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `
       UPDATE cross_chain_transactions
       SET steps = (
               SELECT COALESCE(jsonb_agg(
                   CASE WHEN (c->>'index')::int = $2 THEN $3::jsonb ELSE c END
                   ORDER BY (c->>'index')::int), '[]'::jsonb)
               FROM jsonb_array_elements(steps) AS c
           ),
           status = $4,
           last_updated = NOW()
       WHERE id = $1`,
		transactionID,
		step.Index,
		stepRaw,
		string(txStatus),
	)
	if err != nil {
		return commonerrors.NewPersistenceError("update step", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return commonerrors.NewPersistenceError("update step", err)
	}
	if rows == 0 {
		return commonerrors.NewNotFoundError("transaction", transactionID)
	}

	return nil
}

// UpdateTransactionStatus sets the aggregate status of a transaction.
func (s *Store) UpdateTransactionStatus(ctx context.Context, transactionID string, status types.TransactionStatus) error {
	if transactionID == "" {
		return commonerrors.NewValidationError("transactionId", "must not be empty")
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `
       UPDATE cross_chain_transactions
       SET status = $2,
           last_updated = NOW()
       WHERE id = $1`,
		transactionID, string(status))
	if err != nil {
		return commonerrors.NewPersistenceError("update transaction status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return commonerrors.NewPersistenceError("update transaction status", err)
	}
	if rows == 0 {
		return commonerrors.NewNotFoundError("transaction", transactionID)
	}

	return nil
}

// MarkStatusChecked resets the polling threshold for a transaction after a
// monitoring sweep polled the provider.
func (s *Store) MarkStatusChecked(ctx context.Context, transactionID string) error {
	if transactionID == "" {
		return commonerrors.NewValidationError("transactionId", "must not be empty")
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
       UPDATE cross_chain_transactions
       SET last_checked_at = NOW()
       WHERE id = $1`, transactionID)
	if err != nil {
		return commonerrors.NewPersistenceError("mark status checked", err)
	}

	return nil
}

func scanTransaction(row rowScanner) (*types.CrossChainTransaction, error) {
	var (
		tx            types.CrossChainTransaction
		dealID        sql.NullString
		status        string
		sourceNetwork string
		targetNetwork string
		stepsRaw      []byte
		bridgeRaw     []byte
		feeRaw        []byte
	)

	err := row.Scan(
		&tx.ID,
		&dealID,
		&status,
		&sourceNetwork,
		&targetNetwork,
		&tx.FromAddress,
		&tx.ToAddress,
		&tx.Amount,
		&tx.TokenAddress,
		&tx.NeedsBridge,
		&stepsRaw,
		&bridgeRaw,
		&feeRaw,
		&tx.UserID,
		&tx.LastUpdated,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Status = types.TransactionStatus(status)
	tx.SourceNetwork = types.Network(sourceNetwork)
	tx.TargetNetwork = types.Network(targetNetwork)
	if dealID.Valid {
		tx.DealID = dealID.String
	}

	if len(stepsRaw) > 0 {
		if err := json.Unmarshal(stepsRaw, &tx.Steps); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal steps")
		}
	}
	if len(bridgeRaw) > 0 && string(bridgeRaw) != "null" {
		if err := json.Unmarshal(bridgeRaw, &tx.BridgeInfo); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal bridge info")
		}
	}
	if len(feeRaw) > 0 && string(feeRaw) != "null" {
		if err := json.Unmarshal(feeRaw, &tx.FeeEstimate); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal fee estimate")
		}
	}

	return &tx, nil
}
