package escrowstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	commonerrors "github.com/TrustRails/escrow-lib/common/errors"
	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const dealColumns = `
       id,
       status,
       is_cross_chain,
       buyer_id,
       seller_id,
       buyer_wallet_address,
       seller_wallet_address,
       buyer_network,
       seller_network,
       smart_contract_address,
       final_approval_deadline,
       dispute_resolution_deadline,
       conditions,
       timeline,
       cross_chain_transaction_id,
       last_activity_at,
       created_at,
       updated_at
`

// GetDeal returns the deal with the given id.
//
// Parameters:
// - ctx: the context for managing the request.
// - dealID: the deal identifier.
//
// Returns:
// - *types.Deal: the deal record.
// - error: NotFoundError if absent, PersistenceError on store failure.
func (s *Store) GetDeal(ctx context.Context, dealID string) (*types.Deal, error) {
	if dealID == "" {
		return nil, commonerrors.NewValidationError("dealId", "must not be empty")
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return nil, commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, dealID)

	deal, err := scanDeal(row)
	if err == sql.ErrNoRows {
		return nil, commonerrors.NewNotFoundError("deal", dealID)
	}
	if err != nil {
		return nil, commonerrors.NewPersistenceError("get deal", err)
	}

	return deal, nil
}

// GetDealsPastFinalApprovalDeadline returns deals whose final-approval
// deadline has passed and that are still in a final-approval state, plus
// release-failed deals that remain eligible for retry under the configured
// ceiling.
func (s *Store) GetDealsPastFinalApprovalDeadline(ctx context.Context) ([]types.Deal, error) {
	statuses := []string{
		string(types.StatusInFinalApproval),
		string(types.StatusCrossChainFinalApproval),
		string(types.StatusAutoReleaseFailed),
		string(types.StatusCrossChainReleaseRequiresIntervention),
	}

	return s.queryDeals(ctx, `
       SELECT `+dealColumns+`
       FROM deals
       WHERE final_approval_deadline IS NOT NULL
         AND final_approval_deadline < NOW()
         AND status = ANY($1)
         AND ($2 = 0 OR auto_attempts < $2)
       ORDER BY final_approval_deadline ASC`,
		pq.Array(statuses), s.deadlineRetryCeiling)
}

// GetDealsPastDisputeDeadline returns deals whose dispute-resolution
// deadline has passed and that are still in dispute, plus
// cancellation-failed deals eligible for retry.
func (s *Store) GetDealsPastDisputeDeadline(ctx context.Context) ([]types.Deal, error) {
	statuses := []string{
		string(types.StatusInDispute),
		string(types.StatusCrossChainInDispute),
		string(types.StatusAutoCancellationFailed),
		string(types.StatusCrossChainAutoCancellationFailed),
	}

	return s.queryDeals(ctx, `
       SELECT `+dealColumns+`
       FROM deals
       WHERE dispute_resolution_deadline IS NOT NULL
         AND dispute_resolution_deadline < NOW()
         AND status = ANY($1)
         AND ($2 = 0 OR auto_attempts < $2)
       ORDER BY dispute_resolution_deadline ASC`,
		pq.Array(statuses), s.deadlineRetryCeiling)
}

// GetCrossChainDealsPendingMonitoring returns cross-chain deals with a
// linked transaction that are neither terminal nor already marked stuck.
func (s *Store) GetCrossChainDealsPendingMonitoring(ctx context.Context) ([]types.Deal, error) {
	terminal := []string{
		string(types.StatusFundsReleased),
		string(types.StatusCrossChainFundsReleased),
		string(types.StatusCancelledAfterDisputeDeadline),
		string(types.StatusCrossChainCancelledAfterDisputeDeadline),
		string(types.StatusCrossChainStuck),
	}

	return s.queryDeals(ctx, `
       SELECT `+dealColumns+`
       FROM deals
       WHERE is_cross_chain = TRUE
         AND cross_chain_transaction_id IS NOT NULL
         AND NOT (status = ANY($1))
       ORDER BY last_activity_at ASC`,
		pq.Array(terminal))
}

// GetStuckCrossChainDeals returns cross-chain deals in a non-terminal state
// with no recorded activity past the stuck threshold.
func (s *Store) GetStuckCrossChainDeals(ctx context.Context) ([]types.Deal, error) {
	terminal := []string{
		string(types.StatusFundsReleased),
		string(types.StatusCrossChainFundsReleased),
		string(types.StatusCancelledAfterDisputeDeadline),
		string(types.StatusCrossChainCancelledAfterDisputeDeadline),
		string(types.StatusCrossChainStuck),
	}

	return s.queryDeals(ctx, `
       SELECT `+dealColumns+`
       FROM deals
       WHERE is_cross_chain = TRUE
         AND NOT (status = ANY($1))
         AND last_activity_at < NOW() - $2::interval
       ORDER BY last_activity_at ASC`,
		pq.Array(terminal), s.stuckThreshold.String())
}

// UpdateDealStatus transitions a regular deal to the target status and
// appends the timeline entry in the same statement. The update predicate
// only matches statuses allowed to transition to the target, so unknown
// transitions affect zero rows and surface as an error.
func (s *Store) UpdateDealStatus(ctx context.Context, dealID string, update *types.DealStatusUpdate) error {
	if dealID == "" {
		return commonerrors.NewValidationError("dealId", "must not be empty")
	}
	if update == nil || update.TimelineEventMessage == "" {
		return commonerrors.NewValidationError("timelineEventMessage", "must not be empty")
	}

	entry, err := marshalTimelineEvent(update.TimelineEventMessage, update.TxHash)
	if err != nil {
		return commonerrors.NewPersistenceError("marshal timeline event", err)
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	intervention := update.Status == types.StatusAutoReleaseFailed ||
		update.Status == types.StatusAutoCancellationFailed

	result, err := db.ExecContext(ctx, `
       UPDATE deals
       SET status = $2,
           timeline = timeline || $3::jsonb,
           auto_attempts = CASE WHEN $4 THEN auto_attempts + 1 ELSE auto_attempts END,
           last_activity_at = NOW(),
           updated_at = NOW()
       WHERE id = $1
         AND status = ANY($5)`,
		dealID,
		string(update.Status),
		entry,
		intervention,
		pq.Array(transitionSourceStrings(update.Status)),
	)
	if err != nil {
		return commonerrors.NewPersistenceError("update deal status", err)
	}

	return checkTransitionApplied(result, dealID, update.Status)
}

// UpdateCrossChainDealStatus transitions a cross-chain deal, recording the
// networks and bridge used in the timeline entry.
func (s *Store) UpdateCrossChainDealStatus(ctx context.Context, dealID string, update *types.CrossChainStatusUpdate) error {
	if dealID == "" {
		return commonerrors.NewValidationError("dealId", "must not be empty")
	}
	if update == nil || update.TimelineEventMessage == "" {
		return commonerrors.NewValidationError("timelineEventMessage", "must not be empty")
	}
	if update.SourceNetwork == "" || update.TargetNetwork == "" {
		return commonerrors.NewValidationError("networks", "source and target networks are required")
	}

	message := update.TimelineEventMessage +
		" (" + update.SourceNetwork.String() + " -> " + update.TargetNetwork.String()
	if update.BridgeUsed != "" {
		message += " via " + update.BridgeUsed
	}
	message += ")"

	entry, err := marshalTimelineEvent(message, update.CrossChainTxHash)
	if err != nil {
		return commonerrors.NewPersistenceError("marshal timeline event", err)
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	intervention := update.Status == types.StatusCrossChainReleaseRequiresIntervention ||
		update.Status == types.StatusCrossChainAutoCancellationFailed

	result, err := db.ExecContext(ctx, `
       UPDATE deals
       SET status = $2,
           timeline = timeline || $3::jsonb,
           auto_attempts = CASE WHEN $4 THEN auto_attempts + 1 ELSE auto_attempts END,
           last_activity_at = NOW(),
           updated_at = NOW()
       WHERE id = $1
         AND is_cross_chain = TRUE
         AND status = ANY($5)`,
		dealID,
		string(update.Status),
		entry,
		intervention,
		pq.Array(transitionSourceStrings(update.Status)),
	)
	if err != nil {
		return commonerrors.NewPersistenceError("update cross-chain deal status", err)
	}

	return checkTransitionApplied(result, dealID, update.Status)
}

// FulfillCondition marks a deal condition as fulfilled by the buyer and
// appends the matching timeline entry, all in one statement.
func (s *Store) FulfillCondition(ctx context.Context, dealID string, conditionID string) error {
	if dealID == "" || conditionID == "" {
		return commonerrors.NewValidationError("dealId/conditionId", "must not be empty")
	}

	entry, err := marshalTimelineEvent("Condition "+conditionID+" fulfilled by cross-chain settlement", "")
	if err != nil {
		return commonerrors.NewPersistenceError("marshal timeline event", err)
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `
       UPDATE deals
       SET conditions = (
               SELECT COALESCE(jsonb_agg(
                   CASE WHEN c->>'id' = $2
                        THEN jsonb_set(c, '{status}', to_jsonb($3::text))
                        ELSE c
                   END), '[]'::jsonb)
               FROM jsonb_array_elements(conditions) AS c
           ),
           timeline = timeline || $4::jsonb,
           last_activity_at = NOW(),
           updated_at = NOW()
       WHERE id = $1`,
		dealID,
		conditionID,
		string(types.ConditionFulfilledByBuyer),
		entry,
	)
	if err != nil {
		return commonerrors.NewPersistenceError("fulfill condition", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return commonerrors.NewPersistenceError("fulfill condition", err)
	}
	if rows == 0 {
		return commonerrors.NewNotFoundError("deal", dealID)
	}

	return nil
}

// LinkTransaction records the weak reference from a deal to its cross-chain
// transaction.
func (s *Store) LinkTransaction(ctx context.Context, dealID string, transactionID string) error {
	if dealID == "" || transactionID == "" {
		return commonerrors.NewValidationError("dealId/transactionId", "must not be empty")
	}

	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `
       UPDATE deals
       SET cross_chain_transaction_id = $2,
           last_activity_at = NOW(),
           updated_at = NOW()
       WHERE id = $1`,
		dealID, transactionID)
	if err != nil {
		return commonerrors.NewPersistenceError("link transaction", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return commonerrors.NewPersistenceError("link transaction", err)
	}
	if rows == 0 {
		return commonerrors.NewNotFoundError("deal", dealID)
	}

	return nil
}

// queryDeals runs a deal query and scans the result set.
func (s *Store) queryDeals(ctx context.Context, query string, args ...interface{}) ([]types.Deal, error) {
	db, err := sql.Open("postgres", s.dbConnStr)
	if err != nil {
		return nil, commonerrors.ErrDatabaseConnect
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, commonerrors.NewPersistenceError("query deals", err)
	}
	defer rows.Close()

	var deals []types.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, commonerrors.NewPersistenceError("scan deal", err)
		}
		deals = append(deals, *deal)
	}

	if err = rows.Err(); err != nil {
		return nil, commonerrors.NewPersistenceError("iterate deals", err)
	}

	return deals, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(row rowScanner) (*types.Deal, error) {
	var (
		deal            types.Deal
		status          string
		buyerNetwork    string
		sellerNetwork   string
		contractAddress sql.NullString
		finalDeadline   sql.NullTime
		disputeDeadline sql.NullTime
		conditionsRaw   []byte
		timelineRaw     []byte
		txID            sql.NullString
	)

	err := row.Scan(
		&deal.ID,
		&status,
		&deal.IsCrossChain,
		&deal.BuyerID,
		&deal.SellerID,
		&deal.BuyerWalletAddress,
		&deal.SellerWalletAddress,
		&buyerNetwork,
		&sellerNetwork,
		&contractAddress,
		&finalDeadline,
		&disputeDeadline,
		&conditionsRaw,
		&timelineRaw,
		&txID,
		&deal.LastActivityAt,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	deal.Status = types.DealStatus(status)
	deal.BuyerNetwork = types.Network(buyerNetwork)
	deal.SellerNetwork = types.Network(sellerNetwork)

	if contractAddress.Valid && contractAddress.String != "" {
		deal.SmartContractAddress = &contractAddress.String
	}
	if finalDeadline.Valid {
		deal.FinalApprovalDeadline = &finalDeadline.Time
	}
	if disputeDeadline.Valid {
		deal.DisputeResolutionDeadline = &disputeDeadline.Time
	}
	if txID.Valid && txID.String != "" {
		deal.CrossChainTransactionID = &txID.String
	}

	if len(conditionsRaw) > 0 {
		if err := json.Unmarshal(conditionsRaw, &deal.Conditions); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal conditions")
		}
	}
	if len(timelineRaw) > 0 {
		if err := json.Unmarshal(timelineRaw, &deal.Timeline); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal timeline")
		}
	}

	return &deal, nil
}

func marshalTimelineEvent(message, txHash string) ([]byte, error) {
	return json.Marshal(types.TimelineEvent{
		Event:           message,
		Timestamp:       time.Now().UTC(),
		SystemTriggered: true,
		TransactionHash: txHash,
	})
}

func transitionSourceStrings(target types.DealStatus) []string {
	sources := types.TransitionSources(target)
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, string(s))
	}
	return out
}

func checkTransitionApplied(result sql.Result, dealID string, target types.DealStatus) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return commonerrors.NewPersistenceError("rows affected", err)
	}
	if rows == 0 {
		return errors.Errorf("deal %s not found or transition to %s not allowed", dealID, target)
	}
	return nil
}
