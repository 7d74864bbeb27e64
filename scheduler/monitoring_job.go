package scheduler

import (
	"context"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/sirupsen/logrus"
)

// runCrossChainMonitoring is the cross-chain monitoring job entry point. It
// advances pending transactions, promotes deals whose settlement finished,
// and flags deals with no activity past the stuck threshold. Per-item
// failures are logged and never abort the sweep.
func (s *Scheduler) runCrossChainMonitoring() {
	if !s.monitorGuard.TryStart() {
		s.logger.Info("Cross-chain monitoring already running, skipping this run")
		return
	}
	defer s.monitorGuard.Finish()

	ctx := context.Background()
	s.logger.Info("Cross-chain monitoring job started")

	s.advancePendingTransactions(ctx)
	s.promoteSettledDeals(ctx)
	s.flagStuckDeals(ctx)

	s.logger.Info("Cross-chain monitoring job finished")
}

// advancePendingTransactions sweeps transactions whose last provider check
// is older than the polling threshold, auto-completing whatever steps can
// make progress and recording the check either way.
func (s *Scheduler) advancePendingTransactions(ctx context.Context) {
	txs, err := s.transactions.GetTransactionsPendingCheck(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query transactions pending check")
		return
	}

	for i := range txs {
		tx := &txs[i]
		log := s.logger.WithFields(logrus.Fields{"transactionId": tx.ID, "dealId": tx.DealID})

		outcome, err := s.orchestrator.AutoCompleteTransaction(ctx, tx.ID)
		if err != nil {
			log.WithError(err).Error("Auto-complete sweep failed")
		} else if outcome.CompletedSteps > 0 || outcome.FailedSteps > 0 {
			log.WithFields(logrus.Fields{
				"completed": outcome.CompletedSteps,
				"failed":    outcome.FailedSteps,
			}).Info("Transaction steps advanced")
		}

		if err := s.transactions.MarkStatusChecked(ctx, tx.ID); err != nil {
			log.WithError(err).Error("Failed to record status check")
		}
	}
}

// promoteSettledDeals moves deals whose cross-chain settlement completed and
// whose conditions are all fulfilled into the final approval window.
func (s *Scheduler) promoteSettledDeals(ctx context.Context) {
	deals, err := s.deals.GetCrossChainDealsPendingMonitoring(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query cross-chain deals pending monitoring")
		return
	}

	for i := range deals {
		deal := &deals[i]
		if deal.Status != types.StatusAwaitingFulfillment {
			continue
		}

		log := s.logger.WithField("dealId", deal.ID)

		readiness, err := s.orchestrator.IsDealReady(ctx, deal.ID)
		if err != nil {
			log.WithError(err).Error("Readiness check failed")
			continue
		}
		if !readiness.Ready {
			continue
		}

		s.markCrossChainDeal(ctx, deal, &types.CrossChainStatusUpdate{
			Status:               types.StatusCrossChainFinalApproval,
			TimelineEventMessage: "Cross-chain settlement completed, deal moved to final approval",
			SourceNetwork:        deal.BuyerNetwork,
			TargetNetwork:        deal.SellerNetwork,
		}, log)
	}
}

// flagStuckDeals marks cross-chain deals with no activity past the stuck
// threshold so they surface for manual intervention.
func (s *Scheduler) flagStuckDeals(ctx context.Context) {
	deals, err := s.deals.GetStuckCrossChainDeals(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query stuck cross-chain deals")
		return
	}

	for i := range deals {
		deal := &deals[i]
		log := s.logger.WithFields(logrus.Fields{"dealId": deal.ID, "lastActivity": deal.LastActivityAt})

		log.Warn("Cross-chain deal stuck, flagging for manual intervention")
		s.markCrossChainDeal(ctx, deal, &types.CrossChainStatusUpdate{
			Status:               types.StatusCrossChainStuck,
			TimelineEventMessage: "No cross-chain progress past the stuck threshold, manual intervention required",
			SourceNetwork:        deal.BuyerNetwork,
			TargetNetwork:        deal.SellerNetwork,
		}, log)
	}
}
