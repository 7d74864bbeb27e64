package scheduler

import (
	"context"
	"fmt"

	"github.com/TrustRails/escrow-lib/common/types"
	"github.com/sirupsen/logrus"
)

// runDeadlineEnforcement is the deadline enforcement job entry point. It
// releases funds for deals whose final-approval window expired and cancels
// deals whose dispute-resolution window expired. A failure on one deal never
// aborts the sweep.
func (s *Scheduler) runDeadlineEnforcement() {
	if !s.deadlineGuard.TryStart() {
		s.logger.Info("Deadline enforcement already running, skipping this run")
		return
	}
	defer s.deadlineGuard.Finish()

	ctx := context.Background()
	s.logger.Info("Deadline enforcement job started")

	s.enforceFinalApprovalDeadlines(ctx)
	s.enforceDisputeDeadlines(ctx)

	s.logger.Info("Deadline enforcement job finished")
}

func (s *Scheduler) enforceFinalApprovalDeadlines(ctx context.Context) {
	deals, err := s.deals.GetDealsPastFinalApprovalDeadline(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query deals past final approval deadline")
		return
	}

	for i := range deals {
		deal := &deals[i]
		log := s.logger.WithFields(logrus.Fields{"dealId": deal.ID, "status": deal.Status})

		if !deal.HasContract() {
			log.Warn("Deal has no smart contract address, skipping automatic release")
			continue
		}

		if deal.IsCrossChain {
			s.releaseCrossChainDeal(ctx, deal, log)
		} else {
			s.releaseRegularDeal(ctx, deal, log)
		}
	}
}

// releaseRegularDeal releases a same-network deal by calling the escrow
// contract directly on the buyer's network.
func (s *Scheduler) releaseRegularDeal(ctx context.Context, deal *types.Deal, log *logrus.Entry) {
	gw := s.registry.Get(deal.BuyerNetwork)
	if gw == nil {
		log.WithField("network", deal.BuyerNetwork).Error("No gateway for deal network")
		s.markDeal(ctx, deal, &types.DealStatusUpdate{
			Status:               types.StatusAutoReleaseFailed,
			TimelineEventMessage: fmt.Sprintf("Automatic release failed: no gateway for %s", deal.BuyerNetwork),
		}, log)
		return
	}

	result, err := gw.Call(ctx, deal.ContractAddress(), "releaseFunds")
	if err != nil {
		log.WithError(err).Error("Automatic release call failed")
		s.markDeal(ctx, deal, &types.DealStatusUpdate{
			Status:               types.StatusAutoReleaseFailed,
			TimelineEventMessage: "Automatic release failed, manual intervention required",
		}, log)
		return
	}

	s.markDeal(ctx, deal, &types.DealStatusUpdate{
		Status:               types.StatusFundsReleased,
		TimelineEventMessage: "Funds automatically released after final approval deadline",
		TxHash:               result.TxHash,
	}, log)
}

// releaseCrossChainDeal releases a cross-chain deal: the readiness gate must
// pass, then the contract adapter initiates the release and waits for the
// bridge execution to settle within the configured budget.
func (s *Scheduler) releaseCrossChainDeal(ctx context.Context, deal *types.Deal, log *logrus.Entry) {
	readiness, err := s.orchestrator.IsDealReady(ctx, deal.ID)
	if err != nil {
		log.WithError(err).Error("Readiness check failed")
		return
	}

	if !readiness.Ready {
		log.WithField("reason", readiness.Reason).Warn("Cross-chain deal not ready for release")
		s.markCrossChainDeal(ctx, deal, &types.CrossChainStatusUpdate{
			Status:               types.StatusCrossChainReleaseRequiresIntervention,
			TimelineEventMessage: fmt.Sprintf("Automatic release blocked: %s", readiness.Reason),
			SourceNetwork:        deal.BuyerNetwork,
			TargetNetwork:        deal.SellerNetwork,
		}, log)
		return
	}

	release, err := s.contract.InitiateRelease(ctx, deal.ContractAddress(), deal.BuyerNetwork,
		deal.SellerNetwork, deal.SellerWalletAddress)
	if err != nil {
		log.WithError(err).Error("Cross-chain release initiation failed")
		s.markCrossChainDeal(ctx, deal, &types.CrossChainStatusUpdate{
			Status:               types.StatusCrossChainReleaseRequiresIntervention,
			TimelineEventMessage: "Cross-chain release initiation failed, manual intervention required",
			SourceNetwork:        deal.BuyerNetwork,
			TargetNetwork:        deal.SellerNetwork,
		}, log)
		return
	}

	update := &types.CrossChainStatusUpdate{
		Status:               types.StatusCrossChainFundsReleased,
		TimelineEventMessage: "Funds automatically released across chains after final approval deadline",
		CrossChainTxHash:     release.TransactionHash,
		SourceNetwork:        deal.BuyerNetwork,
		TargetNetwork:        deal.SellerNetwork,
		BridgeUsed:           release.BridgeProvider,
	}

	if !release.Simulated {
		confirm, err := s.contract.MonitorAndConfirm(ctx, deal.ContractAddress(), deal.BuyerNetwork,
			release.TransactionHash, release.ExecutionID, s.config.ReleaseWaitBudget)
		if err != nil {
			log.WithError(err).Error("Cross-chain release did not settle")
			s.markCrossChainDeal(ctx, deal, &types.CrossChainStatusUpdate{
				Status:               types.StatusCrossChainReleaseRequiresIntervention,
				TimelineEventMessage: "Cross-chain release did not settle, manual intervention required",
				CrossChainTxHash:     release.TransactionHash,
				SourceNetwork:        deal.BuyerNetwork,
				TargetNetwork:        deal.SellerNetwork,
				BridgeUsed:           release.BridgeProvider,
			}, log)
			return
		}
		update.CrossChainTxHash = confirm.BridgeTxHash
	}

	s.markCrossChainDeal(ctx, deal, update, log)
}

func (s *Scheduler) enforceDisputeDeadlines(ctx context.Context) {
	deals, err := s.deals.GetDealsPastDisputeDeadline(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query deals past dispute deadline")
		return
	}

	for i := range deals {
		deal := &deals[i]
		log := s.logger.WithFields(logrus.Fields{"dealId": deal.ID, "status": deal.Status})

		if !deal.HasContract() {
			log.Warn("Deal has no smart contract address, skipping automatic cancellation")
			continue
		}

		if deal.IsCrossChain {
			s.cancelCrossChainDeal(ctx, deal, log)
		} else {
			s.cancelRegularDeal(ctx, deal, log)
		}
	}
}

// cancelRegularDeal cancels a same-network deal by calling the escrow
// contract directly on the buyer's network, mirroring the release path.
func (s *Scheduler) cancelRegularDeal(ctx context.Context, deal *types.Deal, log *logrus.Entry) {
	gw := s.registry.Get(deal.BuyerNetwork)
	if gw == nil {
		log.WithField("network", deal.BuyerNetwork).Error("No gateway for deal network")
		s.markDeal(ctx, deal, &types.DealStatusUpdate{
			Status:               types.StatusAutoCancellationFailed,
			TimelineEventMessage: fmt.Sprintf("Automatic cancellation failed: no gateway for %s", deal.BuyerNetwork),
		}, log)
		return
	}

	result, err := gw.Call(ctx, deal.ContractAddress(), "cancelAfterDisputeDeadline")
	if err != nil {
		log.WithError(err).Error("Automatic cancellation failed")
		s.markDeal(ctx, deal, &types.DealStatusUpdate{
			Status:               types.StatusAutoCancellationFailed,
			TimelineEventMessage: "Automatic cancellation failed, manual intervention required",
		}, log)
		return
	}

	s.markDeal(ctx, deal, &types.DealStatusUpdate{
		Status:               types.StatusCancelledAfterDisputeDeadline,
		TimelineEventMessage: "Deal automatically cancelled after dispute resolution deadline",
		TxHash:               result.TxHash,
	}, log)
}

// cancelCrossChainDeal cancels a cross-chain deal through the contract
// adapter. A failure parks the deal in the cancellation-failure state, never
// in the release retry set, so the next sweep re-attempts the cancellation.
func (s *Scheduler) cancelCrossChainDeal(ctx context.Context, deal *types.Deal, log *logrus.Entry) {
	result, err := s.contract.CancelAfterDeadline(ctx, deal.ContractAddress(), deal.BuyerNetwork)
	if err != nil {
		log.WithError(err).Error("Automatic cancellation failed")
		s.markCrossChainDeal(ctx, deal, &types.CrossChainStatusUpdate{
			Status:               types.StatusCrossChainAutoCancellationFailed,
			TimelineEventMessage: "Automatic cancellation failed, manual intervention required",
			SourceNetwork:        deal.BuyerNetwork,
			TargetNetwork:        deal.SellerNetwork,
		}, log)
		return
	}

	s.markCrossChainDeal(ctx, deal, &types.CrossChainStatusUpdate{
		Status:               types.StatusCrossChainCancelledAfterDisputeDeadline,
		TimelineEventMessage: "Deal automatically cancelled after dispute resolution deadline",
		CrossChainTxHash:     result.TransactionHash,
		SourceNetwork:        deal.BuyerNetwork,
		TargetNetwork:        deal.SellerNetwork,
	}, log)
}

func (s *Scheduler) markDeal(ctx context.Context, deal *types.Deal, update *types.DealStatusUpdate, log *logrus.Entry) {
	if err := s.deals.UpdateDealStatus(ctx, deal.ID, update); err != nil {
		log.WithError(err).WithField("target", update.Status).Error("Failed to update deal status")
	}
}

func (s *Scheduler) markCrossChainDeal(ctx context.Context, deal *types.Deal, update *types.CrossChainStatusUpdate, log *logrus.Entry) {
	if err := s.deals.UpdateCrossChainDealStatus(ctx, deal.ID, update); err != nil {
		log.WithError(err).WithField("target", update.Status).Error("Failed to update cross-chain deal status")
	}
}
