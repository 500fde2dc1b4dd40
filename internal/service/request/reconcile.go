package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
)

// Reconcile implements request.Service. Each pending request is checked
// against the status its approvals imply; drift left by an interrupted
// transition is repaired and chains that no sequence of actions could have
// produced are only reported.
func (s *RequestServiceImpl) Reconcile(ctx context.Context, companyID *string) (request.ReconcileResult, error) {
	var result request.ReconcileResult

	pending, err := s.requestRepo.ListPending(ctx, companyID)
	if err != nil {
		return result, fmt.Errorf("failed to list pending requests: %w", err)
	}

	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		repaired, err := s.reconcileOne(ctx, r)
		switch {
		case errors.Is(err, request.ErrInconsistentChain):
			result.Flagged++
			slog.Error("request has an inconsistent approval chain, operator action required",
				"request_id", r.ID,
				"company_id", r.CompanyID,
			)
		case err != nil:
			slog.Error("failed to reconcile request", "request_id", r.ID, "error", err)
		case repaired:
			result.Repaired++
		}
	}

	return result, nil
}

// reconcileOne re-derives the status of one request under its row lock.
func (s *RequestServiceImpl) reconcileOne(ctx context.Context, candidate request.Request) (bool, error) {
	repaired := false
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		r, err := s.lockRequest(ctx, candidate.CompanyID, candidate.ID)
		if err != nil {
			return err
		}
		if r.Status != request.StatusPending {
			return nil
		}

		approvals, err := s.approvalRepo.ListByRequest(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to list approvals: %w", err)
		}
		request.SortApprovals(approvals)

		derived, err := request.DeriveStatus(approvals)
		if err != nil {
			return err
		}

		switch derived {
		case request.StatusPending:
			return nil

		case request.StatusApproved:
			decidedAt := lastActedAt(approvals, s.now())
			r.Status = request.StatusApproved
			r.DecidedAt = &decidedAt
			if err := s.requestRepo.Update(ctx, r); err != nil {
				return fmt.Errorf("failed to update request: %w", err)
			}
			if err := s.recordOvertime(ctx, r, decidedAt); err != nil {
				return err
			}

		case request.StatusRejected:
			var rejected request.Approval
			for _, a := range approvals {
				if a.Status == request.ApprovalRejected {
					rejected = a
					break
				}
			}
			decidedAt := s.now()
			if rejected.ActedAt != nil {
				decidedAt = *rejected.ActedAt
			}
			if err := s.finalizeRejection(ctx, &r, approvals, rejected, decidedAt); err != nil {
				return err
			}
		}

		slog.Warn("request status repaired from its approvals",
			"request_id", r.ID,
			"company_id", r.CompanyID,
			"from", request.StatusPending,
			"to", derived,
		)
		repaired = true
		return nil
	})
	return repaired, err
}

func lastActedAt(approvals []request.Approval, fallback time.Time) time.Time {
	var last *time.Time
	for _, a := range approvals {
		if a.ActedAt != nil && (last == nil || a.ActedAt.After(*last)) {
			last = a.ActedAt
		}
	}
	if last == nil {
		return fallback
	}
	return *last
}
