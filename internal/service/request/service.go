package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/employee"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/notification"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/overtime"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/policy"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/database"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/pdf"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/validator"
	"github.com/sobat-hris/sobat-backend-go/internal/service/file"
)

type RequestServiceImpl struct {
	tx            database.Transactor
	requestRepo   request.RequestRepository
	approvalRepo  request.ApprovalRepository
	employeeRepo  employee.EmployeeRepository
	policyService policy.Service
	overtimeRepo  overtime.Repository
	fileService   file.FileService
	notifier      notification.Service
	renderer      pdf.Renderer
	resolver      *ChainResolver
	appName       string
	now           func() time.Time
}

func NewRequestService(
	tx database.Transactor,
	requestRepo request.RequestRepository,
	approvalRepo request.ApprovalRepository,
	employeeRepo employee.EmployeeRepository,
	orgRepo employee.OrganizationRepository,
	policyService policy.Service,
	overtimeRepo overtime.Repository,
	fileService file.FileService,
	notifier notification.Service,
	renderer pdf.Renderer,
	appName string,
) request.Service {
	return &RequestServiceImpl{
		tx:            tx,
		requestRepo:   requestRepo,
		approvalRepo:  approvalRepo,
		employeeRepo:  employeeRepo,
		policyService: policyService,
		overtimeRepo:  overtimeRepo,
		fileService:   fileService,
		notifier:      notifier,
		renderer:      renderer,
		resolver:      NewChainResolver(employeeRepo, orgRepo),
		appName:       appName,
		now:           time.Now,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, request.ErrRequestNotFound)
}

func requireEmployee(caller request.Caller) error {
	if caller.CompanyID == "" {
		return user.ErrCompanyIDRequired
	}
	if caller.EmployeeID == "" {
		return user.ErrEmployeeProfileRequired
	}
	return nil
}

func (s *RequestServiceImpl) lockRequest(ctx context.Context, companyID, id string) (request.Request, error) {
	r, err := s.requestRepo.GetByIDForUpdate(ctx, companyID, id)
	if err != nil {
		if isNotFound(err) {
			return request.Request{}, request.ErrRequestNotFound
		}
		return request.Request{}, fmt.Errorf("failed to lock request: %w", err)
	}
	return r, nil
}

func (s *RequestServiceImpl) getEmployee(ctx context.Context, companyID, id string) (employee.Employee, error) {
	emp, err := s.employeeRepo.GetByID(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

// CreateRequest implements request.Service.
func (s *RequestServiceImpl) CreateRequest(ctx context.Context, caller request.Caller, req request.CreateRequestRequest) (request.RequestResponse, error) {
	if err := requireEmployee(caller); err != nil {
		return request.RequestResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return request.RequestResponse{}, err
	}

	requester, err := s.getEmployee(ctx, caller.CompanyID, caller.EmployeeID)
	if err != nil {
		return request.RequestResponse{}, err
	}

	r := request.Request{
		CompanyID:    caller.CompanyID,
		EmployeeID:   requester.ID,
		Type:         req.Type,
		Title:        req.Title,
		Description:  req.Description,
		StartDate:    request.ParseDate(req.StartDate),
		EndDate:      request.ParseDate(req.EndDate),
		Amount:       req.Amount,
		Status:       request.StatusDraft,
		Detail:       req.Detail,
		EmployeeName: requester.FullName,
	}

	submit := req.ShouldSubmit()
	if submit {
		if err := request.PrepareForSubmit(&r); err != nil {
			return request.RequestResponse{}, err
		}
	}

	r.Attachments = s.fileService.StoreAttachments(ctx, caller.CompanyID, req.Attachments)

	var approvals []request.Approval
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.requestRepo.Create(ctx, &r); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if !submit {
			return nil
		}
		var err error
		approvals, err = s.enterChain(ctx, &r, requester)
		return err
	})
	if err != nil {
		return request.RequestResponse{}, err
	}

	if submit {
		slog.Info("request submitted", "request_id", r.ID, "type", r.Type, "levels", len(approvals))
		s.notifyApprovalRequired(ctx, r, approvals)
	}

	return toRequestResponse(r, approvals), nil
}

// enterChain resolves the approvers of r, materialises one pending approval
// per level and moves r to pending. It must run inside a transaction.
func (s *RequestServiceImpl) enterChain(ctx context.Context, r *request.Request, requester employee.Employee) ([]request.Approval, error) {
	p, err := s.policyService.Active(ctx, r.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval policy: %w", err)
	}

	steps, err := s.resolver.Resolve(ctx, p, requester, r.Category())
	if err != nil {
		return nil, err
	}

	approvals := make([]request.Approval, len(steps))
	for i, step := range steps {
		approvals[i] = request.Approval{
			RequestID:    r.ID,
			ApproverID:   step.Approver.ID,
			Level:        step.Level,
			Status:       request.ApprovalPending,
			ApproverName: step.Approver.FullName,
		}
	}
	if err := s.approvalRepo.CreateBatch(ctx, approvals); err != nil {
		return nil, fmt.Errorf("failed to create approvals: %w", err)
	}

	now := s.now()
	version := p.Version
	r.Status = request.StatusPending
	r.SubmittedAt = &now
	r.PolicyVersion = &version
	if err := s.requestRepo.Update(ctx, *r); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	return approvals, nil
}

// UpdateDraft implements request.Service.
func (s *RequestServiceImpl) UpdateDraft(ctx context.Context, caller request.Caller, req request.UpdateRequestRequest) (request.RequestResponse, error) {
	if err := requireEmployee(caller); err != nil {
		return request.RequestResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return request.RequestResponse{}, err
	}

	var r request.Request
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.lockDraft(ctx, caller, req.ID)
		if err != nil {
			return err
		}

		if req.Title != nil {
			r.Title = *req.Title
		}
		if req.Description != nil {
			r.Description = *req.Description
		}
		if req.StartDate != nil {
			r.StartDate = request.ParseDate(req.StartDate)
		}
		if req.EndDate != nil {
			r.EndDate = request.ParseDate(req.EndDate)
		}
		if req.Amount != nil {
			r.Amount = req.Amount
		}
		if req.Detail != nil {
			r.Detail = *req.Detail
		}
		if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
			return validator.ValidationErrors{{Field: "end_date", Message: "end_date must be on or after start_date"}}
		}

		if err := s.requestRepo.Update(ctx, r); err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}
		return nil
	})
	if err != nil {
		return request.RequestResponse{}, err
	}

	return toRequestResponse(r, nil), nil
}

// lockDraft locks a request the caller owns and checks it is still a draft.
func (s *RequestServiceImpl) lockDraft(ctx context.Context, caller request.Caller, id string) (request.Request, error) {
	r, err := s.lockRequest(ctx, caller.CompanyID, id)
	if err != nil {
		return request.Request{}, err
	}
	if r.EmployeeID != caller.EmployeeID {
		return request.Request{}, request.ErrNotAuthorized
	}
	if r.Status != request.StatusDraft {
		return request.Request{}, request.ErrAlreadySubmitted
	}
	return r, nil
}

// DeleteDraft implements request.Service.
func (s *RequestServiceImpl) DeleteDraft(ctx context.Context, caller request.Caller, id string) error {
	if err := requireEmployee(caller); err != nil {
		return err
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.lockDraft(ctx, caller, id); err != nil {
			return err
		}
		if err := s.requestRepo.Delete(ctx, caller.CompanyID, id); err != nil {
			return fmt.Errorf("failed to delete request: %w", err)
		}
		return nil
	})
}

// Submit implements request.Service.
func (s *RequestServiceImpl) Submit(ctx context.Context, caller request.Caller, id string) (request.RequestResponse, error) {
	if err := requireEmployee(caller); err != nil {
		return request.RequestResponse{}, err
	}

	var (
		r         request.Request
		approvals []request.Approval
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.lockDraft(ctx, caller, id)
		if err != nil {
			return err
		}
		if err := request.PrepareForSubmit(&r); err != nil {
			return err
		}

		requester, err := s.getEmployee(ctx, caller.CompanyID, r.EmployeeID)
		if err != nil {
			return err
		}
		r.EmployeeName = requester.FullName

		approvals, err = s.enterChain(ctx, &r, requester)
		return err
	})
	if err != nil {
		return request.RequestResponse{}, err
	}

	slog.Info("request submitted", "request_id", r.ID, "type", r.Type, "levels", len(approvals))
	s.notifyApprovalRequired(ctx, r, approvals)

	return toRequestResponse(r, approvals), nil
}

// lockActionable locks a submitted request and returns it with its approval
// chain and the step the caller is acting on.
func (s *RequestServiceImpl) lockActionable(ctx context.Context, caller request.Caller, id string) (request.Request, []request.Approval, int, error) {
	r, err := s.lockRequest(ctx, caller.CompanyID, id)
	if err != nil {
		return request.Request{}, nil, 0, err
	}
	return s.actionable(ctx, caller, r)
}

// checkActionable runs the lockActionable checks without taking the row lock.
func (s *RequestServiceImpl) checkActionable(ctx context.Context, caller request.Caller, id string) error {
	r, err := s.requestRepo.GetByID(ctx, caller.CompanyID, id)
	if err != nil {
		if isNotFound(err) {
			return request.ErrRequestNotFound
		}
		return fmt.Errorf("failed to get request: %w", err)
	}
	_, _, _, err = s.actionable(ctx, caller, r)
	return err
}

func (s *RequestServiceImpl) actionable(ctx context.Context, caller request.Caller, r request.Request) (request.Request, []request.Approval, int, error) {
	switch {
	case r.Status == request.StatusDraft:
		return request.Request{}, nil, 0, request.ErrNotSubmitted
	case r.Status.IsTerminal():
		return request.Request{}, nil, 0, request.ErrAlreadyFinalized
	}

	approvals, err := s.approvalRepo.ListByRequest(ctx, r.ID)
	if err != nil {
		return request.Request{}, nil, 0, fmt.Errorf("failed to list approvals: %w", err)
	}
	request.SortApprovals(approvals)

	active, ok := request.ActiveApproval(approvals)
	if !ok {
		// Pending request without a pending step; the reconciler repairs it.
		slog.Warn("pending request has no active approval", "request_id", r.ID)
		return request.Request{}, nil, 0, request.ErrAlreadyFinalized
	}
	if active.ApproverID != caller.EmployeeID {
		return request.Request{}, nil, 0, request.ErrNotAuthorized
	}

	idx := 0
	for i := range approvals {
		if approvals[i].ID == active.ID {
			idx = i
			break
		}
	}
	return r, approvals, idx, nil
}

// Approve implements request.Service.
func (s *RequestServiceImpl) Approve(ctx context.Context, caller request.Caller, req request.ApproveRequestRequest) (request.RequestResponse, error) {
	if err := requireEmployee(caller); err != nil {
		return request.RequestResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return request.RequestResponse{}, err
	}

	var signatureID *string
	if req.Signature != nil && *req.Signature != "" {
		// Only the active approver may write a signature blob.
		if err := s.checkActionable(ctx, caller, req.RequestID); err != nil {
			return request.RequestResponse{}, err
		}
		id, err := s.fileService.StoreSignature(ctx, caller.CompanyID, *req.Signature)
		if err != nil {
			slog.Warn("signature not stored, approving without it", "request_id", req.RequestID, "error", err)
		} else {
			signatureID = &id
		}
	}

	var (
		r         request.Request
		approvals []request.Approval
		acted     request.Approval
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var (
			idx int
			err error
		)
		r, approvals, idx, err = s.lockActionable(ctx, caller, req.RequestID)
		if err != nil {
			return err
		}

		now := s.now()
		step := approvals[idx]
		step.Status = request.ApprovalApproved
		step.Notes = req.Notes
		step.SignatureBlobID = signatureID
		step.ActedAt = &now

		affected, err := s.approvalRepo.UpdateStatusIfPending(ctx, step)
		if err != nil {
			return fmt.Errorf("failed to update approval: %w", err)
		}
		if affected == 0 {
			return request.ErrAlreadyFinalized
		}
		approvals[idx] = step
		acted = step

		if _, pending := request.ActiveApproval(approvals); pending {
			return nil
		}

		r.Status = request.StatusApproved
		r.DecidedAt = &now
		if err := s.requestRepo.Update(ctx, r); err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}
		return s.recordOvertime(ctx, r, now)
	})
	if err != nil {
		return request.RequestResponse{}, err
	}

	slog.Info("approval step approved",
		"request_id", r.ID,
		"level", acted.Level,
		"approver_id", acted.ApproverID,
		"request_status", r.Status,
	)
	s.notifyAfterApprove(ctx, r, approvals, acted)

	return toRequestResponse(r, approvals), nil
}

// recordOvertime writes the payroll trace of a finally approved overtime request.
func (s *RequestServiceImpl) recordOvertime(ctx context.Context, r request.Request, approvedAt time.Time) error {
	if r.Type != request.TypeOvertime {
		return nil
	}

	date := approvedAt
	if d := request.ParseDate(&r.Detail.Date); d != nil {
		date = *d
	} else if r.StartDate != nil {
		date = *r.StartDate
	}

	err := s.overtimeRepo.Upsert(ctx, overtime.Record{
		CompanyID:       r.CompanyID,
		RequestID:       r.ID,
		EmployeeID:      r.EmployeeID,
		Date:            date,
		StartTime:       r.Detail.StartTime,
		EndTime:         r.Detail.EndTime,
		DurationMinutes: r.Detail.DurationMinutes,
		Reason:          r.Description,
		ApprovedAt:      approvedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to record overtime: %w", err)
	}
	return nil
}

// Reject implements request.Service.
func (s *RequestServiceImpl) Reject(ctx context.Context, caller request.Caller, req request.RejectRequestRequest) (request.RequestResponse, error) {
	if err := requireEmployee(caller); err != nil {
		return request.RequestResponse{}, err
	}
	if req.RequestID == "" {
		return request.RequestResponse{}, req.Validate()
	}

	var (
		r         request.Request
		approvals []request.Approval
		acted     request.Approval
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var (
			idx int
			err error
		)
		r, approvals, idx, err = s.lockActionable(ctx, caller, req.RequestID)
		if err != nil {
			return err
		}
		// Finality and authorization win over a bad reason.
		if err := req.Validate(); err != nil {
			return err
		}

		now := s.now()
		reason := req.Reason
		step := approvals[idx]
		step.Status = request.ApprovalRejected
		step.Notes = &reason
		step.ActedAt = &now

		affected, err := s.approvalRepo.UpdateStatusIfPending(ctx, step)
		if err != nil {
			return fmt.Errorf("failed to update approval: %w", err)
		}
		if affected == 0 {
			return request.ErrAlreadyFinalized
		}
		approvals[idx] = step
		acted = step

		if err := s.finalizeRejection(ctx, &r, approvals, step, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return request.RequestResponse{}, err
	}

	slog.Info("request rejected", "request_id", r.ID, "level", acted.Level, "approver_id", acted.ApproverID)
	s.notifyRequester(ctx, r, notification.TypeRequestRejected,
		"Pengajuan ditolak",
		fmt.Sprintf("Pengajuan \"%s\" ditolak pada level %d: %s", r.Title, acted.Level, req.Reason),
		acted.ApproverID,
	)

	return toRequestResponse(r, approvals), nil
}

// finalizeRejection skips the steps after the rejected one and closes r.
func (s *RequestServiceImpl) finalizeRejection(ctx context.Context, r *request.Request, approvals []request.Approval, rejected request.Approval, at time.Time) error {
	if _, err := s.approvalRepo.SkipPending(ctx, r.ID, at); err != nil {
		return fmt.Errorf("failed to skip remaining approvals: %w", err)
	}
	for i := range approvals {
		if approvals[i].Status == request.ApprovalPending {
			approvals[i].Status = request.ApprovalSkipped
		}
	}

	reason := ""
	if rejected.Notes != nil {
		reason = *rejected.Notes
	}
	rejection := fmt.Sprintf("Rejected at level %d: %s", rejected.Level, reason)
	r.Status = request.StatusRejected
	r.RejectionReason = &rejection
	r.DecidedAt = &at
	if err := s.requestRepo.Update(ctx, *r); err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	return nil
}
