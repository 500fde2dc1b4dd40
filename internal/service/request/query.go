package request

import (
	"context"
	"fmt"
	"strings"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
)

// loadVisible returns a request and its approvals when the caller owns it,
// sits in its chain or may view every request of the company.
func (s *RequestServiceImpl) loadVisible(ctx context.Context, caller request.Caller, id string) (request.Request, []request.Approval, error) {
	if caller.CompanyID == "" {
		return request.Request{}, nil, user.ErrCompanyIDRequired
	}

	r, err := s.requestRepo.GetByID(ctx, caller.CompanyID, id)
	if err != nil {
		if isNotFound(err) {
			return request.Request{}, nil, request.ErrRequestNotFound
		}
		return request.Request{}, nil, fmt.Errorf("failed to get request: %w", err)
	}

	approvals, err := s.approvalRepo.ListByRequest(ctx, r.ID)
	if err != nil {
		return request.Request{}, nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	request.SortApprovals(approvals)

	if caller.Can(user.PermissionRequestViewAll) || (caller.EmployeeID != "" && r.EmployeeID == caller.EmployeeID) {
		return r, approvals, nil
	}
	for _, a := range approvals {
		if caller.EmployeeID != "" && a.ApproverID == caller.EmployeeID {
			return r, approvals, nil
		}
	}
	return request.Request{}, nil, request.ErrNotAuthorized
}

// GetRequest implements request.Service.
func (s *RequestServiceImpl) GetRequest(ctx context.Context, caller request.Caller, id string) (request.RequestResponse, error) {
	r, approvals, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return request.RequestResponse{}, err
	}
	return toRequestResponse(r, approvals), nil
}

// ListRequests implements request.Service.
func (s *RequestServiceImpl) ListRequests(ctx context.Context, caller request.Caller, filter request.RequestFilter) (request.ListRequestResponse, error) {
	if caller.CompanyID == "" {
		return request.ListRequestResponse{}, user.ErrCompanyIDRequired
	}
	if err := filter.Validate(); err != nil {
		return request.ListRequestResponse{}, err
	}

	if !caller.Can(user.PermissionRequestViewAll) {
		if caller.EmployeeID == "" {
			return request.ListRequestResponse{}, user.ErrEmployeeProfileRequired
		}
		own := caller.EmployeeID
		filter.EmployeeID = &own
	}

	requests, total, err := s.requestRepo.List(ctx, caller.CompanyID, filter)
	if err != nil {
		return request.ListRequestResponse{}, fmt.Errorf("failed to list requests: %w", err)
	}

	items := make([]request.RequestResponse, len(requests))
	for i, r := range requests {
		items[i] = toRequestResponse(r, nil)
	}

	totalPages, showing := paginate(total, filter.Page, filter.Limit)
	return request.ListRequestResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Requests:   items,
	}, nil
}

// ListPendingApprovals implements request.Service.
func (s *RequestServiceImpl) ListPendingApprovals(ctx context.Context, caller request.Caller, filter request.ApprovalFilter) (request.ListApprovalResponse, error) {
	if caller.CompanyID == "" {
		return request.ListApprovalResponse{}, user.ErrCompanyIDRequired
	}
	if err := filter.Validate(); err != nil {
		return request.ListApprovalResponse{}, err
	}

	var approverID *string
	if !caller.Can(user.PermissionApprovalViewAll) {
		if caller.EmployeeID == "" {
			return request.ListApprovalResponse{}, user.ErrEmployeeProfileRequired
		}
		id := caller.EmployeeID
		approverID = &id
	}

	items, total, err := s.approvalRepo.ListActive(ctx, caller.CompanyID, approverID, filter)
	if err != nil {
		return request.ListApprovalResponse{}, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	return toApprovalList(items, total, filter), nil
}

// ListApprovals implements request.Service.
func (s *RequestServiceImpl) ListApprovals(ctx context.Context, caller request.Caller, filter request.ApprovalFilter) (request.ListApprovalResponse, error) {
	if err := requireEmployee(caller); err != nil {
		return request.ListApprovalResponse{}, err
	}
	if err := filter.Validate(); err != nil {
		return request.ListApprovalResponse{}, err
	}

	items, total, err := s.approvalRepo.ListByApprover(ctx, caller.CompanyID, caller.EmployeeID, filter)
	if err != nil {
		return request.ListApprovalResponse{}, fmt.Errorf("failed to list approvals: %w", err)
	}
	return toApprovalList(items, total, filter), nil
}

func toApprovalList(items []request.PendingApproval, total int64, filter request.ApprovalFilter) request.ListApprovalResponse {
	out := make([]request.ApprovalItemResponse, len(items))
	for i, item := range items {
		out[i] = toApprovalItem(item)
	}
	totalPages, showing := paginate(total, filter.Page, filter.Limit)
	return request.ListApprovalResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Approvals:  out,
	}
}

// UpdateAdminNote implements request.Service.
func (s *RequestServiceImpl) UpdateAdminNote(ctx context.Context, caller request.Caller, req request.UpdateAdminNoteRequest) (request.RequestResponse, error) {
	if caller.CompanyID == "" {
		return request.RequestResponse{}, user.ErrCompanyIDRequired
	}
	if !caller.Can(user.PermissionRequestManage) {
		return request.RequestResponse{}, user.ErrInsufficientPermissions
	}
	if err := req.Validate(); err != nil {
		return request.RequestResponse{}, err
	}

	var (
		r         request.Request
		approvals []request.Approval
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.lockRequest(ctx, caller.CompanyID, req.RequestID)
		if err != nil {
			return err
		}

		if note := strings.TrimSpace(req.Note); note != "" {
			r.AdminNote = &note
		} else {
			r.AdminNote = nil
		}
		if err := s.requestRepo.Update(ctx, r); err != nil {
			return fmt.Errorf("failed to update admin note: %w", err)
		}

		approvals, err = s.approvalRepo.ListByRequest(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to list approvals: %w", err)
		}
		return nil
	})
	if err != nil {
		return request.RequestResponse{}, err
	}

	return toRequestResponse(r, approvals), nil
}

// PreviewChain implements request.Service.
func (s *RequestServiceImpl) PreviewChain(ctx context.Context, caller request.Caller, req request.ChainPreviewRequest) (request.ChainPreviewResponse, error) {
	if caller.CompanyID == "" {
		return request.ChainPreviewResponse{}, user.ErrCompanyIDRequired
	}
	if req.EmployeeID == "" {
		req.EmployeeID = caller.EmployeeID
	}
	if err := req.Validate(); err != nil {
		return request.ChainPreviewResponse{}, err
	}
	if req.EmployeeID != caller.EmployeeID && !caller.Can(user.PermissionRequestViewAll) {
		return request.ChainPreviewResponse{}, request.ErrNotAuthorized
	}

	requester, err := s.getEmployee(ctx, caller.CompanyID, req.EmployeeID)
	if err != nil {
		return request.ChainPreviewResponse{}, err
	}

	p, err := s.policyService.Active(ctx, caller.CompanyID)
	if err != nil {
		return request.ChainPreviewResponse{}, fmt.Errorf("failed to load approval policy: %w", err)
	}

	category := request.Detail{LeaveKind: req.LeaveKind}.PolicyKey(req.Type)
	steps, err := s.resolver.Resolve(ctx, p, requester, category)
	if err != nil {
		return request.ChainPreviewResponse{}, err
	}

	resp := request.ChainPreviewResponse{
		EmployeeID:    requester.ID,
		Category:      category,
		PolicyVersion: p.Version,
		Steps:         make([]request.ChainStepResponse, len(steps)),
	}
	for i, st := range steps {
		role := st.Role
		if role == "" {
			role = st.Approver.JobRoleName
		}
		resp.Steps[i] = request.ChainStepResponse{
			Level:        st.Level,
			ApproverID:   st.Approver.ID,
			ApproverName: st.Approver.FullName,
			Role:         role,
			Source:       string(st.Source),
		}
	}
	return resp, nil
}
