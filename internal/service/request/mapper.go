package request

import (
	"fmt"
	"math"
	"time"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
)

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func toApprovalResponse(a request.Approval, active bool) request.ApprovalResponse {
	return request.ApprovalResponse{
		ID:              a.ID,
		RequestID:       a.RequestID,
		ApproverID:      a.ApproverID,
		ApproverName:    a.ApproverName,
		Level:           a.Level,
		Status:          a.Status,
		IsActive:        active,
		Notes:           a.Notes,
		SignatureBlobID: a.SignatureBlobID,
		ActedAt:         a.ActedAt,
	}
}

func toRequestResponse(r request.Request, approvals []request.Approval) request.RequestResponse {
	resp := request.RequestResponse{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		EmployeeName:    r.EmployeeName,
		Type:            r.Type,
		Title:           r.Title,
		Description:     r.Description,
		StartDate:       formatDate(r.StartDate),
		EndDate:         formatDate(r.EndDate),
		Amount:          r.Amount,
		Status:          r.Status,
		Detail:          r.Detail,
		Attachments:     r.Attachments,
		PolicyVersion:   r.PolicyVersion,
		RejectionReason: r.RejectionReason,
		AdminNote:       r.AdminNote,
		SubmittedAt:     r.SubmittedAt,
		DecidedAt:       r.DecidedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if resp.Attachments == nil {
		resp.Attachments = []request.Attachment{}
	}

	if len(approvals) == 0 {
		return resp
	}

	sorted := make([]request.Approval, len(approvals))
	copy(sorted, approvals)
	request.SortApprovals(sorted)

	active, hasActive := request.ActiveApproval(sorted)
	hasActive = hasActive && r.Status == request.StatusPending
	if hasActive {
		level := active.Level
		resp.CurrentLevel = &level
	}

	resp.Approvals = make([]request.ApprovalResponse, len(sorted))
	for i, a := range sorted {
		resp.Approvals[i] = toApprovalResponse(a, hasActive && a.ID == active.ID)
	}
	return resp
}

func toApprovalItem(p request.PendingApproval) request.ApprovalItemResponse {
	active := p.Approval.Status == request.ApprovalPending && p.Request.Status == request.StatusPending
	return request.ApprovalItemResponse{
		ApprovalResponse: toApprovalResponse(p.Approval, active),
		RequestType:      p.Request.Type,
		RequestTitle:     p.Request.Title,
		RequestStatus:    p.Request.Status,
		EmployeeID:       p.Request.EmployeeID,
		EmployeeName:     p.Request.EmployeeName,
		SubmittedAt:      p.Request.SubmittedAt,
	}
}

// paginate returns total pages and the "showing" label for a page.
func paginate(total int64, page, limit int) (int, string) {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	if total == 0 {
		return totalPages, "0 of 0"
	}
	start := int64((page-1)*limit + 1)
	end := int64(page * limit)
	if end > total {
		end = total
	}
	return totalPages, fmt.Sprintf("%d-%d of %d", start, end, total)
}
