package request

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/employee"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/notification"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
)

// typeLabels are the Indonesian names used in notification texts.
var typeLabels = map[request.Type]string{
	request.TypeLeave:         "Cuti",
	request.TypeOvertime:      "Lembur",
	request.TypeReimbursement: "Reimbursement",
	request.TypeBusinessTrip:  "Perjalanan Dinas",
	request.TypeAsset:         "Pengadaan Aset",
	request.TypeResignation:   "Resign",
}

func typeLabel(t request.Type) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// notify queues one notification for an employee. Delivery problems are
// logged; they never fail the workflow.
func (s *RequestServiceImpl) notify(ctx context.Context, r request.Request, recipient employee.Employee, nt notification.NotificationType, title, message string, senderEmployeeID string) {
	if s.notifier == nil {
		return
	}
	if recipient.UserID == nil || *recipient.UserID == "" {
		slog.Warn("notification recipient has no user account", "employee_id", recipient.ID, "type", nt, "request_id", r.ID)
		return
	}

	req := notification.CreateNotificationRequest{
		CompanyID:   r.CompanyID,
		RecipientID: *recipient.UserID,
		Type:        nt,
		Title:       title,
		Message:     message,
		Data: map[string]interface{}{
			"request_id":     r.ID,
			"request_type":   string(r.Type),
			"request_title":  r.Title,
			"request_status": string(r.Status),
			"recipient_name": recipient.FullName,
		},
		RecipientEmail: recipient.Email,
	}
	if senderEmployeeID != "" {
		req.Data["sender_employee_id"] = senderEmployeeID
	}

	if err := s.notifier.QueueNotification(ctx, req); err != nil {
		slog.Warn("failed to queue notification", "request_id", r.ID, "recipient_id", *recipient.UserID, "type", nt, "error", err)
	}
}

func (s *RequestServiceImpl) lookupEmployee(ctx context.Context, companyID, id string) (employee.Employee, bool) {
	emp, err := s.employeeRepo.GetByID(ctx, companyID, id)
	if err != nil {
		slog.Warn("failed to load notification recipient", "employee_id", id, "error", err)
		return employee.Employee{}, false
	}
	return emp, true
}

// notifyApprovalRequired tells the approver of the active step that a request waits for them.
func (s *RequestServiceImpl) notifyApprovalRequired(ctx context.Context, r request.Request, approvals []request.Approval) {
	active, ok := request.ActiveApproval(approvals)
	if !ok {
		return
	}
	approver, ok := s.lookupEmployee(ctx, r.CompanyID, active.ApproverID)
	if !ok {
		return
	}

	requesterName := r.EmployeeName
	if requesterName == "" {
		requesterName = "Karyawan"
	}
	s.notify(ctx, r, approver, notification.TypeApprovalRequired,
		"Persetujuan diperlukan",
		fmt.Sprintf("%s mengajukan %s \"%s\" dan menunggu persetujuan Anda (level %d).", requesterName, typeLabel(r.Type), r.Title, active.Level),
		r.EmployeeID,
	)
}

func (s *RequestServiceImpl) notifyRequester(ctx context.Context, r request.Request, nt notification.NotificationType, title, message, senderEmployeeID string) {
	requester, ok := s.lookupEmployee(ctx, r.CompanyID, r.EmployeeID)
	if !ok {
		return
	}
	s.notify(ctx, r, requester, nt, title, message, senderEmployeeID)
}

// notifyAfterApprove informs the next approver and the requester of a step
// approval, or only the requester once the request is final.
func (s *RequestServiceImpl) notifyAfterApprove(ctx context.Context, r request.Request, approvals []request.Approval, acted request.Approval) {
	if r.Status == request.StatusApproved {
		s.notifyRequester(ctx, r, notification.TypeRequestApproved,
			"Pengajuan disetujui",
			fmt.Sprintf("Pengajuan %s \"%s\" telah disetujui sepenuhnya.", typeLabel(r.Type), r.Title),
			acted.ApproverID,
		)
		return
	}

	s.notifyApprovalRequired(ctx, r, approvals)
	s.notifyRequester(ctx, r, notification.TypeRequestStepApproved,
		"Pengajuan disetujui sebagian",
		fmt.Sprintf("Pengajuan \"%s\" disetujui pada level %d dan diteruskan ke level berikutnya.", r.Title, acted.Level),
		acted.ApproverID,
	)
}
