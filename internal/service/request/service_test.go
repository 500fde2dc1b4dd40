package request

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/notification"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/validator"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/xlsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaveRequest() request.CreateRequestRequest {
	return request.CreateRequestRequest{
		Type:        request.TypeLeave,
		Title:       "Cuti keluarga",
		Description: "Acara pernikahan saudara",
		StartDate:   strPtr("2025-03-10"),
		EndDate:     strPtr("2025-03-12"),
		Detail:      request.Detail{LeaveKind: request.LeaveKindAnnual},
	}
}

func overtimeRequest() request.CreateRequestRequest {
	return request.CreateRequestRequest{
		Type:        request.TypeOvertime,
		Title:       "Lembur closing",
		Description: "Tutup buku bulanan",
		Detail:      request.Detail{Date: "2025-02-28", StartTime: "18:00", EndTime: "20:30"},
	}
}

func (f *fixture) submit(t *testing.T, employeeID string, req request.CreateRequestRequest) request.RequestResponse {
	t.Helper()
	resp, err := f.svc.CreateRequest(context.Background(), f.caller(employeeID), req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) approve(t *testing.T, approverID, requestID string) request.RequestResponse {
	t.Helper()
	resp, err := f.svc.Approve(context.Background(), f.caller(approverID), request.ApproveRequestRequest{RequestID: requestID})
	require.NoError(t, err)
	return resp
}

func (f *fixture) setApproval(requestID string, level int, status request.ApprovalStatus) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for id, a := range f.store.approvals {
		if a.RequestID == requestID && a.Level == level {
			at := f.now
			a.Status = status
			a.ActedAt = &at
			f.store.approvals[id] = a
		}
	}
}

func notificationTypes(sent []notification.CreateNotificationRequest) []notification.NotificationType {
	out := make([]notification.NotificationType, len(sent))
	for i, n := range sent {
		out[i] = n.Type
	}
	return out
}

func TestTwoLevelLeaveApproval(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.submit(t, "dewi", leaveRequest())
	assert.Equal(t, request.StatusPending, created.Status)
	require.Len(t, created.Approvals, 2)
	assert.Equal(t, "mgr", created.Approvals[0].ApproverID)
	assert.Equal(t, "hrd", created.Approvals[1].ApproverID)
	assert.True(t, created.Approvals[0].IsActive)
	assert.False(t, created.Approvals[1].IsActive)
	require.NotNil(t, created.CurrentLevel)
	assert.Equal(t, 1, *created.CurrentLevel)
	require.NotNil(t, created.Amount)
	assert.True(t, decimal.NewFromInt(3).Equal(*created.Amount))
	require.NotNil(t, created.PolicyVersion)
	assert.Equal(t, 0, *created.PolicyVersion)
	assert.Equal(t, []notification.NotificationType{notification.TypeApprovalRequired}, notificationTypes(f.notifier.sentTo("u-mgr")))

	step := f.approve(t, "mgr", created.ID)
	assert.Equal(t, request.StatusPending, step.Status)
	require.NotNil(t, step.CurrentLevel)
	assert.Equal(t, 2, *step.CurrentLevel)
	assert.Equal(t, request.ApprovalApproved, step.Approvals[0].Status)
	assert.Nil(t, step.DecidedAt)
	assert.Equal(t, []notification.NotificationType{notification.TypeApprovalRequired}, notificationTypes(f.notifier.sentTo("u-hrd")))
	assert.Equal(t, []notification.NotificationType{notification.TypeRequestStepApproved}, notificationTypes(f.notifier.sentTo("u-dewi")))

	final := f.approve(t, "hrd", created.ID)
	assert.Equal(t, request.StatusApproved, final.Status)
	assert.Nil(t, final.CurrentLevel)
	require.NotNil(t, final.DecidedAt)
	assert.Equal(t, f.now, *final.DecidedAt)
	assert.Equal(t, request.StatusApproved, f.request(created.ID).Status)
	assert.Equal(t,
		[]notification.NotificationType{notification.TypeRequestStepApproved, notification.TypeRequestApproved},
		notificationTypes(f.notifier.sentTo("u-dewi")),
	)

	got, err := f.svc.GetRequest(ctx, f.caller("dewi"), created.ID)
	require.NoError(t, err)
	for _, a := range got.Approvals {
		assert.Equal(t, request.ApprovalApproved, a.Status)
		assert.False(t, a.IsActive)
	}
}

func TestRejectSkipsRemainingLevels(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.submit(t, "dewi", leaveRequest())

	rejected, err := f.svc.Reject(ctx, f.caller("mgr"), request.RejectRequestRequest{
		RequestID: created.ID,
		Reason:    "insufficient notice",
	})
	require.NoError(t, err)
	assert.Equal(t, request.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "Rejected at level 1: insufficient notice", *rejected.RejectionReason)
	require.NotNil(t, rejected.DecidedAt)

	approvals := f.approvals(created.ID)
	require.Len(t, approvals, 2)
	assert.Equal(t, request.ApprovalRejected, approvals[0].Status)
	require.NotNil(t, approvals[0].Notes)
	assert.Equal(t, "insufficient notice", *approvals[0].Notes)
	assert.Equal(t, request.ApprovalSkipped, approvals[1].Status)

	_, err = f.svc.Approve(ctx, f.caller("hrd"), request.ApproveRequestRequest{RequestID: created.ID})
	assert.ErrorIs(t, err, request.ErrAlreadyFinalized)

	_, err = f.svc.Reject(ctx, f.caller("mgr"), request.RejectRequestRequest{RequestID: created.ID, Reason: "again"})
	assert.ErrorIs(t, err, request.ErrAlreadyFinalized)

	assert.Equal(t, []notification.NotificationType{notification.TypeRequestRejected}, notificationTypes(f.notifier.sentTo("u-dewi")))
	assert.Empty(t, f.notifier.sentTo("u-hrd"))
}

func TestReject_RequiresReason(t *testing.T) {
	f := newFixture()
	created := f.submit(t, "dewi", leaveRequest())

	_, err := f.svc.Reject(context.Background(), f.caller("mgr"), request.RejectRequestRequest{RequestID: created.ID, Reason: "  "})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, request.StatusPending, f.request(created.ID).Status)
}

func TestApprove_OnlyActiveApproverMayAct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.submit(t, "staff", leaveRequest())
	require.Len(t, created.Approvals, 3)

	tests := []struct {
		name   string
		caller string
	}{
		{"later level", "mgr"},
		{"last level", "hrd"},
		{"outside the chain", "sales"},
		{"requester", "staff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Approve(ctx, f.caller(tt.caller), request.ApproveRequestRequest{RequestID: created.ID})
			assert.ErrorIs(t, err, request.ErrNotAuthorized)

			_, err = f.svc.Reject(ctx, f.caller(tt.caller), request.RejectRequestRequest{RequestID: created.ID, Reason: "no"})
			assert.ErrorIs(t, err, request.ErrNotAuthorized)
		})
	}

	for _, a := range f.approvals(created.ID) {
		assert.Equal(t, request.ApprovalPending, a.Status)
		assert.Nil(t, a.ActedAt)
	}
	assert.Equal(t, request.StatusPending, f.request(created.ID).Status)
}

func TestApprove_RepeatedActionIsAlreadyFinalized(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.submit(t, "dewi", leaveRequest())
	f.approve(t, "mgr", created.ID)
	f.approve(t, "hrd", created.ID)
	sent := len(f.notifier.sent)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Approve(ctx, f.caller("hrd"), request.ApproveRequestRequest{RequestID: created.ID})
		assert.ErrorIs(t, err, request.ErrAlreadyFinalized)
	}
	assert.Len(t, f.notifier.sent, sent)
}

func TestApprove_LostRaceLeavesStateUntouched(t *testing.T) {
	f := newFixture()
	created := f.submit(t, "dewi", leaveRequest())

	f.store.staleUpdates = true
	_, err := f.svc.Approve(context.Background(), f.caller("mgr"), request.ApproveRequestRequest{RequestID: created.ID})
	assert.ErrorIs(t, err, request.ErrAlreadyFinalized)

	assert.Equal(t, request.StatusPending, f.request(created.ID).Status)
	assert.Equal(t, request.ApprovalPending, f.approvals(created.ID)[0].Status)
}

func TestApprove_UnknownRequest(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Approve(context.Background(), f.caller("mgr"), request.ApproveRequestRequest{RequestID: "req-999"})
	assert.ErrorIs(t, err, request.ErrRequestNotFound)
}

func TestApprove_Signature(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sig := "aGVsbG8="

	created := f.submit(t, "dewi", leaveRequest())
	resp, err := f.svc.Approve(ctx, f.caller("mgr"), request.ApproveRequestRequest{
		RequestID: created.ID,
		Notes:     strPtr("ok"),
		Signature: &sig,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Approvals[0].SignatureBlobID)
	assert.Equal(t, "sig-1", *resp.Approvals[0].SignatureBlobID)
	require.NotNil(t, resp.Approvals[0].Notes)
	assert.Equal(t, "ok", *resp.Approvals[0].Notes)

	f.files.failSign = true
	resp, err = f.svc.Approve(ctx, f.caller("hrd"), request.ApproveRequestRequest{RequestID: created.ID, Signature: &sig})
	require.NoError(t, err)
	assert.Equal(t, request.StatusApproved, resp.Status)
	assert.Nil(t, resp.Approvals[1].SignatureBlobID)
}

func TestApprove_SignatureNotStoredWhenNotAllowed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sig := "aGVsbG8="

	created := f.submit(t, "dewi", leaveRequest())

	_, err := f.svc.Approve(ctx, f.caller("sales"), request.ApproveRequestRequest{RequestID: created.ID, Signature: &sig})
	assert.ErrorIs(t, err, request.ErrNotAuthorized)

	_, err = f.svc.Approve(ctx, f.caller("mgr"), request.ApproveRequestRequest{RequestID: "req-999", Signature: &sig})
	assert.ErrorIs(t, err, request.ErrRequestNotFound)

	f.approve(t, "mgr", created.ID)
	f.approve(t, "hrd", created.ID)
	_, err = f.svc.Approve(ctx, f.caller("hrd"), request.ApproveRequestRequest{RequestID: created.ID, Signature: &sig})
	assert.ErrorIs(t, err, request.ErrAlreadyFinalized)

	assert.Empty(t, f.files.signatures)
}

func TestReject_RepeatedWithoutReasonIsAlreadyFinalized(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.submit(t, "dewi", leaveRequest())
	_, err := f.svc.Reject(ctx, f.caller("mgr"), request.RejectRequestRequest{RequestID: created.ID, Reason: "budget"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.svc.Reject(ctx, f.caller("mgr"), request.RejectRequestRequest{RequestID: created.ID})
		assert.ErrorIs(t, err, request.ErrAlreadyFinalized)
	}

	_, err = f.svc.Reject(ctx, f.caller("mgr"), request.RejectRequestRequest{Reason: "budget"})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestCreate_NoApproverLeavesNothingBehind(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateRequest(context.Background(), f.caller("coo"), leaveRequest())
	assert.ErrorIs(t, err, request.ErrNoApproverFound)
	assert.Empty(t, f.store.requests)
	assert.Empty(t, f.store.approvals)
	assert.Empty(t, f.notifier.sent)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("missing leave dates", func(t *testing.T) {
		req := leaveRequest()
		req.StartDate, req.EndDate = nil, nil
		_, err := f.svc.CreateRequest(ctx, f.caller("dewi"), req)
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})

	t.Run("unknown type", func(t *testing.T) {
		req := leaveRequest()
		req.Type = "bonus"
		_, err := f.svc.CreateRequest(ctx, f.caller("dewi"), req)
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})

	t.Run("caller without employee profile", func(t *testing.T) {
		_, err := f.svc.CreateRequest(ctx, f.admin(), leaveRequest())
		assert.ErrorIs(t, err, user.ErrEmployeeProfileRequired)
	})

	t.Run("unknown employee", func(t *testing.T) {
		_, err := f.svc.CreateRequest(ctx, f.caller("ghost"), leaveRequest())
		assert.Error(t, err)
	})

	assert.Empty(t, f.store.requests)
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := leaveRequest()
	no := false
	req.Submit = &no
	draft := f.submit(t, "dewi", req)
	assert.Equal(t, request.StatusDraft, draft.Status)
	assert.Empty(t, draft.Approvals)
	assert.Empty(t, f.store.approvals)
	assert.Empty(t, f.notifier.sent)

	_, err := f.svc.Approve(ctx, f.caller("mgr"), request.ApproveRequestRequest{RequestID: draft.ID})
	assert.ErrorIs(t, err, request.ErrNotSubmitted)

	_, err = f.svc.UpdateDraft(ctx, f.caller("staff"), request.UpdateRequestRequest{ID: draft.ID, Title: strPtr("x")})
	assert.ErrorIs(t, err, request.ErrNotAuthorized)

	updated, err := f.svc.UpdateDraft(ctx, f.caller("dewi"), request.UpdateRequestRequest{
		ID:      draft.ID,
		Title:   strPtr("Cuti tahunan"),
		EndDate: strPtr("2025-03-14"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Cuti tahunan", updated.Title)
	require.NotNil(t, updated.EndDate)
	assert.Equal(t, "2025-03-14", *updated.EndDate)

	_, err = f.svc.UpdateDraft(ctx, f.caller("dewi"), request.UpdateRequestRequest{ID: draft.ID, EndDate: strPtr("2025-03-01")})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "end_date", verrs[0].Field)

	submitted, err := f.svc.Submit(ctx, f.caller("dewi"), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusPending, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.Len(t, submitted.Approvals, 2)
	require.NotNil(t, submitted.Amount)
	assert.True(t, decimal.NewFromInt(5).Equal(*submitted.Amount))
	assert.Len(t, f.notifier.sentTo("u-mgr"), 1)

	_, err = f.svc.Submit(ctx, f.caller("dewi"), draft.ID)
	assert.ErrorIs(t, err, request.ErrAlreadySubmitted)
	_, err = f.svc.UpdateDraft(ctx, f.caller("dewi"), request.UpdateRequestRequest{ID: draft.ID, Title: strPtr("late")})
	assert.ErrorIs(t, err, request.ErrAlreadySubmitted)
	assert.ErrorIs(t, f.svc.DeleteDraft(ctx, f.caller("dewi"), draft.ID), request.ErrAlreadySubmitted)
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := leaveRequest()
	no := false
	req.Submit = &no
	draft := f.submit(t, "dewi", req)

	assert.ErrorIs(t, f.svc.DeleteDraft(ctx, f.caller("mgr"), draft.ID), request.ErrNotAuthorized)
	require.NoError(t, f.svc.DeleteDraft(ctx, f.caller("dewi"), draft.ID))

	_, err := f.svc.GetRequest(ctx, f.caller("dewi"), draft.ID)
	assert.ErrorIs(t, err, request.ErrRequestNotFound)
	assert.ErrorIs(t, f.svc.DeleteDraft(ctx, f.caller("dewi"), draft.ID), request.ErrRequestNotFound)
}

func TestSubmit_NoApproverKeepsDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := leaveRequest()
	no := false
	req.Submit = &no
	draft := f.submit(t, "coo", req)

	_, err := f.svc.Submit(ctx, f.caller("coo"), draft.ID)
	assert.ErrorIs(t, err, request.ErrNoApproverFound)
	assert.Equal(t, request.StatusDraft, f.request(draft.ID).Status)
	assert.Empty(t, f.store.approvals)
}

func TestOvertimeRecordedOnFinalApproval(t *testing.T) {
	f := newFixture()

	created := f.submit(t, "staff", overtimeRequest())
	assert.Equal(t, 150, created.Detail.DurationMinutes)
	require.NotNil(t, created.Amount)
	assert.Equal(t, "2.5", created.Amount.String())

	f.approve(t, "spv", created.ID)
	f.approve(t, "mgr", created.ID)
	assert.Empty(t, f.store.overtime)

	f.approve(t, "hrd", created.ID)
	rec, ok := f.store.overtime[created.ID]
	require.True(t, ok)
	assert.Equal(t, "staff", rec.EmployeeID)
	assert.Equal(t, 150, rec.DurationMinutes)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "18:00", rec.StartTime)
	assert.Equal(t, f.now, rec.ApprovedAt)
}

func TestOvertimeNotRecordedOnRejection(t *testing.T) {
	f := newFixture()

	created := f.submit(t, "staff", overtimeRequest())
	f.approve(t, "spv", created.ID)
	_, err := f.svc.Reject(context.Background(), f.caller("mgr"), request.RejectRequestRequest{RequestID: created.ID, Reason: "budget"})
	require.NoError(t, err)
	assert.Empty(t, f.store.overtime)

	approvals := f.approvals(created.ID)
	assert.Equal(t, []request.ApprovalStatus{request.ApprovalApproved, request.ApprovalRejected, request.ApprovalSkipped},
		[]request.ApprovalStatus{approvals[0].Status, approvals[1].Status, approvals[2].Status})
}

func TestGetRequest_Visibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.submit(t, "dewi", leaveRequest())

	for _, c := range []request.Caller{f.caller("dewi"), f.caller("mgr"), f.caller("hrd"), f.admin()} {
		got, err := f.svc.GetRequest(ctx, c, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dewi", got.EmployeeName)
	}

	_, err := f.svc.GetRequest(ctx, f.caller("sales"), created.ID)
	assert.ErrorIs(t, err, request.ErrNotAuthorized)

	other := f.caller("dewi")
	other.CompanyID = "c2"
	_, err = f.svc.GetRequest(ctx, other, created.ID)
	assert.ErrorIs(t, err, request.ErrRequestNotFound)
}

func TestListRequests_EmployeesSeeTheirOwn(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.submit(t, "dewi", leaveRequest())
	f.submit(t, "staff", leaveRequest())

	mine, err := f.svc.ListRequests(ctx, f.caller("dewi"), request.RequestFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, mine.TotalCount)
	assert.Equal(t, "dewi", mine.Requests[0].EmployeeID)
	assert.Equal(t, "1-1 of 1", mine.Showing)

	// asking for someone else's requests is silently narrowed
	mine, err = f.svc.ListRequests(ctx, f.caller("dewi"), request.RequestFilter{EmployeeID: strPtr("staff")})
	require.NoError(t, err)
	assert.EqualValues(t, 1, mine.TotalCount)
	assert.Equal(t, "dewi", mine.Requests[0].EmployeeID)

	all, err := f.svc.ListRequests(ctx, f.admin(), request.RequestFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.TotalCount)
	assert.Equal(t, 1, all.TotalPages)
	assert.Equal(t, 20, all.Limit)

	none, err := f.svc.ListRequests(ctx, f.admin(), request.RequestFilter{Status: strPtr("approved")})
	require.NoError(t, err)
	assert.Equal(t, "0 of 0", none.Showing)
	assert.Empty(t, none.Requests)
}

func TestListPendingApprovals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	fromDewi := f.submit(t, "dewi", leaveRequest())
	fromStaff := f.submit(t, "staff", leaveRequest())

	mgr, err := f.svc.ListPendingApprovals(ctx, f.caller("mgr"), request.ApprovalFilter{})
	require.NoError(t, err)
	require.Len(t, mgr.Approvals, 1)
	assert.Equal(t, fromDewi.ID, mgr.Approvals[0].RequestID)
	assert.True(t, mgr.Approvals[0].IsActive)
	assert.Equal(t, "Dewi", mgr.Approvals[0].EmployeeName)

	spv, err := f.svc.ListPendingApprovals(ctx, f.caller("spv"), request.ApprovalFilter{})
	require.NoError(t, err)
	require.Len(t, spv.Approvals, 1)
	assert.Equal(t, fromStaff.ID, spv.Approvals[0].RequestID)

	hrd, err := f.svc.ListPendingApprovals(ctx, f.caller("hrd"), request.ApprovalFilter{})
	require.NoError(t, err)
	assert.Empty(t, hrd.Approvals)

	all, err := f.svc.ListPendingApprovals(ctx, f.admin(), request.ApprovalFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.TotalCount)

	// once mgr acts, the request moves to the next level's queue
	f.approve(t, "mgr", fromDewi.ID)
	mgr, err = f.svc.ListPendingApprovals(ctx, f.caller("mgr"), request.ApprovalFilter{})
	require.NoError(t, err)
	assert.Empty(t, mgr.Approvals)

	history, err := f.svc.ListApprovals(ctx, f.caller("mgr"), request.ApprovalFilter{Status: strPtr("approved")})
	require.NoError(t, err)
	require.Len(t, history.Approvals, 1)
	assert.Equal(t, request.ApprovalApproved, history.Approvals[0].Status)
}

func TestUpdateAdminNote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.submit(t, "dewi", leaveRequest())

	_, err := f.svc.UpdateAdminNote(ctx, f.caller("mgr"), request.UpdateAdminNoteRequest{RequestID: created.ID, Note: "x"})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	resp, err := f.svc.UpdateAdminNote(ctx, f.admin(), request.UpdateAdminNoteRequest{RequestID: created.ID, Note: " cek saldo cuti "})
	require.NoError(t, err)
	require.NotNil(t, resp.AdminNote)
	assert.Equal(t, "cek saldo cuti", *resp.AdminNote)
	assert.Len(t, resp.Approvals, 2)

	resp, err = f.svc.UpdateAdminNote(ctx, f.admin(), request.UpdateAdminNoteRequest{RequestID: created.ID, Note: "   "})
	require.NoError(t, err)
	assert.Nil(t, resp.AdminNote)
	assert.Nil(t, f.request(created.ID).AdminNote)

	_, err = f.svc.UpdateAdminNote(ctx, f.admin(), request.UpdateAdminNoteRequest{RequestID: "req-999", Note: "x"})
	assert.ErrorIs(t, err, request.ErrRequestNotFound)
}

func TestPreviewChain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	own, err := f.svc.PreviewChain(ctx, f.caller("mgr"), request.ChainPreviewRequest{Type: request.TypeLeave, LeaveKind: request.LeaveKindSick})
	require.NoError(t, err)
	assert.Equal(t, "mgr", own.EmployeeID)
	assert.Equal(t, "leave:sick", own.Category)
	require.Len(t, own.Steps, 2)
	assert.Equal(t, "coo", own.Steps[0].ApproverID)
	assert.Equal(t, "Citra", own.Steps[0].ApproverName)
	assert.Equal(t, "hrd", own.Steps[1].ApproverID)

	_, err = f.svc.PreviewChain(ctx, f.caller("dewi"), request.ChainPreviewRequest{EmployeeID: "staff", Type: request.TypeLeave})
	assert.ErrorIs(t, err, request.ErrNotAuthorized)

	other, err := f.svc.PreviewChain(ctx, f.admin(), request.ChainPreviewRequest{EmployeeID: "staff", Type: request.TypeAsset})
	require.NoError(t, err)
	assert.Len(t, other.Steps, 3)

	_, err = f.svc.PreviewChain(ctx, f.caller("coo"), request.ChainPreviewRequest{Type: request.TypeLeave})
	assert.ErrorIs(t, err, request.ErrNoApproverFound)

	// previewing writes nothing
	assert.Empty(t, f.store.requests)
}

func TestRenderProof(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.submit(t, "dewi", leaveRequest())

	_, err := f.svc.RenderProof(ctx, f.caller("dewi"), created.ID)
	assert.ErrorIs(t, err, request.ErrNotFinalized)

	f.approve(t, "mgr", created.ID)
	f.approve(t, "hrd", created.ID)

	doc, err := f.svc.RenderProof(ctx, f.caller("dewi"), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "bukti-persetujuan-"+created.ID+".pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))

	_, err = f.svc.RenderProof(ctx, f.caller("sales"), created.ID)
	assert.ErrorIs(t, err, request.ErrNotAuthorized)
}

func TestPrintableRequests(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	staffReq := f.submit(t, "dewi", leaveRequest())
	res, err := f.svc.CanPrint(ctx, f.caller("dewi"), staffReq.ID)
	require.NoError(t, err)
	assert.False(t, res.CanPrint)
	_, err = f.svc.RenderPrint(ctx, f.caller("dewi"), staffReq.ID)
	assert.ErrorIs(t, err, request.ErrNotPrintable)

	managerReq := f.submit(t, "mgr", leaveRequest())
	res, err = f.svc.CanPrint(ctx, f.caller("mgr"), managerReq.ID)
	require.NoError(t, err)
	assert.True(t, res.CanPrint)

	doc, err := f.svc.RenderPrint(ctx, f.caller("mgr"), managerReq.ID)
	require.NoError(t, err)
	assert.Equal(t, "formulir-pengajuan-"+managerReq.ID+".pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))

	f.approve(t, "coo", managerReq.ID)
	res, err = f.svc.CanPrint(ctx, f.caller("mgr"), managerReq.ID)
	require.NoError(t, err)
	assert.False(t, res.CanPrint)
}

func TestExportOvertime(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.submit(t, "staff", overtimeRequest())
	f.approve(t, "spv", created.ID)
	f.approve(t, "mgr", created.ID)
	f.approve(t, "hrd", created.ID)

	_, err := f.svc.ExportOvertime(ctx, f.caller("staff"), request.OvertimeExportFilter{})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	_, err = f.svc.ExportOvertime(ctx, f.admin(), request.OvertimeExportFilter{From: strPtr("2025-03-31"), To: strPtr("2025-03-01")})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	doc, err := f.svc.ExportOvertime(ctx, f.admin(), request.OvertimeExportFilter{})
	require.NoError(t, err)
	assert.Equal(t, xlsx.ContentType, doc.ContentType)
	assert.Equal(t, "rekap-lembur-20250301.xlsx", doc.Filename)
	assert.NotEmpty(t, doc.Data)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("consistent chains are left alone", func(t *testing.T) {
		f := newFixture()
		created := f.submit(t, "dewi", leaveRequest())
		f.approve(t, "mgr", created.ID)

		res, err := f.svc.Reconcile(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, request.ReconcileResult{Checked: 1}, res)
		assert.Equal(t, request.StatusPending, f.request(created.ID).Status)
	})

	t.Run("fully approved chain closes the request", func(t *testing.T) {
		f := newFixture()
		created := f.submit(t, "staff", overtimeRequest())
		f.setApproval(created.ID, 1, request.ApprovalApproved)
		f.setApproval(created.ID, 2, request.ApprovalApproved)
		f.setApproval(created.ID, 3, request.ApprovalApproved)

		res, err := f.svc.Reconcile(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, request.ReconcileResult{Checked: 1, Repaired: 1}, res)

		r := f.request(created.ID)
		assert.Equal(t, request.StatusApproved, r.Status)
		require.NotNil(t, r.DecidedAt)
		_, recorded := f.store.overtime[created.ID]
		assert.True(t, recorded)
	})

	t.Run("rejected step closes the request and skips the rest", func(t *testing.T) {
		f := newFixture()
		created := f.submit(t, "staff", leaveRequest())
		f.setApproval(created.ID, 1, request.ApprovalRejected)

		res, err := f.svc.Reconcile(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Repaired)

		r := f.request(created.ID)
		assert.Equal(t, request.StatusRejected, r.Status)
		require.NotNil(t, r.RejectionReason)
		assert.Contains(t, *r.RejectionReason, "Rejected at level 1")
		approvals := f.approvals(created.ID)
		assert.Equal(t, request.ApprovalSkipped, approvals[1].Status)
		assert.Equal(t, request.ApprovalSkipped, approvals[2].Status)
	})

	t.Run("impossible chain is flagged, not repaired", func(t *testing.T) {
		f := newFixture()
		created := f.submit(t, "dewi", leaveRequest())
		f.setApproval(created.ID, 2, request.ApprovalApproved)

		res, err := f.svc.Reconcile(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, request.ReconcileResult{Checked: 1, Flagged: 1}, res)
		assert.Equal(t, request.StatusPending, f.request(created.ID).Status)
	})

	t.Run("scoped to one company", func(t *testing.T) {
		f := newFixture()
		f.submit(t, "dewi", leaveRequest())

		other := "c2"
		res, err := f.svc.Reconcile(ctx, &other)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Checked)
	})
}
