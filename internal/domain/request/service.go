package request

import "context"

type Service interface {
	CreateRequest(ctx context.Context, caller Caller, req CreateRequestRequest) (RequestResponse, error)
	UpdateDraft(ctx context.Context, caller Caller, req UpdateRequestRequest) (RequestResponse, error)
	DeleteDraft(ctx context.Context, caller Caller, id string) error
	Submit(ctx context.Context, caller Caller, id string) (RequestResponse, error)
	Approve(ctx context.Context, caller Caller, req ApproveRequestRequest) (RequestResponse, error)
	Reject(ctx context.Context, caller Caller, req RejectRequestRequest) (RequestResponse, error)

	GetRequest(ctx context.Context, caller Caller, id string) (RequestResponse, error)
	ListRequests(ctx context.Context, caller Caller, filter RequestFilter) (ListRequestResponse, error)
	ListPendingApprovals(ctx context.Context, caller Caller, filter ApprovalFilter) (ListApprovalResponse, error)
	ListApprovals(ctx context.Context, caller Caller, filter ApprovalFilter) (ListApprovalResponse, error)
	UpdateAdminNote(ctx context.Context, caller Caller, req UpdateAdminNoteRequest) (RequestResponse, error)
	PreviewChain(ctx context.Context, caller Caller, req ChainPreviewRequest) (ChainPreviewResponse, error)

	CanPrint(ctx context.Context, caller Caller, id string) (CanPrintResponse, error)
	RenderProof(ctx context.Context, caller Caller, id string) (Document, error)
	RenderPrint(ctx context.Context, caller Caller, id string) (Document, error)
	ExportOvertime(ctx context.Context, caller Caller, filter OvertimeExportFilter) (Document, error)

	// Reconcile re-derives the status of pending requests from their approvals.
	// A nil companyID covers every company.
	Reconcile(ctx context.Context, companyID *string) (ReconcileResult, error)
}
