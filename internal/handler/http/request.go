package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/handler/http/response"
)

// maxRequestBody leaves room for ten base64 encoded 5MB attachments.
const maxRequestBody = 72 << 20

type RequestHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	Submit(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	UpdateNote(w http.ResponseWriter, r *http.Request)

	CanPrint(w http.ResponseWriter, r *http.Request)
	Proof(w http.ResponseWriter, r *http.Request)
	Print(w http.ResponseWriter, r *http.Request)
	ExportOvertime(w http.ResponseWriter, r *http.Request)

	ListPendingApprovals(w http.ResponseWriter, r *http.Request)
	ListApprovals(w http.ResponseWriter, r *http.Request)
	PreviewChain(w http.ResponseWriter, r *http.Request)
}

type RequestHandlerImpl struct {
	requestService request.Service
}

func NewRequestHandler(requestService request.Service) RequestHandler {
	return &RequestHandlerImpl{requestService: requestService}
}

// decodeJSON reads a JSON body; an empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(w, "Request body is too large", nil)
			return false
		}
		if errors.Is(err, io.EOF) {
			return true
		}
		slog.Error("request body decode error", "path", r.URL.Path, "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return false
	}
	return true
}

// Create implements RequestHandler.
func (h *RequestHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req request.CreateRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.requestService.CreateRequest(r.Context(), caller, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	message := "Request submitted successfully"
	if resp.Status == request.StatusDraft {
		message = "Draft saved successfully"
	}
	response.Created(w, message, resp)
}

// List implements RequestHandler.
func (h *RequestHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	filter := request.RequestFilter{
		EmployeeID: queryString(r, "employee_id"),
		Status:     queryString(r, "status"),
		Type:       queryString(r, "type"),
		From:       queryString(r, "from"),
		To:         queryString(r, "to"),
		Page:       getIntQueryParam(r, "page", 1),
		Limit:      getIntQueryParam(r, "limit", 20),
	}

	resp, err := h.requestService.ListRequests(r.Context(), caller, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}

// Get implements RequestHandler.
func (h *RequestHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp, err := h.requestService.GetRequest(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}

// Update implements RequestHandler.
func (h *RequestHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req request.UpdateRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	resp, err := h.requestService.UpdateDraft(r.Context(), caller, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Draft updated successfully", resp)
}

// Delete implements RequestHandler.
func (h *RequestHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if err := h.requestService.DeleteDraft(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Draft deleted successfully", nil)
}

// Submit implements RequestHandler.
func (h *RequestHandlerImpl) Submit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp, err := h.requestService.Submit(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Request submitted successfully", resp)
}

// Approve implements RequestHandler.
func (h *RequestHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req request.ApproveRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RequestID = chi.URLParam(r, "id")

	resp, err := h.requestService.Approve(r.Context(), caller, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Request approved successfully", resp)
}

// Reject implements RequestHandler.
func (h *RequestHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req request.RejectRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RequestID = chi.URLParam(r, "id")

	resp, err := h.requestService.Reject(r.Context(), caller, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Request rejected", resp)
}

// UpdateNote implements RequestHandler.
func (h *RequestHandlerImpl) UpdateNote(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req request.UpdateAdminNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RequestID = chi.URLParam(r, "id")

	resp, err := h.requestService.UpdateAdminNote(r.Context(), caller, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Admin note updated", resp)
}

// CanPrint implements RequestHandler.
func (h *RequestHandlerImpl) CanPrint(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp, err := h.requestService.CanPrint(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}

// Proof implements RequestHandler.
func (h *RequestHandlerImpl) Proof(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	doc, err := h.requestService.RenderProof(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, doc.Filename, doc.ContentType, doc.Data)
}

// Print implements RequestHandler.
func (h *RequestHandlerImpl) Print(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	doc, err := h.requestService.RenderPrint(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, doc.Filename, doc.ContentType, doc.Data)
}

// ExportOvertime implements RequestHandler.
func (h *RequestHandlerImpl) ExportOvertime(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	filter := request.OvertimeExportFilter{
		From:           queryString(r, "from"),
		To:             queryString(r, "to"),
		OrganizationID: queryString(r, "organization_id"),
	}

	doc, err := h.requestService.ExportOvertime(r.Context(), caller, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, doc.Filename, doc.ContentType, doc.Data)
}

func approvalFilter(r *http.Request) request.ApprovalFilter {
	return request.ApprovalFilter{
		Status: queryString(r, "status"),
		Page:   getIntQueryParam(r, "page", 1),
		Limit:  getIntQueryParam(r, "limit", 20),
	}
}

// ListPendingApprovals implements RequestHandler.
func (h *RequestHandlerImpl) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp, err := h.requestService.ListPendingApprovals(r.Context(), caller, approvalFilter(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}

// ListApprovals implements RequestHandler.
func (h *RequestHandlerImpl) ListApprovals(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp, err := h.requestService.ListApprovals(r.Context(), caller, approvalFilter(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}

// PreviewChain implements RequestHandler.
func (h *RequestHandlerImpl) PreviewChain(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	q := r.URL.Query()
	req := request.ChainPreviewRequest{
		EmployeeID: q.Get("employee_id"),
		Type:       request.Type(q.Get("type")),
		LeaveKind:  q.Get("leave_kind"),
	}

	resp, err := h.requestService.PreviewChain(r.Context(), caller, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}
