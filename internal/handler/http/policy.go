package http

import (
	"net/http"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/policy"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/handler/http/response"
)

type PolicyHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	GetActive(w http.ResponseWriter, r *http.Request)
	Publish(w http.ResponseWriter, r *http.Request)
}

type PolicyHandlerImpl struct {
	policyService policy.Service
}

func NewPolicyHandler(policyService policy.Service) PolicyHandler {
	return &PolicyHandlerImpl{policyService: policyService}
}

// List implements PolicyHandler.
func (h *PolicyHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	versions, err := h.policyService.ListVersions(r.Context(), caller.CompanyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, versions)
}

// GetActive implements PolicyHandler.
func (h *PolicyHandlerImpl) GetActive(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	active, err := h.policyService.GetActive(r.Context(), caller.CompanyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, active)
}

// Publish implements PolicyHandler.
func (h *PolicyHandlerImpl) Publish(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if caller.CompanyID == "" {
		response.HandleError(w, user.ErrCompanyIDRequired)
		return
	}

	var req policy.PublishPolicyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	published, err := h.policyService.Publish(r.Context(), caller.CompanyID, caller.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Approval policy published", published)
}
