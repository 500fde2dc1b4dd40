package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/auth"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/employee"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/notification"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/policy"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/storage"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")

	// User domain errors
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, "Insufficient permissions")
	case errors.Is(err, user.ErrCompanyIDRequired):
		Forbidden(w, "Company membership is required")
	case errors.Is(err, user.ErrEmployeeProfileRequired):
		Forbidden(w, "An employee profile is required")
	case errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")

	// Request domain errors
	case errors.Is(err, request.ErrRequestNotFound):
		NotFound(w, "Request not found")
	case errors.Is(err, request.ErrNotAuthorized):
		Forbidden(w, "You are not allowed to act on this request")
	case errors.Is(err, request.ErrAlreadyFinalized):
		Conflict(w, "Request is already finalized")
	case errors.Is(err, request.ErrNoApproverFound):
		UnprocessableEntity(w, "NO_APPROVER_FOUND", "No approver could be resolved for this request; contact an administrator")
	case errors.Is(err, request.ErrNotSubmitted):
		Conflict(w, "Request has not been submitted")
	case errors.Is(err, request.ErrAlreadySubmitted):
		Conflict(w, "Request has already been submitted")
	case errors.Is(err, request.ErrNotFinalized):
		Conflict(w, "Request is not finalized yet")
	case errors.Is(err, request.ErrNotPrintable):
		Conflict(w, "Request cannot be printed")

	// Directory and policy errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, employee.ErrOrganizationNotFound):
		NotFound(w, "Organization not found")
	case errors.Is(err, policy.ErrPolicyNotFound):
		NotFound(w, "Approval policy not found")

	// Notification errors
	case errors.Is(err, notification.ErrNotificationNotFound):
		NotFound(w, "Notification not found")
	case errors.Is(err, notification.ErrInvalidNotificationType):
		BadRequest(w, "Invalid notification type", nil)

	// Files
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidBlobID):
		NotFound(w, "File not found")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
