package request

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/validator"
)

const (
	maxAttachments     = 10
	maxAttachmentBytes = 5 << 20
)

// Caller identifies who is acting, as carried by the access token.
type Caller struct {
	UserID     string
	CompanyID  string
	EmployeeID string
	Role       user.Role
}

func (c Caller) Can(p user.Permission) bool {
	return user.HasPermission(c.Role, p)
}

// AttachmentUpload is an attachment as sent by clients, base64 encoded.
type AttachmentUpload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data"`
}

// DecodeBase64 accepts plain base64 or a data URL ("data:image/png;base64,...").
func DecodeBase64(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func validateAttachments(uploads []AttachmentUpload) validator.ValidationErrors {
	var errs validator.ValidationErrors
	if len(uploads) > maxAttachments {
		errs = append(errs, validator.ValidationError{
			Field:   "attachments",
			Message: "at most 10 attachments are allowed",
		})
		return errs
	}
	for _, a := range uploads {
		if validator.IsEmpty(a.Filename) {
			errs = append(errs, validator.ValidationError{Field: "attachments.filename", Message: "filename is required"})
		}
		data, err := DecodeBase64(a.Data)
		if err != nil || len(data) == 0 {
			errs = append(errs, validator.ValidationError{Field: "attachments.data", Message: "data must be non-empty base64"})
			continue
		}
		if len(data) > maxAttachmentBytes {
			errs = append(errs, validator.ValidationError{Field: "attachments.data", Message: "attachment must not exceed 5MB"})
		}
	}
	return errs
}

func validateDates(start, end *string) validator.ValidationErrors {
	var errs validator.ValidationErrors
	var startDate, endDate time.Time
	var startOK, endOK bool
	if start != nil {
		if startDate, startOK = validator.IsValidDate(*start); !startOK {
			errs = append(errs, validator.ValidationError{Field: "start_date", Message: "start_date must be in YYYY-MM-DD format"})
		}
	}
	if end != nil {
		if endDate, endOK = validator.IsValidDate(*end); !endOK {
			errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must be in YYYY-MM-DD format"})
		}
	}
	if startOK && endOK && endDate.Before(startDate) {
		errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must be on or after start_date"})
	}
	return errs
}

// ParseDate parses an optional YYYY-MM-DD value; invalid input yields nil.
func ParseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	d, ok := validator.IsValidDate(*s)
	if !ok {
		return nil
	}
	return &d
}

type CreateRequestRequest struct {
	Type        Type               `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	StartDate   *string            `json:"start_date,omitempty"`
	EndDate     *string            `json:"end_date,omitempty"`
	Amount      *decimal.Decimal   `json:"amount,omitempty"`
	Detail      Detail             `json:"detail"`
	Attachments []AttachmentUpload `json:"attachments,omitempty"`
	// Submit defaults to true: the request enters the approval chain right away.
	Submit *bool `json:"submit,omitempty"`
}

func (r *CreateRequestRequest) ShouldSubmit() bool {
	return r.Submit == nil || *r.Submit
}

func (r *CreateRequestRequest) Validate() error {
	var errs validator.ValidationErrors

	if !r.Type.Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of leave, overtime, reimbursement, business_trip, asset, resignation",
		})
	}
	if validator.IsEmpty(r.Title) {
		errs = append(errs, validator.ValidationError{Field: "title", Message: "title is required"})
	}
	if len(r.Title) > 255 {
		errs = append(errs, validator.ValidationError{Field: "title", Message: "title must not exceed 255 characters"})
	}
	if r.Amount != nil && r.Amount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "amount", Message: "amount must not be negative"})
	}
	errs = append(errs, validateDates(r.StartDate, r.EndDate)...)
	errs = append(errs, validateAttachments(r.Attachments)...)

	return errs.OrNil()
}

type UpdateRequestRequest struct {
	ID          string           `json:"-"`
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	StartDate   *string          `json:"start_date,omitempty"`
	EndDate     *string          `json:"end_date,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Detail      *Detail          `json:"detail,omitempty"`
}

func (r *UpdateRequestRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "id is required"})
	}
	if r.Title != nil {
		if validator.IsEmpty(*r.Title) {
			errs = append(errs, validator.ValidationError{Field: "title", Message: "title must not be empty"})
		}
		if len(*r.Title) > 255 {
			errs = append(errs, validator.ValidationError{Field: "title", Message: "title must not exceed 255 characters"})
		}
	}
	if r.Amount != nil && r.Amount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "amount", Message: "amount must not be negative"})
	}
	errs = append(errs, validateDates(r.StartDate, r.EndDate)...)

	return errs.OrNil()
}

type ApproveRequestRequest struct {
	RequestID string  `json:"-"`
	Notes     *string `json:"notes,omitempty"`
	// Signature is an optional base64 PNG or JPEG image.
	Signature *string `json:"signature,omitempty"`
}

func (r *ApproveRequestRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RequestID) {
		errs = append(errs, validator.ValidationError{Field: "request_id", Message: "request_id is required"})
	}
	if r.Notes != nil && len(*r.Notes) > 1000 {
		errs = append(errs, validator.ValidationError{Field: "notes", Message: "notes must not exceed 1000 characters"})
	}
	if r.Signature != nil && !validator.IsEmpty(*r.Signature) {
		if _, err := DecodeBase64(*r.Signature); err != nil {
			errs = append(errs, validator.ValidationError{Field: "signature", Message: "signature must be a base64 encoded image"})
		}
	}

	return errs.OrNil()
}

type RejectRequestRequest struct {
	RequestID string `json:"-"`
	Reason    string `json:"reason"`
}

func (r *RejectRequestRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RequestID) {
		errs = append(errs, validator.ValidationError{Field: "request_id", Message: "request_id is required"})
	}
	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{Field: "reason", Message: "reason is required"})
	}
	if len(r.Reason) > 1000 {
		errs = append(errs, validator.ValidationError{Field: "reason", Message: "reason must not exceed 1000 characters"})
	}

	return errs.OrNil()
}

type UpdateAdminNoteRequest struct {
	RequestID string `json:"-"`
	Note      string `json:"admin_note"`
}

func (r *UpdateAdminNoteRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RequestID) {
		errs = append(errs, validator.ValidationError{Field: "request_id", Message: "request_id is required"})
	}
	if len(r.Note) > 2000 {
		errs = append(errs, validator.ValidationError{Field: "admin_note", Message: "admin_note must not exceed 2000 characters"})
	}

	return errs.OrNil()
}

type RequestFilter struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	Status     *string `json:"status,omitempty"`
	Type       *string `json:"type,omitempty"`
	From       *string `json:"from,omitempty"`
	To         *string `json:"to,omitempty"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

func (f *RequestFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Status != nil && !Status(*f.Status).Valid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "status must be one of draft, pending, approved, rejected"})
	}
	if f.Type != nil && !Type(*f.Type).Valid() {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "type is not supported"})
	}
	if f.From != nil {
		if _, ok := validator.IsValidDate(*f.From); !ok {
			errs = append(errs, validator.ValidationError{Field: "from", Message: "from must be in YYYY-MM-DD format"})
		}
	}
	if f.To != nil {
		if _, ok := validator.IsValidDate(*f.To); !ok {
			errs = append(errs, validator.ValidationError{Field: "to", Message: "to must be in YYYY-MM-DD format"})
		}
	}
	normalizePage(&f.Page, &f.Limit)

	return errs.OrNil()
}

type ApprovalFilter struct {
	Status *string `json:"status,omitempty"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

func (f *ApprovalFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Status != nil && !validator.IsInSlice(*f.Status, []string{
		string(ApprovalPending), string(ApprovalApproved), string(ApprovalRejected), string(ApprovalSkipped),
	}) {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "status must be one of pending, approved, rejected, skipped"})
	}
	normalizePage(&f.Page, &f.Limit)

	return errs.OrNil()
}

func normalizePage(page, limit *int) {
	if *page < 1 {
		*page = 1
	}
	if *limit < 1 {
		*limit = 20
	}
	if *limit > 100 {
		*limit = 100
	}
}

type ChainPreviewRequest struct {
	EmployeeID string `json:"employee_id"`
	Type       Type   `json:"type"`
	LeaveKind  string `json:"leave_kind,omitempty"`
}

func (r *ChainPreviewRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "employee_id is required"})
	}
	if !r.Type.Valid() {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "type is not supported"})
	}
	if r.LeaveKind != "" && !validator.IsInSlice(r.LeaveKind, leaveKinds) {
		errs = append(errs, validator.ValidationError{Field: "leave_kind", Message: "leave_kind must be one of annual, sick, unpaid, other"})
	}

	return errs.OrNil()
}

type OvertimeExportFilter struct {
	From           *string `json:"from,omitempty"`
	To             *string `json:"to,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

func (f *OvertimeExportFilter) Validate() error {
	var errs validator.ValidationErrors
	errs = append(errs, validateDates(f.From, f.To)...)
	return errs.OrNil()
}

// ============= Responses =============

type ApprovalResponse struct {
	ID              string         `json:"id"`
	RequestID       string         `json:"request_id"`
	ApproverID      string         `json:"approver_id"`
	ApproverName    string         `json:"approver_name,omitempty"`
	Level           int            `json:"level"`
	Status          ApprovalStatus `json:"status"`
	IsActive        bool           `json:"is_active"`
	Notes           *string        `json:"notes,omitempty"`
	SignatureBlobID *string        `json:"signature_blob_id,omitempty"`
	ActedAt         *time.Time     `json:"acted_at,omitempty"`
}

type RequestResponse struct {
	ID              string             `json:"id"`
	EmployeeID      string             `json:"employee_id"`
	EmployeeName    string             `json:"employee_name,omitempty"`
	Type            Type               `json:"type"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	StartDate       *string            `json:"start_date,omitempty"`
	EndDate         *string            `json:"end_date,omitempty"`
	Amount          *decimal.Decimal   `json:"amount,omitempty"`
	Status          Status             `json:"status"`
	Detail          Detail             `json:"detail"`
	Attachments     []Attachment       `json:"attachments"`
	PolicyVersion   *int               `json:"policy_version,omitempty"`
	RejectionReason *string            `json:"rejection_reason,omitempty"`
	AdminNote       *string            `json:"admin_note,omitempty"`
	CurrentLevel    *int               `json:"current_level,omitempty"`
	SubmittedAt     *time.Time         `json:"submitted_at,omitempty"`
	DecidedAt       *time.Time         `json:"decided_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Approvals       []ApprovalResponse `json:"approvals,omitempty"`
}

type ListRequestResponse struct {
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
	Showing    string            `json:"showing"`
	Requests   []RequestResponse `json:"requests"`
}

// ApprovalItemResponse is an approval row with enough of its request to act on it.
type ApprovalItemResponse struct {
	ApprovalResponse
	RequestType   Type       `json:"request_type"`
	RequestTitle  string     `json:"request_title"`
	RequestStatus Status     `json:"request_status"`
	EmployeeID    string     `json:"employee_id"`
	EmployeeName  string     `json:"employee_name,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
}

type ListApprovalResponse struct {
	TotalCount int64                  `json:"total_count"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
	Showing    string                 `json:"showing"`
	Approvals  []ApprovalItemResponse `json:"approvals"`
}

type ChainStepResponse struct {
	Level        int    `json:"level"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name"`
	Role         string `json:"role"`
	Source       string `json:"source"`
}

type ChainPreviewResponse struct {
	EmployeeID    string              `json:"employee_id"`
	Category      string              `json:"category"`
	PolicyVersion int                 `json:"policy_version"`
	Steps         []ChainStepResponse `json:"steps"`
}

type CanPrintResponse struct {
	CanPrint bool `json:"can_print"`
}

// Document is a rendered file ready to be streamed to the client.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ReconcileResult struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Flagged  int `json:"flagged"`
}
