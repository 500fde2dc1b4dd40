package request

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeLeave         Type = "leave"
	TypeOvertime      Type = "overtime"
	TypeReimbursement Type = "reimbursement"
	TypeBusinessTrip  Type = "business_trip"
	TypeAsset         Type = "asset"
	TypeResignation   Type = "resignation"
)

func AllTypes() []Type {
	return []Type{
		TypeLeave,
		TypeOvertime,
		TypeReimbursement,
		TypeBusinessTrip,
		TypeAsset,
		TypeResignation,
	}
}

func (t Type) Valid() bool {
	for _, v := range AllTypes() {
		if v == t {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no approval can change the request any more.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalSkipped  ApprovalStatus = "skipped"
)

// Attachment references a blob stored outside the request row.
type Attachment struct {
	BlobID      string `json:"blob_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Request struct {
	ID              string
	CompanyID       string
	EmployeeID      string
	Type            Type
	Title           string
	Description     string
	StartDate       *time.Time
	EndDate         *time.Time
	Amount          *decimal.Decimal
	Status          Status
	Detail          Detail
	Attachments     []Attachment
	PolicyVersion   *int
	RejectionReason *string
	AdminNote       *string
	SubmittedAt     *time.Time
	DecidedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Join
	EmployeeName string
}

// Category is the policy matching key, e.g. "leave" or "leave:sick".
func (r Request) Category() string {
	return r.Detail.PolicyKey(r.Type)
}

type Approval struct {
	ID              string
	RequestID       string
	ApproverID      string
	Level           int
	Status          ApprovalStatus
	Notes           *string
	SignatureBlobID *string
	ActedAt         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Join
	ApproverName string
}

// PendingApproval is an active approval step joined with the request it belongs to.
type PendingApproval struct {
	Approval Approval
	Request  Request
}
