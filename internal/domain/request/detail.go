package request

import (
	"github.com/shopspring/decimal"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/validator"
)

const (
	LeaveKindAnnual = "annual"
	LeaveKindSick   = "sick"
	LeaveKindUnpaid = "unpaid"
	LeaveKindOther  = "other"

	ResignVoluntary   = "voluntary"
	ResignInvoluntary = "involuntary"
)

var (
	leaveKinds  = []string{LeaveKindAnnual, LeaveKindSick, LeaveKindUnpaid, LeaveKindOther}
	resignTypes = []string{ResignVoluntary, ResignInvoluntary}
)

// Detail holds the type specific fields of a request. Only the fields of the
// request's own type are populated; it is persisted as a single JSON document.
type Detail struct {
	// leave
	LeaveKind string `json:"leave_kind,omitempty"`

	// overtime
	Date            string `json:"date,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	EndTime         string `json:"end_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`

	// reimbursement
	ReceiptDate string `json:"receipt_date,omitempty"`
	Category    string `json:"category,omitempty"`

	// business_trip
	Destination string `json:"destination,omitempty"`
	Purpose     string `json:"purpose,omitempty"`

	// asset
	Brand         string `json:"brand,omitempty"`
	Specification string `json:"specification,omitempty"`
	IsUrgent      bool   `json:"is_urgent,omitempty"`

	// resignation
	LastWorkingDate string `json:"last_working_date,omitempty"`
	ResignType      string `json:"resign_type,omitempty"`
	HandoverNotes   string `json:"handover_notes,omitempty"`
}

// PolicyKey returns the policy matching key for a request of type t.
func (d Detail) PolicyKey(t Type) string {
	if t == TypeLeave && d.LeaveKind != "" {
		return string(t) + ":" + d.LeaveKind
	}
	return string(t)
}

// PrepareForSubmit checks the fields a request of its type needs before it can
// enter the approval chain and fills the derived ones (leave days, overtime
// duration).
func PrepareForSubmit(r *Request) error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Title) {
		errs = append(errs, validator.ValidationError{Field: "title", Message: "title is required"})
	}
	if len(r.Title) > 255 {
		errs = append(errs, validator.ValidationError{Field: "title", Message: "title must not exceed 255 characters"})
	}
	if validator.IsEmpty(r.Description) {
		errs = append(errs, validator.ValidationError{Field: "description", Message: "description is required"})
	}

	switch r.Type {
	case TypeLeave:
		errs = append(errs, requireDateRange(r)...)
		if r.Detail.LeaveKind != "" && !validator.IsInSlice(r.Detail.LeaveKind, leaveKinds) {
			errs = append(errs, validator.ValidationError{Field: "detail.leave_kind", Message: "leave_kind must be one of annual, sick, unpaid, other"})
		}
		if len(errs) == 0 && r.Amount == nil {
			days := decimal.NewFromInt(int64(r.EndDate.Sub(*r.StartDate).Hours()/24) + 1)
			r.Amount = &days
		}

	case TypeOvertime:
		if _, ok := validator.IsValidDate(r.Detail.Date); !ok {
			errs = append(errs, validator.ValidationError{Field: "detail.date", Message: "date is required in YYYY-MM-DD format"})
		}
		startOK := validator.IsValidClock(r.Detail.StartTime)
		endOK := validator.IsValidClock(r.Detail.EndTime)
		if !startOK {
			errs = append(errs, validator.ValidationError{Field: "detail.start_time", Message: "start_time is required in HH:MM format"})
		}
		if !endOK {
			errs = append(errs, validator.ValidationError{Field: "detail.end_time", Message: "end_time is required in HH:MM format"})
		}
		if startOK && endOK {
			minutes := validator.ClockMinutes(r.Detail.EndTime) - validator.ClockMinutes(r.Detail.StartTime)
			if minutes <= 0 {
				errs = append(errs, validator.ValidationError{Field: "detail.end_time", Message: "end_time must be after start_time"})
			} else {
				r.Detail.DurationMinutes = minutes
				if r.Amount == nil {
					hours := decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
					r.Amount = &hours
				}
			}
		}

	case TypeReimbursement:
		if !validator.IsPositive(r.Amount) {
			errs = append(errs, validator.ValidationError{Field: "amount", Message: "amount must be greater than zero"})
		}
		if _, ok := validator.IsValidDate(r.Detail.ReceiptDate); !ok {
			errs = append(errs, validator.ValidationError{Field: "detail.receipt_date", Message: "receipt_date is required in YYYY-MM-DD format"})
		}

	case TypeBusinessTrip:
		errs = append(errs, requireDateRange(r)...)
		if validator.IsEmpty(r.Detail.Destination) {
			errs = append(errs, validator.ValidationError{Field: "detail.destination", Message: "destination is required"})
		}
		if r.Amount != nil && r.Amount.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: "amount", Message: "amount must not be negative"})
		}

	case TypeAsset:
		if !validator.IsPositive(r.Amount) {
			errs = append(errs, validator.ValidationError{Field: "amount", Message: "amount must be greater than zero"})
		}
		if validator.IsEmpty(r.Detail.Brand) {
			errs = append(errs, validator.ValidationError{Field: "detail.brand", Message: "brand is required"})
		}
		if validator.IsEmpty(r.Detail.Specification) {
			errs = append(errs, validator.ValidationError{Field: "detail.specification", Message: "specification is required"})
		}

	case TypeResignation:
		if _, ok := validator.IsValidDate(r.Detail.LastWorkingDate); !ok {
			errs = append(errs, validator.ValidationError{Field: "detail.last_working_date", Message: "last_working_date is required in YYYY-MM-DD format"})
		}
		if r.Detail.ResignType != "" && !validator.IsInSlice(r.Detail.ResignType, resignTypes) {
			errs = append(errs, validator.ValidationError{Field: "detail.resign_type", Message: "resign_type must be voluntary or involuntary"})
		}

	default:
		errs = append(errs, validator.ValidationError{Field: "type", Message: "type is not supported"})
	}

	return errs.OrNil()
}

func requireDateRange(r *Request) validator.ValidationErrors {
	var errs validator.ValidationErrors
	if r.StartDate == nil {
		errs = append(errs, validator.ValidationError{Field: "start_date", Message: "start_date is required"})
	}
	if r.EndDate == nil {
		errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date is required"})
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must be on or after start_date"})
	}
	return errs
}
