package request

import "errors"

var (
	ErrRequestNotFound   = errors.New("request not found")
	ErrNotAuthorized     = errors.New("caller is not allowed to act on this request")
	ErrAlreadyFinalized  = errors.New("request is already finalized")
	ErrNoApproverFound   = errors.New("no approver could be resolved for this request")
	ErrNotSubmitted      = errors.New("request has not been submitted")
	ErrAlreadySubmitted  = errors.New("request has already been submitted")
	ErrNotFinalized      = errors.New("request is not finalized yet")
	ErrNotPrintable      = errors.New("request cannot be printed")
	ErrInconsistentChain = errors.New("approval chain is inconsistent")
)
