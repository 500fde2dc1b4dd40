package policy

import "errors"

var (
	ErrPolicyNotFound = errors.New("approval policy not found")
	ErrInvalidPolicy  = errors.New("approval policy is invalid")
)
