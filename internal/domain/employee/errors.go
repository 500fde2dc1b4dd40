package employee

import "errors"

var (
	ErrEmployeeNotFound     = errors.New("employee not found")
	ErrOrganizationNotFound = errors.New("organization not found")
)
