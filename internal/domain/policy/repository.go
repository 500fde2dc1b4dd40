package policy

import "context"

type Repository interface {
	// GetLatest returns the highest version for the company or ErrPolicyNotFound.
	GetLatest(ctx context.Context, companyID string) (Policy, error)
	ListVersions(ctx context.Context, companyID string) ([]Policy, error)
	// Create stores p as version max+1 and fills ID, Version and CreatedAt.
	Create(ctx context.Context, p *Policy) error
}
