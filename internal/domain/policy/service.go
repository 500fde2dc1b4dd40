package policy

import "context"

type Service interface {
	// Active returns the policy chains are resolved with, the built-in
	// default when the company never published one.
	Active(ctx context.Context, companyID string) (Policy, error)
	GetActive(ctx context.Context, companyID string) (PolicyResponse, error)
	ListVersions(ctx context.Context, companyID string) ([]PolicyResponse, error)
	Publish(ctx context.Context, companyID, actorUserID string, req PublishPolicyRequest) (PolicyResponse, error)
}
