package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/policy"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
)

type PolicyServiceImpl struct {
	policyRepo policy.Repository
}

func NewPolicyService(policyRepo policy.Repository) policy.Service {
	return &PolicyServiceImpl{policyRepo: policyRepo}
}

// Active implements policy.Service.
func (s *PolicyServiceImpl) Active(ctx context.Context, companyID string) (policy.Policy, error) {
	if companyID == "" {
		return policy.Policy{}, user.ErrCompanyIDRequired
	}

	p, err := s.policyRepo.GetLatest(ctx, companyID)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return policy.Default(companyID), nil
		}
		return policy.Policy{}, fmt.Errorf("failed to get latest policy: %w", err)
	}
	return p, nil
}

// GetActive implements policy.Service.
func (s *PolicyServiceImpl) GetActive(ctx context.Context, companyID string) (policy.PolicyResponse, error) {
	p, err := s.Active(ctx, companyID)
	if err != nil {
		return policy.PolicyResponse{}, err
	}
	return policy.ToResponse(p), nil
}

// ListVersions implements policy.Service. Newest version first; the built-in
// default is not listed.
func (s *PolicyServiceImpl) ListVersions(ctx context.Context, companyID string) ([]policy.PolicyResponse, error) {
	if companyID == "" {
		return nil, user.ErrCompanyIDRequired
	}

	versions, err := s.policyRepo.ListVersions(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policy versions: %w", err)
	}

	resp := make([]policy.PolicyResponse, len(versions))
	for i, p := range versions {
		resp[i] = policy.ToResponse(p)
	}
	return resp, nil
}

// Publish implements policy.Service. Every publish creates a new version;
// older versions are never touched, so submitted requests keep pointing at
// the rules they were resolved with.
func (s *PolicyServiceImpl) Publish(ctx context.Context, companyID, actorUserID string, req policy.PublishPolicyRequest) (policy.PolicyResponse, error) {
	if companyID == "" {
		return policy.PolicyResponse{}, user.ErrCompanyIDRequired
	}
	if err := req.Validate(); err != nil {
		return policy.PolicyResponse{}, err
	}

	p := policy.Policy{
		CompanyID: companyID,
		Rules:     req.Rules,
	}
	if actorUserID != "" {
		p.CreatedBy = &actorUserID
	}

	if err := s.policyRepo.Create(ctx, &p); err != nil {
		return policy.PolicyResponse{}, fmt.Errorf("failed to publish policy: %w", err)
	}

	slog.Info("approval policy published",
		"company_id", companyID,
		"version", p.Version,
		"rules", len(p.Rules),
		"actor_user_id", actorUserID,
	)
	return policy.ToResponse(p), nil
}
