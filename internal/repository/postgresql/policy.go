package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/policy"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/database"
)

type policyRepositoryImpl struct {
	db *database.DB
}

func NewPolicyRepository(db *database.DB) policy.Repository {
	return &policyRepositoryImpl{db: db}
}

func scanPolicy(row pgx.Row) (policy.Policy, error) {
	var (
		p     policy.Policy
		rules []byte
	)
	if err := row.Scan(&p.ID, &p.CompanyID, &p.Version, &rules, &p.CreatedBy, &p.CreatedAt); err != nil {
		return policy.Policy{}, err
	}
	if err := json.Unmarshal(rules, &p.Rules); err != nil {
		return policy.Policy{}, fmt.Errorf("invalid rules in policy version %d: %w", p.Version, err)
	}
	return p, nil
}

// GetLatest implements policy.Repository.
func (r *policyRepositoryImpl) GetLatest(ctx context.Context, companyID string) (policy.Policy, error) {
	row := GetQuerier(ctx, r.db).QueryRow(ctx, `
		SELECT id, company_id, version, rules, created_by, created_at
		FROM approval_policies
		WHERE company_id = $1
		ORDER BY version DESC
		LIMIT 1
	`, companyID)

	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return policy.Policy{}, policy.ErrPolicyNotFound
		}
		return policy.Policy{}, fmt.Errorf("failed to get active policy: %w", err)
	}
	return p, nil
}

// ListVersions implements policy.Repository. Newest first.
func (r *policyRepositoryImpl) ListVersions(ctx context.Context, companyID string) ([]policy.Policy, error) {
	rows, err := GetQuerier(ctx, r.db).Query(ctx, `
		SELECT id, company_id, version, rules, created_by, created_at
		FROM approval_policies
		WHERE company_id = $1
		ORDER BY version DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var out []policy.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create implements policy.Repository. The version is computed in the insert;
// two concurrent publishes collide on the (company_id, version) key and the
// loser gets an error instead of a silent overwrite.
func (r *policyRepositoryImpl) Create(ctx context.Context, p *policy.Policy) error {
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	err = GetQuerier(ctx, r.db).QueryRow(ctx, `
		INSERT INTO approval_policies (id, company_id, version, rules, created_by, created_at)
		SELECT uuidv7(), $1, COALESCE(MAX(version), 0) + 1, $2, $3, NOW()
		FROM approval_policies
		WHERE company_id = $1
		RETURNING id, version, created_at
	`, p.CompanyID, rules, p.CreatedBy).Scan(&p.ID, &p.Version, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to publish policy: %w", err)
	}
	return nil
}
