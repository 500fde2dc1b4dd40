package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/employee"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/policy"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
)

// ChainStep is one resolved approver of a chain.
type ChainStep struct {
	Level    int
	Approver employee.Employee
	Source   policy.Source
	// Role is the job role the approver was picked for. Empty for supervisor steps.
	Role string
}

// ChainResolver turns a policy and the employee directory into an ordered
// list of approvers.
type ChainResolver struct {
	employees employee.EmployeeRepository
	orgs      employee.OrganizationRepository
}

func NewChainResolver(employees employee.EmployeeRepository, orgs employee.OrganizationRepository) *ChainResolver {
	return &ChainResolver{employees: employees, orgs: orgs}
}

// chainState tracks what the steps resolved so far have claimed.
type chainState struct {
	requester employee.Employee
	seen      map[string]bool
	held      map[string]bool
	path      []employee.Organization
	pathReady bool
}

// Resolve builds the chain for requester filing a request of category. The
// requester never approves their own request, an approver appears once at
// their first level and steps without a holder are dropped. An empty chain
// yields request.ErrNoApproverFound.
func (c *ChainResolver) Resolve(ctx context.Context, p policy.Policy, requester employee.Employee, category string) ([]ChainStep, error) {
	rule, ok := p.Match(requester.SupervisorID != nil, requester.Level(), category)
	if !ok {
		slog.Warn("no approval rule matches requester",
			"employee_id", requester.ID,
			"level", requester.Level(),
			"category", category,
			"policy_version", p.Version,
		)
		return nil, request.ErrNoApproverFound
	}

	st := &chainState{
		requester: requester,
		seen:      map[string]bool{requester.ID: true},
		held:      map[string]bool{},
	}

	var steps []ChainStep
	for i, step := range rule.Steps {
		if step.SkipIfHeld && st.holdsAny(step.Roles) {
			slog.Debug("approval step skipped, role already in chain", "rule", rule.Name, "step", i, "roles", step.Roles)
			continue
		}

		approver, role, found, err := c.resolveStep(ctx, st, step)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve step %d of rule %q: %w", i, rule.Name, err)
		}
		if !found {
			slog.Warn("approval step has no holder, skipping",
				"rule", rule.Name,
				"step", i,
				"source", step.Source,
				"roles", step.Roles,
				"employee_id", requester.ID,
			)
			continue
		}

		st.seen[approver.ID] = true
		if approver.JobRoleName != "" {
			st.held[approver.JobRoleName] = true
		}
		steps = append(steps, ChainStep{
			Level:    len(steps) + 1,
			Approver: approver,
			Source:   step.Source,
			Role:     role,
		})
	}

	if len(steps) == 0 {
		return nil, request.ErrNoApproverFound
	}
	return steps, nil
}

func (s *chainState) holdsAny(roles []string) bool {
	for _, r := range roles {
		if s.held[r] {
			return true
		}
	}
	return false
}

func (c *ChainResolver) resolveStep(ctx context.Context, st *chainState, step policy.Step) (employee.Employee, string, bool, error) {
	switch step.Source {
	case policy.SourceSupervisor:
		return c.resolveSupervisor(ctx, st)
	case policy.SourceRole:
		for _, role := range step.Roles {
			e, found, err := c.resolveRole(ctx, st, role, step.Scope)
			if err != nil || found {
				return e, role, found, err
			}
		}
		return employee.Employee{}, "", false, nil
	case policy.SourceHierarchy:
		e, found, err := c.resolveHierarchy(ctx, st)
		return e, e.JobRoleName, found, err
	default:
		return employee.Employee{}, "", false, fmt.Errorf("unknown step source %q", step.Source)
	}
}

func (c *ChainResolver) resolveSupervisor(ctx context.Context, st *chainState) (employee.Employee, string, bool, error) {
	if st.requester.SupervisorID == nil || st.seen[*st.requester.SupervisorID] {
		return employee.Employee{}, "", false, nil
	}
	sup, err := c.employees.GetByID(ctx, st.requester.CompanyID, *st.requester.SupervisorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.Employee{}, "", false, nil
		}
		return employee.Employee{}, "", false, fmt.Errorf("failed to get supervisor: %w", err)
	}
	return sup, "", true, nil
}

// resolveRole finds the first unclaimed holder of role. Organization scope
// walks up from the requester's organization before searching the company.
func (c *ChainResolver) resolveRole(ctx context.Context, st *chainState, role string, scope policy.Scope) (employee.Employee, bool, error) {
	if scope == policy.ScopeOrganization {
		path, err := c.orgPath(ctx, st)
		if err != nil {
			return employee.Employee{}, false, err
		}
		for _, org := range path {
			orgID := org.ID
			candidates, err := c.employees.FindByRole(ctx, st.requester.CompanyID, role, &orgID)
			if err != nil {
				return employee.Employee{}, false, fmt.Errorf("failed to find %s in organization %s: %w", role, orgID, err)
			}
			if e, ok := st.firstUnseen(candidates); ok {
				return e, true, nil
			}
		}
	}

	candidates, err := c.employees.FindByRole(ctx, st.requester.CompanyID, role, nil)
	if err != nil {
		return employee.Employee{}, false, fmt.Errorf("failed to find %s in company: %w", role, err)
	}
	e, ok := st.firstUnseen(candidates)
	return e, ok, nil
}

// resolveHierarchy finds the nearest employee ranked above the requester,
// walking up the organization tree.
func (c *ChainResolver) resolveHierarchy(ctx context.Context, st *chainState) (employee.Employee, bool, error) {
	path, err := c.orgPath(ctx, st)
	if err != nil {
		return employee.Employee{}, false, err
	}
	for _, org := range path {
		candidates, err := c.employees.FindAboveLevel(ctx, st.requester.CompanyID, org.ID, st.requester.Level())
		if err != nil {
			return employee.Employee{}, false, fmt.Errorf("failed to find superiors in organization %s: %w", org.ID, err)
		}
		if e, ok := st.firstUnseen(candidates); ok {
			return e, true, nil
		}
	}
	return employee.Employee{}, false, nil
}

func (s *chainState) firstUnseen(candidates []employee.Employee) (employee.Employee, bool) {
	for _, e := range candidates {
		if !s.seen[e.ID] {
			return e, true
		}
	}
	return employee.Employee{}, false
}

// orgPath loads the requester's organization and its ancestors once per resolution.
func (c *ChainResolver) orgPath(ctx context.Context, st *chainState) ([]employee.Organization, error) {
	if st.pathReady {
		return st.path, nil
	}
	st.pathReady = true
	if st.requester.OrganizationID == "" {
		return nil, nil
	}
	path, err := c.orgs.Ancestors(ctx, st.requester.CompanyID, st.requester.OrganizationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, employee.ErrOrganizationNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	st.path = path
	return path, nil
}
