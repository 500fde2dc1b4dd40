package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/validator"
)

type PublishPolicyRequest struct {
	Rules []Rule `json:"rules"`
}

func (r *PublishPolicyRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.Rules) == 0 {
		errs = append(errs, validator.ValidationError{Field: "rules", Message: "at least one rule is required"})
	}

	for i, rule := range r.Rules {
		prefix := fmt.Sprintf("rules[%d]", i)

		if rule.MinRequesterLevel != nil && rule.MaxRequesterLevel != nil && *rule.MinRequesterLevel > *rule.MaxRequesterLevel {
			errs = append(errs, validator.ValidationError{
				Field:   prefix + ".min_requester_level",
				Message: "min_requester_level must not exceed max_requester_level",
			})
		}
		for _, t := range rule.Types {
			base, kind, hasKind := strings.Cut(t, ":")
			if !request.Type(base).Valid() || (hasKind && kind == "") {
				errs = append(errs, validator.ValidationError{
					Field:   prefix + ".types",
					Message: fmt.Sprintf("unknown request type %q", t),
				})
			}
		}
		if len(rule.Steps) == 0 {
			errs = append(errs, validator.ValidationError{Field: prefix + ".steps", Message: "at least one step is required"})
		}

		for j, step := range rule.Steps {
			field := fmt.Sprintf("%s.steps[%d]", prefix, j)
			switch step.Source {
			case SourceSupervisor, SourceHierarchy:
			case SourceRole:
				if len(step.Roles) == 0 {
					errs = append(errs, validator.ValidationError{Field: field + ".roles", Message: "roles are required for a role step"})
				}
				for _, role := range step.Roles {
					if validator.IsEmpty(role) {
						errs = append(errs, validator.ValidationError{Field: field + ".roles", Message: "role names must not be empty"})
					}
				}
			default:
				errs = append(errs, validator.ValidationError{Field: field + ".source", Message: "source must be one of supervisor, role, hierarchy"})
			}
			if step.Scope != "" && step.Scope != ScopeOrganization && step.Scope != ScopeCompany {
				errs = append(errs, validator.ValidationError{Field: field + ".scope", Message: "scope must be organization or company"})
			}
			if step.SkipIfHeld && len(step.Roles) == 0 {
				errs = append(errs, validator.ValidationError{Field: field + ".skip_if_held", Message: "skip_if_held needs roles"})
			}
		}
	}

	return errs.OrNil()
}

type PolicyResponse struct {
	ID        string    `json:"id,omitempty"`
	Version   int       `json:"version"`
	IsDefault bool      `json:"is_default"`
	Rules     []Rule    `json:"rules"`
	CreatedBy *string   `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func ToResponse(p Policy) PolicyResponse {
	return PolicyResponse{
		ID:        p.ID,
		Version:   p.Version,
		IsDefault: p.Version == DefaultVersion,
		Rules:     p.Rules,
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
	}
}
