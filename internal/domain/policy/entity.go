package policy

import (
	"strings"
	"time"
)

// Source decides how a step finds its approver.
type Source string

const (
	// SourceSupervisor uses the requester's direct supervisor.
	SourceSupervisor Source = "supervisor"
	// SourceRole uses the first listed job role that has a holder.
	SourceRole Source = "role"
	// SourceHierarchy uses the nearest employee whose role ranks above the requester.
	SourceHierarchy Source = "hierarchy"
)

// Scope bounds where a role holder is searched for.
type Scope string

const (
	// ScopeOrganization walks the requester's organization and its parents,
	// then falls back to the whole company.
	ScopeOrganization Scope = "organization"
	ScopeCompany      Scope = "company"
)

type Step struct {
	Source Source   `json:"source"`
	Roles  []string `json:"roles,omitempty"`
	Scope  Scope    `json:"scope,omitempty"`
	// SkipIfHeld drops the step when an earlier approver already holds one of Roles.
	SkipIfHeld bool `json:"skip_if_held,omitempty"`
}

type Rule struct {
	Name              string   `json:"name,omitempty"`
	HasSupervisor     *bool    `json:"has_supervisor,omitempty"`
	MinRequesterLevel *int     `json:"min_requester_level,omitempty"`
	MaxRequesterLevel *int     `json:"max_requester_level,omitempty"`
	Types             []string `json:"types,omitempty"`
	Steps             []Step   `json:"steps"`
}

// Matches reports whether the rule applies to a requester. category is the
// request type, optionally suffixed with its kind ("leave:sick").
func (r Rule) Matches(hasSupervisor bool, level int, category string) bool {
	if r.HasSupervisor != nil && *r.HasSupervisor != hasSupervisor {
		return false
	}
	if r.MinRequesterLevel != nil && level < *r.MinRequesterLevel {
		return false
	}
	if r.MaxRequesterLevel != nil && level > *r.MaxRequesterLevel {
		return false
	}
	if len(r.Types) == 0 {
		return true
	}
	base, _, _ := strings.Cut(category, ":")
	for _, t := range r.Types {
		if t == category || t == base {
			return true
		}
	}
	return false
}

// Policy is one immutable version of a company's approval rules.
type Policy struct {
	ID        string
	CompanyID string
	Version   int
	Rules     []Rule
	CreatedBy *string
	CreatedAt time.Time
}

// Match returns the first rule that applies.
func (p Policy) Match(hasSupervisor bool, level int, category string) (Rule, bool) {
	for _, r := range p.Rules {
		if r.Matches(hasSupervisor, level, category) {
			return r, true
		}
	}
	return Rule{}, false
}
