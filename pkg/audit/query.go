package audit

import (
	"strings"
	"time"
)

// Pagination bounds.
const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 1000
)

// Filter describes a query over persisted entries. All populated
// predicate fields are ANDed; Search is a substring match ORed across
// the text fields listed on searchText.
type Filter struct {
	UserID       string
	ActionType   ActionType
	ResourceType ResourceType
	RiskLevel    RiskLevel
	Success      *bool
	StartDate    *time.Time
	EndDate      *time.Time
	Search       string

	Limit  int
	Offset int
}

// Normalize applies pagination defaults and caps, and validates the
// bounds. A zero limit becomes DefaultQueryLimit; anything above
// MaxQueryLimit is clamped rather than rejected.
func (f *Filter) Normalize() error {
	if f.Limit < 0 {
		return NewValidationError("limit", "must not be negative")
	}
	if f.Offset < 0 {
		return NewValidationError("offset", "must not be negative")
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return NewValidationError("endDate", "must not precede startDate")
	}
	if f.Limit == 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	return nil
}

// ParseSuccess interprets the tri-state success filter: "" means unset,
// "true"/"false" (and bare boolean literals from query strings) select
// one outcome. Anything else is a validation error.
func ParseSuccess(raw string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil, nil
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	default:
		return nil, NewValidationError("success", `must be "true", "false", or empty`)
	}
}

// searchFields lists the entry fields covered by free-text search, in
// match order. ChangesSummary is matched against its JSON rendering.
func (e *LogEntry) searchText() []string {
	fields := []string{
		e.UserName,
		e.UserEmail,
		e.Endpoint,
		e.ResourceName,
		e.WorkflowName,
		e.NodeName,
		string(e.ResourceType),
	}
	if e.ChangesSummary != nil {
		if raw, err := e.ChangesSummary.marshal(); err == nil {
			fields = append(fields, string(raw))
		}
	}
	return fields
}

// Matches reports whether the entry satisfies every populated predicate
// of the filter. Shared by the in-memory store and tests; the postgres
// store expresses the same semantics in SQL.
func (f *Filter) Matches(e *LogEntry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ActionType != "" && e.ActionType != f.ActionType {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.RiskLevel != "" && e.RiskLevel != f.RiskLevel {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	if f.StartDate != nil && e.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.CreatedAt.After(*f.EndDate) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		found := false
		for _, field := range e.searchText() {
			if strings.Contains(strings.ToLower(field), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
