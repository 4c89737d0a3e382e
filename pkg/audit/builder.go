package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/consolehq/actionlog/pkg/auth"
)

// Overrides lets callers pin fields the builder would otherwise infer.
// Zero values mean "infer".
type Overrides struct {
	ActionType   ActionType
	ResourceType ResourceType
	ResourceID   string
	ResourceName string
	RiskLevel    RiskLevel
}

// Input is the raw call context the builder normalizes into a LogEntry.
type Input struct {
	// Actor; nil or unauthenticated falls back to the system identity.
	Auth *auth.Result

	// Request metadata.
	Method       string
	Path         string
	Payload      map[string]interface{}
	WorkflowName string
	NodeName     string
	RequestSize  int64
	IPAddress    string
	UserAgent    string

	// Outcome.
	StatusCode      int
	Success         bool
	ErrorMessage    string
	Response        map[string]interface{}
	ExecutionTimeMs int64

	// PriorValues supplies before-images for the changes summary.
	PriorValues map[string]interface{}

	Overrides Overrides
}

// sensitiveFields is the allow-list scanned for the changes summary.
var sensitiveFields = []string{"name", "email", "role", "status", "permissions", "settings"}

// bulkIDFields are payload keys that carry a bulk identifier list.
var bulkIDFields = []string{"ids", "userIds"}

// identifierFields are payload keys tried as a resource id fallback.
var identifierFields = []string{"id", "userId", "resourceId"}

// nameFields are payload/response keys tried as a human-readable label.
var nameFields = []string{"name", "title", "email"}

// resourceRoutes maps endpoint path fragments to resource types. Order
// matters: the first matching fragment wins.
var resourceRoutes = []struct {
	fragment string
	resource ResourceType
}{
	{"/user", ResourceUser},
	{"/profile", ResourceProfile},
	{"/setting", ResourceSettings},
	{"/role", ResourceRole},
	{"/auth", ResourceAuth},
	{"/security", ResourceSecurity},
}

// Builder normalizes raw call context into persistable log entries.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a builder using wall-clock time for CreatedAt.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build assembles a LogEntry from the input, inferring whatever the
// caller did not override and classifying risk exactly once.
func (b *Builder) Build(in Input) *LogEntry {
	actor := in.Auth.Actor()

	action := in.Overrides.ActionType
	if action == "" {
		action = InferAction(in.Method)
	}

	resource := in.Overrides.ResourceType
	if resource == "" {
		resource = InferResource(in.Path)
	}

	resourceID := in.Overrides.ResourceID
	if resourceID == "" {
		resourceID = extractResourceID(in.Path, in.Payload)
	}

	resourceName := in.Overrides.ResourceName
	if resourceName == "" {
		resourceName = extractResourceName(in.Payload, in.Response)
	}

	changes, affected := buildChangesSummary(in.Payload, in.PriorValues, action)

	risk := in.Overrides.RiskLevel
	if risk == "" {
		risk = AssessRisk(action, resource, affected)
	}

	return &LogEntry{
		CreatedAt: b.now().UTC(),

		UserID:    actor.ID,
		UserEmail: actor.Email,
		UserName:  actor.Name,
		UserRole:  actor.Role,

		ActionType:   action,
		ResourceType: resource,
		ResourceID:   resourceID,
		ResourceName: resourceName,

		HTTPMethod:   strings.ToUpper(in.Method),
		Endpoint:     in.Path,
		WorkflowName: in.WorkflowName,
		NodeName:     in.NodeName,
		RequestSize:  in.RequestSize,

		StatusCode:      in.StatusCode,
		Success:         in.Success,
		ErrorMessage:    in.ErrorMessage,
		ExecutionTimeMs: in.ExecutionTimeMs,

		IPAddress:          in.IPAddress,
		UserAgent:          in.UserAgent,
		SessionID:          in.Auth.SessionID(),
		AffectedUsersCount: affected,

		ChangesSummary:  changes,
		ComplianceFlags: ComplianceFlags(),
		RiskLevel:       risk,
	}
}

// InferAction maps an HTTP method to an action type. Unknown methods
// land on UPDATE, the least surprising mutating default.
func InferAction(method string) ActionType {
	switch strings.ToUpper(method) {
	case "POST":
		return ActionCreate
	case "PUT", "PATCH":
		return ActionUpdate
	case "DELETE":
		return ActionDelete
	default:
		return ActionUpdate
	}
}

// InferResource matches the endpoint path against the ordered route
// table, defaulting to SYSTEM.
func InferResource(path string) ResourceType {
	lower := strings.ToLower(path)
	for _, route := range resourceRoutes {
		if strings.Contains(lower, route.fragment) {
			return route.resource
		}
	}
	return ResourceSystem
}

// extractResourceID pulls a UUID- or numeric-looking segment out of the
// path, falling back to identifier fields in the payload.
func extractResourceID(path string, payload map[string]interface{}) string {
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		if _, err := uuid.Parse(segment); err == nil {
			return segment
		}
		if isNumeric(segment) {
			return segment
		}
	}

	for _, field := range identifierFields {
		if v, ok := payload[field]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractResourceName prefers a label from the request payload, then
// the response payload.
func extractResourceName(payload, response map[string]interface{}) string {
	for _, source := range []map[string]interface{}{payload, response} {
		for _, field := range nameFields {
			if v, ok := source[field]; ok {
				if s, ok := v.(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// buildChangesSummary scans the sensitive-field allow-list and any bulk
// identifier list in the payload. Returns the summary (nil when empty)
// and the affected-users count derived from the bulk list.
func buildChangesSummary(payload, prior map[string]interface{}, action ActionType) (ChangesSummary, int) {
	summary := ChangesSummary{}

	for _, field := range sensitiveFields {
		v, ok := payload[field]
		if !ok {
			continue
		}
		record := ChangeRecord{To: v}
		if prior != nil {
			if from, ok := prior[field]; ok {
				record.From = from
			}
		}
		summary[field] = record
	}

	affected := 0
	for _, field := range bulkIDFields {
		if list, ok := payload[field].([]interface{}); ok && len(list) > 0 {
			affected = len(list)
			summary["bulkOperation"] = ChangeRecord{
				Type:  string(action),
				Count: len(list),
			}
			break
		}
	}

	if len(summary) == 0 {
		return nil, affected
	}
	return summary, affected
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; render ids without exponent.
		return fmt.Sprintf("%.0f", val)
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	default:
		return ""
	}
}
