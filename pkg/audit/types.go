package audit

import (
	"encoding/json"
	"time"
)

// ActionType categorizes the mutating operation being recorded.
type ActionType string

const (
	ActionCreate     ActionType = "CREATE"
	ActionRead       ActionType = "READ"
	ActionUpdate     ActionType = "UPDATE"
	ActionDelete     ActionType = "DELETE"
	ActionLogin      ActionType = "LOGIN"
	ActionLogout     ActionType = "LOGOUT"
	ActionRegister   ActionType = "REGISTER"
	ActionBulkUpdate ActionType = "BULK_UPDATE"
	ActionBulkDelete ActionType = "BULK_DELETE"
)

// ResourceType identifies the kind of resource an action targeted.
// The set is open-ended; these are the values the builder infers.
type ResourceType string

const (
	ResourceUser     ResourceType = "USER"
	ResourceProfile  ResourceType = "PROFILE"
	ResourceSettings ResourceType = "SETTINGS"
	ResourceRole     ResourceType = "ROLE"
	ResourceAuth     ResourceType = "AUTH"
	ResourceSecurity ResourceType = "SECURITY"
	ResourceSystem   ResourceType = "SYSTEM"
)

// RiskLevel is the coarse severity tag assigned once at entry creation.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ChangeRecord is one entry in a ChangesSummary: either a field change
// ({to, from?}) or a bulk-operation marker ({type, count}).
type ChangeRecord struct {
	To    interface{} `json:"to,omitempty"`
	From  interface{} `json:"from,omitempty"`
	Type  string      `json:"type,omitempty"`
	Count int         `json:"count,omitempty"`
}

// ChangesSummary maps field names (or the special "bulkOperation" key)
// to what changed.
type ChangesSummary map[string]ChangeRecord

func (c ChangesSummary) marshal() ([]byte, error) {
	return json.Marshal(c)
}

// complianceFlags is the fixed tag set attached to every entry.
var complianceFlags = []string{"audit_trail", "blame_tracking", "enterprise_logging"}

// ComplianceFlags returns the fixed compliance tag set. A fresh slice is
// returned so callers cannot mutate the canonical set.
func ComplianceFlags() []string {
	flags := make([]string, len(complianceFlags))
	copy(flags, complianceFlags)
	return flags
}

// LogEntry is a single append-only audit record. Once persisted it is
// never mutated; the only deletion path is the retention cleanup.
type LogEntry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// Actor
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
	UserRole  string `json:"userRole"`

	// Action and target
	ActionType   ActionType   `json:"actionType"`
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   string       `json:"resourceId,omitempty"`
	ResourceName string       `json:"resourceName,omitempty"`

	// Request
	HTTPMethod   string `json:"httpMethod"`
	Endpoint     string `json:"endpoint"`
	WorkflowName string `json:"workflowName,omitempty"`
	NodeName     string `json:"nodeName,omitempty"`
	RequestSize  int64  `json:"requestSize,omitempty"`

	// Outcome
	StatusCode      int    `json:"statusCode"`
	Success         bool   `json:"success"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs,omitempty"`

	// Context
	IPAddress          string `json:"ipAddress,omitempty"`
	UserAgent          string `json:"userAgent,omitempty"`
	SessionID          string `json:"sessionId,omitempty"`
	AffectedUsersCount int    `json:"affectedUsersCount"`

	// Governance
	ChangesSummary  ChangesSummary `json:"changesSummary,omitempty"`
	ComplianceFlags []string       `json:"complianceFlags"`
	RiskLevel       RiskLevel      `json:"riskLevel"`
}

// ToJSON serializes the entry.
func (e *LogEntry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RetentionPolicy is the singleton row governing how long entries live.
// RetentionDays is a soft, informational threshold; ArchiveDays is the
// hard deletion threshold applied by the cleanup manager.
type RetentionPolicy struct {
	RetentionDays int       `json:"retentionDays"`
	ArchiveDays   int       `json:"archiveDays"`
	LastCleanup   time.Time `json:"lastCleanup"`
}

const (
	// DefaultRetentionDays is three years.
	DefaultRetentionDays = 1095
	// DefaultArchiveDays is five years.
	DefaultArchiveDays = 1825
)

// DefaultRetentionPolicy returns the policy created lazily on first
// cleanup when no row exists yet.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays: DefaultRetentionDays,
		ArchiveDays:   DefaultArchiveDays,
	}
}

// BucketCount is one row of a top-N breakdown, sorted by descending
// count with ties broken by first appearance in the scanned window.
type BucketCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Stats is the aggregate view returned by the statistics aggregator.
// The four scalar counts are exact over the whole store; the breakdown
// lists are computed over a bounded recent window.
type Stats struct {
	TotalLogs        int64         `json:"totalLogs"`
	TodayLogs        int64         `json:"todayLogs"`
	FailedActions    int64         `json:"failedActions"`
	HighRiskActions  int64         `json:"highRiskActions"`
	TopUsers         []BucketCount `json:"topUsers"`
	TopActions       []BucketCount `json:"topActions"`
	TopResources     []BucketCount `json:"topResources"`
	RiskDistribution []BucketCount `json:"riskDistribution"`
}

// QueryResult is one page of entries plus the total match count across
// all pages, so callers can compute page counts.
type QueryResult struct {
	Entries []*LogEntry `json:"entries"`
	Total   int64       `json:"total"`
}

// CleanupResult reports what a retention cleanup pass did.
type CleanupResult struct {
	DeletedCount int64     `json:"deletedCount"`
	CutoffDate   time.Time `json:"cutoffDate"`
	NextCleanup  time.Time `json:"nextCleanup"`
}

// ExportFormat selects the export rendering.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
)

// ExportResult wraps an export payload. JSON exports populate Data;
// CSV exports populate CSVData.
type ExportResult struct {
	Format       ExportFormat `json:"format"`
	Data         []*LogEntry  `json:"data,omitempty"`
	CSVData      string       `json:"csvData,omitempty"`
	ExportedAt   time.Time    `json:"exportedAt"`
	TotalRecords int          `json:"totalRecords"`
}
