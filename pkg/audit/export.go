package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// csvHeader is the fixed 24-column header covering every scalar
// LogEntry field in declaration order. The structured fields
// (changesSummary, complianceFlags) appear only in JSON exports.
var csvHeader = []string{
	"ID",
	"Created At",
	"User ID",
	"User Email",
	"User Name",
	"User Role",
	"Action Type",
	"Resource Type",
	"Resource ID",
	"Resource Name",
	"HTTP Method",
	"Endpoint",
	"Workflow Name",
	"Node Name",
	"Request Size",
	"Status Code",
	"Success",
	"Error Message",
	"Execution Time (ms)",
	"IP Address",
	"User Agent",
	"Session ID",
	"Affected Users",
	"Risk Level",
}

// Export renders the filtered entries in the requested format. JSON
// returns the page verbatim; CSV renders the fixed header plus one row
// per entry, with quoting handled per RFC 4180 (fields containing
// commas, quotes, or newlines are quoted and internal quotes doubled).
func (s *Service) Export(ctx context.Context, filter Filter, format ExportFormat) (*ExportResult, error) {
	switch format {
	case ExportFormatJSON, ExportFormatCSV:
	case "":
		format = ExportFormatJSON
	default:
		return nil, NewValidationError("format", `must be "json" or "csv"`)
	}

	entries, _, err := s.store.Query(ctx, filter)
	if err != nil {
		if IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("export query failed: %w", err)
	}

	result := &ExportResult{
		Format:       format,
		ExportedAt:   s.now().UTC(),
		TotalRecords: len(entries),
	}

	if format == ExportFormatJSON {
		result.Data = entries
		return result, nil
	}

	csvData, err := renderCSV(entries)
	if err != nil {
		return nil, fmt.Errorf("export CSV rendering failed: %w", err)
	}
	result.CSVData = csvData
	return result, nil
}

func renderCSV(entries []*LogEntry) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeader); err != nil {
		return "", err
	}

	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.Format(time.RFC3339),
			e.UserID,
			e.UserEmail,
			e.UserName,
			e.UserRole,
			string(e.ActionType),
			string(e.ResourceType),
			e.ResourceID,
			e.ResourceName,
			e.HTTPMethod,
			e.Endpoint,
			e.WorkflowName,
			e.NodeName,
			strconv.FormatInt(e.RequestSize, 10),
			strconv.Itoa(e.StatusCode),
			strconv.FormatBool(e.Success),
			e.ErrorMessage,
			strconv.FormatInt(e.ExecutionTimeMs, 10),
			e.IPAddress,
			e.UserAgent,
			e.SessionID,
			strconv.Itoa(e.AffectedUsersCount),
			string(e.RiskLevel),
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
