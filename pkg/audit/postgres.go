package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a postgres-backed store and ensures the
// log_entries and retention_policy tables exist.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	store := &PostgresStore{db: db}
	if err := store.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit tables: %w", err)
	}
	return store, nil
}

// ensureTables creates the schema if it doesn't exist.
func (s *PostgresStore) ensureTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS log_entries (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		user_email VARCHAR(255) NOT NULL,
		user_name VARCHAR(255) NOT NULL,
		user_role VARCHAR(64) NOT NULL,
		action_type VARCHAR(32) NOT NULL,
		resource_type VARCHAR(64) NOT NULL,
		resource_id VARCHAR(255),
		resource_name VARCHAR(255),
		http_method VARCHAR(10),
		endpoint TEXT,
		workflow_name VARCHAR(255),
		node_name VARCHAR(255),
		request_size BIGINT,
		status_code INTEGER,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		execution_time_ms BIGINT,
		ip_address VARCHAR(45),
		user_agent TEXT,
		session_id VARCHAR(128),
		affected_users_count INTEGER NOT NULL DEFAULT 0,
		changes_summary JSONB,
		compliance_flags TEXT[],
		risk_level VARCHAR(16) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_log_entries_created_at ON log_entries(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_log_entries_user_id ON log_entries(user_id);
	CREATE INDEX IF NOT EXISTS idx_log_entries_action_type ON log_entries(action_type);
	CREATE INDEX IF NOT EXISTS idx_log_entries_resource ON log_entries(resource_type, resource_id);
	CREATE INDEX IF NOT EXISTS idx_log_entries_risk_level ON log_entries(risk_level);
	CREATE INDEX IF NOT EXISTS idx_log_entries_success ON log_entries(success);

	CREATE TABLE IF NOT EXISTS retention_policy (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		retention_days INTEGER NOT NULL,
		archive_days INTEGER NOT NULL,
		last_cleanup TIMESTAMP WITH TIME ZONE
	);
	`

	_, err := s.db.Exec(query)
	return err
}

// Insert persists the entry and assigns its store ID.
func (s *PostgresStore) Insert(ctx context.Context, entry *LogEntry) error {
	var changesJSON []byte
	if entry.ChangesSummary != nil {
		raw, err := entry.ChangesSummary.marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal changes summary: %w", err)
		}
		changesJSON = raw
	}

	query := `
		INSERT INTO log_entries (
			created_at,
			user_id, user_email, user_name, user_role,
			action_type, resource_type, resource_id, resource_name,
			http_method, endpoint, workflow_name, node_name, request_size,
			status_code, success, error_message, execution_time_ms,
			ip_address, user_agent, session_id, affected_users_count,
			changes_summary, compliance_flags, risk_level
		) VALUES (
			$1,
			$2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22,
			$23, $24, $25
		) RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		entry.CreatedAt,
		entry.UserID, entry.UserEmail, entry.UserName, entry.UserRole,
		entry.ActionType, entry.ResourceType, entry.ResourceID, entry.ResourceName,
		entry.HTTPMethod, entry.Endpoint, entry.WorkflowName, entry.NodeName, entry.RequestSize,
		entry.StatusCode, entry.Success, entry.ErrorMessage, entry.ExecutionTimeMs,
		entry.IPAddress, entry.UserAgent, entry.SessionID, entry.AffectedUsersCount,
		changesJSON, pq.Array(entry.ComplianceFlags), entry.RiskLevel,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// buildWhere renders the filter as a WHERE clause with positional args.
func buildWhere(filter Filter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if filter.UserID != "" {
		where += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, filter.UserID)
		argCount++
	}
	if filter.ActionType != "" {
		where += fmt.Sprintf(" AND action_type = $%d", argCount)
		args = append(args, string(filter.ActionType))
		argCount++
	}
	if filter.ResourceType != "" {
		where += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, string(filter.ResourceType))
		argCount++
	}
	if filter.RiskLevel != "" {
		where += fmt.Sprintf(" AND risk_level = $%d", argCount)
		args = append(args, string(filter.RiskLevel))
		argCount++
	}
	if filter.Success != nil {
		where += fmt.Sprintf(" AND success = $%d", argCount)
		args = append(args, *filter.Success)
		argCount++
	}
	if filter.StartDate != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.StartDate)
		argCount++
	}
	if filter.EndDate != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.EndDate)
		argCount++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(` AND (
			user_name ILIKE $%[1]d OR user_email ILIKE $%[1]d OR
			endpoint ILIKE $%[1]d OR resource_name ILIKE $%[1]d OR
			changes_summary::text ILIKE $%[1]d OR workflow_name ILIKE $%[1]d OR
			node_name ILIKE $%[1]d OR resource_type ILIKE $%[1]d)`, argCount)
		args = append(args, "%"+filter.Search+"%")
		argCount++
	}

	return where, args
}

// Query returns a page of matching entries plus the total match count.
func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]*LogEntry, int64, error) {
	if err := filter.Normalize(); err != nil {
		return nil, 0, err
	}

	where, args := buildWhere(filter)

	var total int64
	countQuery := "SELECT COUNT(*) FROM log_entries" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count log entries: %w", err)
	}

	query := selectColumns + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Recent returns up to limit most recent entries.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*LogEntry, error) {
	query := selectColumns + " ORDER BY created_at DESC LIMIT $1"
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Counts returns exact whole-store counters.
func (s *PostgresStore) Counts(ctx context.Context) (Counters, error) {
	var counters Counters

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM log_entries", &counters.Total},
		{"SELECT COUNT(*) FROM log_entries WHERE created_at >= CURRENT_DATE", &counters.Today},
		{"SELECT COUNT(*) FROM log_entries WHERE success = false", &counters.Failed},
		{"SELECT COUNT(*) FROM log_entries WHERE risk_level IN ('HIGH', 'CRITICAL')", &counters.HighRisk},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return Counters{}, fmt.Errorf("failed to count log entries: %w", err)
		}
	}
	return counters, nil
}

// DeleteOlderThan removes entries created at or before the cutoff.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM log_entries WHERE created_at <= $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deletion count: %w", err)
	}
	return deleted, nil
}

// GetRetentionPolicy loads the singleton row, (nil, nil) when absent.
func (s *PostgresStore) GetRetentionPolicy(ctx context.Context) (*RetentionPolicy, error) {
	var policy RetentionPolicy
	var lastCleanup sql.NullTime

	err := s.db.QueryRowContext(ctx,
		"SELECT retention_days, archive_days, last_cleanup FROM retention_policy WHERE id = 1",
	).Scan(&policy.RetentionDays, &policy.ArchiveDays, &lastCleanup)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load retention policy: %w", err)
	}

	if lastCleanup.Valid {
		policy.LastCleanup = lastCleanup.Time
	}
	return &policy, nil
}

// SaveRetentionPolicy upserts the singleton row.
func (s *PostgresStore) SaveRetentionPolicy(ctx context.Context, policy *RetentionPolicy) error {
	query := `
		INSERT INTO retention_policy (id, retention_days, archive_days, last_cleanup)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			retention_days = EXCLUDED.retention_days,
			archive_days = EXCLUDED.archive_days,
			last_cleanup = EXCLUDED.last_cleanup
	`
	_, err := s.db.ExecContext(ctx, query, policy.RetentionDays, policy.ArchiveDays, policy.LastCleanup)
	if err != nil {
		return fmt.Errorf("failed to save retention policy: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT
		id, created_at,
		user_id, user_email, user_name, user_role,
		action_type, resource_type, resource_id, resource_name,
		http_method, endpoint, workflow_name, node_name, request_size,
		status_code, success, error_message, execution_time_ms,
		ip_address, user_agent, session_id, affected_users_count,
		changes_summary, compliance_flags, risk_level
	FROM log_entries`

// scanEntries reads all rows into entries.
func scanEntries(rows *sql.Rows) ([]*LogEntry, error) {
	entries := make([]*LogEntry, 0)

	for rows.Next() {
		entry := &LogEntry{}
		var changesJSON []byte
		var flags pq.StringArray

		err := rows.Scan(
			&entry.ID, &entry.CreatedAt,
			&entry.UserID, &entry.UserEmail, &entry.UserName, &entry.UserRole,
			&entry.ActionType, &entry.ResourceType, &entry.ResourceID, &entry.ResourceName,
			&entry.HTTPMethod, &entry.Endpoint, &entry.WorkflowName, &entry.NodeName, &entry.RequestSize,
			&entry.StatusCode, &entry.Success, &entry.ErrorMessage, &entry.ExecutionTimeMs,
			&entry.IPAddress, &entry.UserAgent, &entry.SessionID, &entry.AffectedUsersCount,
			&changesJSON, &flags, &entry.RiskLevel,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		if len(changesJSON) > 0 {
			entry.ChangesSummary = ChangesSummary{}
			if err := json.Unmarshal(changesJSON, &entry.ChangesSummary); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changes summary: %w", err)
			}
		}
		entry.ComplianceFlags = []string(flags)

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}
	return entries, nil
}
