// Package audit is an append-only trail of every mutating admin
// action: who did it, what it touched, how risky it was, and how it
// turned out.
//
// # Write path
//
// The workflow engine brackets each request with two interceptor
// phases. Start records a monotonic timestamp; Complete normalizes the
// call context into a LogEntry (inferring action and resource from the
// request when not overridden), classifies risk, and hands the entry
// to the async write pipeline. Dispatch returns before the insert
// happens and delivery is at-most-once: failures surface on a
// diagnostics channel, never to the instrumented request.
//
// Risk classification is a pure function of action type, resource
// type, and blast radius:
//
//	audit.AssessRisk(audit.ActionBulkDelete, audit.ResourceUser, 15) // CRITICAL
//	audit.AssessRisk(audit.ActionDelete, audit.ResourceUser, 1)     // HIGH
//	audit.AssessRisk(audit.ActionCreate, audit.ResourceUser, 0)     // LOW
//
// # Read path
//
// Service exposes the synchronous operator operations: filtered,
// paginated queries; windowed statistics; JSON/CSV export; and
// retention cleanup driven by the singleton RetentionPolicy. These
// propagate typed errors (ValidationError for bad operator input)
// rather than swallowing them.
//
// # Storage
//
// Store is the persistence boundary. PostgresStore is the production
// implementation; MemoryStore mirrors its semantics for tests and
// single-process use. Entries are immutable once written; the only
// deletion path is the age-based cleanup.
package audit
