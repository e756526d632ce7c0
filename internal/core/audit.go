package core

import (
	"context"
	"log/slog"
	"time"
)

// AuditAction represents the type of mutation being audited.
type AuditAction string

const (
	AuditCreate          AuditAction = "create"
	AuditUpdate          AuditAction = "update"
	AuditDelete          AuditAction = "delete"
	AuditImportCompleted AuditAction = "import_completed"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// Entity types written to the audit log.
const (
	EntityCustomer          = "customer"
	EntityContact           = "contact"
	EntityContactLink       = "contact_customer_link"
	EntityTeacherAssignment = "teacher_school_assignment"
	EntityImport            = "import"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string         `json:"id,omitempty"`
	BatchID    string         `json:"batchId,omitempty"`
	ActorID    string         `json:"actorId"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     AuditAction    `json:"action"`
	Severity   AuditSeverity  `json:"severity"`
	Before     map[string]any `json:"before"`
	After      map[string]any `json:"after"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AuditSink receives audit entries. The executor never aborts on a sink error.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditLogFilter contains filtering options for querying audit logs.
type AuditLogFilter struct {
	EntityType string
	EntityID   string
	Action     AuditAction
	BatchID    string
	From       time.Time // inclusive; zero means unbounded
	To         time.Time // inclusive; zero means unbounded
	Limit      int
	Offset     int
}

// DefaultAuditLimit is the page size used when a filter sets no limit.
const DefaultAuditLimit = 100

// AuditReader is implemented by sinks that can list what they stored.
type AuditReader interface {
	ListAudit(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error)
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case AuditDelete:
		return SeverityHigh
	case AuditImportCompleted:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// auditor stamps entries with the batch and actor of one run and swallows
// sink failures after logging them. Each write is bounded by timeout.
type auditor struct {
	sink     AuditSink
	batchID  string
	actorID  string
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
	failures int
}

func (a *auditor) record(ctx context.Context, entityType, entityID string, action AuditAction, before, after Record) {
	if a.sink == nil {
		return
	}
	req := RequestInfoFromContext(ctx)
	entry := AuditEntry{
		BatchID:    a.batchID,
		ActorID:    a.actorID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Severity:   determineSeverity(action),
		Before:     auditSnapshot(before),
		After:      auditSnapshot(after),
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
		CreatedAt:  a.now(),
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.sink.Record(ctx, entry); err != nil {
		a.failures++
		a.logger.Error("audit write failed",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
	}
}

// auditSnapshot converts a record to a plain map; nil stays nil so the
// entry serializes "before": null for creates.
func auditSnapshot(r Record) map[string]any {
	if r == nil {
		return nil
	}
	return map[string]any(r.Clone())
}
