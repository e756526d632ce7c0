package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/customer-import/internal/core"
)

var (
	_ core.AuditSink   = (*AuditLog)(nil)
	_ core.AuditReader = (*AuditLog)(nil)
)

// AuditLog writes and lists core.AuditEntry rows in audit_log.
type AuditLog struct {
	db DBTX
}

// NewAuditLog creates an AuditLog over db.
func NewAuditLog(db DBTX) *AuditLog {
	return &AuditLog{db: db}
}

const insertAuditSQL = `INSERT INTO audit_log
	(batch_id, actor_id, entity_type, entity_id, action, severity,
	 before_data, after_data, ip_address, user_agent, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))`

// Record inserts one audit entry.
func (a *AuditLog) Record(ctx context.Context, entry core.AuditEntry) error {
	before, err := marshalSnapshot(entry.Before)
	if err != nil {
		return fmt.Errorf("encode before snapshot: %w", err)
	}
	after, err := marshalSnapshot(entry.After)
	if err != nil {
		return fmt.Errorf("encode after snapshot: %w", err)
	}

	createdAt := pgtype.Timestamptz{Time: entry.CreatedAt, Valid: !entry.CreatedAt.IsZero()}

	_, err = a.db.Exec(ctx, insertAuditSQL,
		toPgUUID(entry.BatchID),
		entry.ActorID,
		entry.EntityType,
		entry.EntityID,
		string(entry.Action),
		string(entry.Severity),
		before,
		after,
		toIPAddr(entry.IPAddress),
		toPgText(entry.UserAgent),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// marshalSnapshot encodes a before/after snapshot; nil stays SQL NULL.
func marshalSnapshot(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// ListAudit returns matching entries newest first.
func (a *AuditLog) ListAudit(ctx context.Context, filter core.AuditLogFilter) ([]core.AuditEntry, error) {
	query, args := buildAuditQuery(filter)

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanAuditRow)
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return entries, nil
}

func buildAuditQuery(filter core.AuditLogFilter) (string, []any) {
	if filter.Limit <= 0 {
		filter.Limit = core.DefaultAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	wb := NewWhereBuilder()
	wb.Add("entity_type", filter.EntityType)
	wb.Add("entity_id", filter.EntityID)
	wb.Add("action", string(filter.Action))
	if id := toPgUUID(filter.BatchID); id.Valid {
		wb.Eq("batch_id", id)
	}
	wb.AddTimestampRange("created_at", filter.From, filter.To)
	where, args := wb.Build()

	query := `SELECT id, batch_id, actor_id, entity_type, entity_id, action, severity,
		before_data, after_data, ip_address, user_agent, created_at
		FROM audit_log` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, filter.Limit, filter.Offset)
	return query, args
}

// scanAuditRow scans a single row from audit_log into a core.AuditEntry.
func scanAuditRow(row pgx.CollectableRow) (core.AuditEntry, error) {
	var (
		id         pgtype.UUID
		batchID    pgtype.UUID
		actorID    string
		entityType string
		entityID   string
		action     string
		severity   string
		beforeData []byte
		afterData  []byte
		ipAddress  *netip.Addr
		userAgent  pgtype.Text
		createdAt  pgtype.Timestamptz
	)

	err := row.Scan(
		&id, &batchID, &actorID, &entityType, &entityID, &action, &severity,
		&beforeData, &afterData, &ipAddress, &userAgent, &createdAt,
	)
	if err != nil {
		return core.AuditEntry{}, err
	}

	entry := core.AuditEntry{
		ID:         pgUUIDToString(id),
		BatchID:    pgUUIDToString(batchID),
		ActorID:    actorID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     core.AuditAction(action),
		Severity:   core.AuditSeverity(severity),
		CreatedAt:  createdAt.Time,
	}
	if beforeData != nil {
		if err := json.Unmarshal(beforeData, &entry.Before); err != nil {
			return core.AuditEntry{}, fmt.Errorf("decode before snapshot of %s: %w", entry.ID, err)
		}
	}
	if afterData != nil {
		if err := json.Unmarshal(afterData, &entry.After); err != nil {
			return core.AuditEntry{}, fmt.Errorf("decode after snapshot of %s: %w", entry.ID, err)
		}
	}
	if ipAddress != nil {
		entry.IPAddress = ipAddress.String()
	}
	if userAgent.Valid {
		entry.UserAgent = userAgent.String
	}
	return entry, nil
}
