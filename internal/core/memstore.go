package core

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// columnDefaults mirrors the column defaults of the PostgreSQL schema.
var columnDefaults = map[Table]Record{
	TableCustomers:            {ColIsActive: true, ColIsMunicipalityPayer: false, ColPayerID: nil},
	TableContacts:             {ColIsActive: true, ColIsTeacher: false, ColIsMerged: false},
	TableContactCustomerLinks: {ColIsPrimary: false},
}

// MemoryStore is an in-memory Store. It backs dry runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[Table][]Record
	now    func() time.Time
}

// NewMemoryStore creates an empty store supporting every import table.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		tables: make(map[Table][]Record, len(ImportTables)),
		now:    time.Now,
	}
	for _, t := range ImportTables {
		s.tables[t] = nil
	}
	return s
}

// CopyStore reads every import table of src into a new MemoryStore.
func CopyStore(ctx context.Context, src Store) (*MemoryStore, error) {
	dst := NewMemoryStore()
	for _, t := range ImportTables {
		rows, err := src.Find(ctx, t, nil)
		if err != nil {
			return nil, fmt.Errorf("copy %s: %w", t, err)
		}
		for _, r := range rows {
			dst.tables[t] = append(dst.tables[t], r.Clone())
		}
	}
	return dst, nil
}

func (s *MemoryStore) Find(ctx context.Context, table Table, filter Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if matches(r, filter) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, table Table, record Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	stored := make(Record, len(record)+4)
	for k, v := range columnDefaults[table] {
		stored[k] = v
	}
	for k, v := range record {
		stored[k] = v
	}
	if stored.ID() == "" {
		stored[ColID] = uuid.NewString()
	}
	now := s.now()
	stored["created_at"] = now
	if table == TableCustomers || table == TableContacts {
		stored["updated_at"] = now
	}

	s.tables[table] = append(s.tables[table], stored)
	return stored.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, table Table, id string, patch Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for _, r := range rows {
		if r.ID() != id {
			continue
		}
		for k, v := range patch {
			if k == ColID {
				continue
			}
			r[k] = v
		}
		if _, ok := r["updated_at"]; ok {
			r["updated_at"] = s.now()
		}
		return r.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrRecordNotFound, table, id)
}

// Len returns the number of records in a table.
func (s *MemoryStore) Len(table Table) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func matches(r Record, filter Filter) bool {
	for col, want := range filter {
		got := r[col]
		if want == nil {
			if got != nil {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// MemoryAuditSink keeps audit entries in memory.
type MemoryAuditSink struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

// NewMemoryAuditSink creates an empty sink.
func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

func (m *MemoryAuditSink) Record(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
	return nil
}

// Entries returns every recorded entry in write order.
func (m *MemoryAuditSink) Entries() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries)
}

// ListAudit returns matching entries newest first.
func (m *MemoryAuditSink) ListAudit(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.BatchID != "" && e.BatchID != filter.BatchID {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		matched = append(matched, e)
	}

	if filter.Offset >= len(matched) {
		return []AuditEntry{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}
