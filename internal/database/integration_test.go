package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/customer-import/internal/core"
)

// testTx opens a transaction against TEST_DATABASE_URL and rolls it back
// when the test ends. Tests using it are skipped without a database.
func testTx(t *testing.T) pgx.Tx {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	pool, err := Open(ctx, PoolConfig{URL: url, MaxConns: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(pool.Close)

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

func TestStore_Postgres(t *testing.T) {
	tx := testTx(t)
	ctx := context.Background()
	store := NewStore(tx)
	bc := "IT-" + uuid.NewString()[:8]

	created, err := store.Insert(ctx, core.TableCustomers, core.Record{
		core.ColBcCustomerNumber: bc,
		core.ColName:             "Integration",
		core.ColVoyadoID:         nil,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := uuid.Parse(created.ID()); err != nil {
		t.Errorf("id %q is not a uuid string: %v", created.ID(), err)
	}
	if !created.Bool(core.ColIsActive) || created[core.ColPayerID] != nil {
		t.Errorf("defaults not applied: %v", created)
	}

	found, err := store.Find(ctx, core.TableCustomers, core.Filter{core.ColBcCustomerNumber: bc, core.ColPayerID: nil})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(found) != 1 || found[0].ID() != created.ID() {
		t.Fatalf("Find() = %v", found)
	}

	updated, err := store.Update(ctx, core.TableCustomers, created.ID(), core.Record{core.ColIsActive: false})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Bool(core.ColIsActive) {
		t.Error("is_active still true after update")
	}

	_, err = store.Update(ctx, core.TableCustomers, uuid.NewString(), core.Record{core.ColName: "x"})
	if !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestAuditLog_Postgres(t *testing.T) {
	tx := testTx(t)
	ctx := context.Background()
	log := NewAuditLog(tx)
	batch := uuid.NewString()

	entries := []core.AuditEntry{
		{
			BatchID: batch, ActorID: "actor-1", EntityType: core.EntityCustomer, EntityID: "c1",
			Action: core.AuditCreate, Severity: core.SeverityMedium,
			After:     map[string]any{"name": "Acme"},
			IPAddress: "192.0.2.10:5000",
			CreatedAt: time.Now().Add(-time.Minute),
		},
		{
			BatchID: batch, ActorID: "actor-1", EntityType: core.EntityCustomer, EntityID: "c1",
			Action: core.AuditDelete, Severity: core.SeverityHigh,
			Before:    map[string]any{"payer_id": "c9"},
			CreatedAt: time.Now(),
		},
	}
	for _, e := range entries {
		if err := log.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := log.ListAudit(ctx, core.AuditLogFilter{BatchID: batch})
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListAudit() returned %d entries, want 2", len(got))
	}
	if got[0].Action != core.AuditDelete || got[0].Before["payer_id"] != "c9" || got[0].After != nil {
		t.Errorf("newest entry = %+v", got[0])
	}
	if got[1].IPAddress != "192.0.2.10" || got[1].After["name"] != "Acme" {
		t.Errorf("oldest entry = %+v", got[1])
	}
}
