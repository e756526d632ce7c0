package database

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 || len(wb.args) != 0 {
		t.Errorf("expected empty builder, got %d conditions and %d args", len(wb.conditions), len(wb.args))
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	whereClause, args := NewWhereBuilder().Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Eq(t *testing.T) {
	tests := []struct {
		name       string
		build      func(*WhereBuilder)
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "single condition",
			build:      func(w *WhereBuilder) { w.Eq("is_active", true) },
			wantClause: ` WHERE "is_active" = $1`,
			wantArgs:   []any{true},
		},
		{
			name: "multiple conditions",
			build: func(w *WhereBuilder) {
				w.Eq("contact_id", "p1").Eq("customer_id", "c1")
			},
			wantClause: ` WHERE "contact_id" = $1 AND "customer_id" = $2`,
			wantArgs:   []any{"p1", "c1"},
		},
		{
			name: "nil matches null without a placeholder",
			build: func(w *WhereBuilder) {
				w.Eq("payer_id", nil).Eq("name", "Acme")
			},
			wantClause: ` WHERE "payer_id" IS NULL AND "name" = $1`,
			wantArgs:   []any{"Acme"},
		},
		{
			name: "empty string skipped by Add",
			build: func(w *WhereBuilder) {
				w.Add("action", "").Add("entity_type", "customer")
			},
			wantClause: ` WHERE "entity_type" = $1`,
			wantArgs:   []any{"customer"},
		},
		{
			name:       "identifier quoting",
			build:      func(w *WhereBuilder) { w.Eq(`we"ird`, 1) },
			wantClause: ` WHERE "we""ird" = $1`,
			wantArgs:   []any{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			tt.build(wb)

			gotClause, gotArgs := wb.Build()
			if gotClause != tt.wantClause {
				t.Errorf("clause = %q, want %q", gotClause, tt.wantClause)
			}
			if diff := cmp.Diff(tt.wantArgs, gotArgs); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWhereBuilder_AddTimestampRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	wb := NewWhereBuilder()
	wb.AddTimestampRange("created_at", from, to)

	whereClause, args := wb.Build()

	expectedClause := ` WHERE "created_at" >= $1 AND "created_at" <= $2`
	if whereClause != expectedClause {
		t.Errorf("expected %q, got %q", expectedClause, whereClause)
	}
	if len(args) != 2 || args[0] != from || args[1] != to {
		t.Errorf("expected args [from, to], got %v", args)
	}

	open := NewWhereBuilder().AddTimestampRange("created_at", time.Time{}, to)
	if clause, _ := open.Build(); clause != ` WHERE "created_at" <= $1` {
		t.Errorf("open range clause = %q", clause)
	}
}

func TestWhereBuilder_NextArgIndex(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.NextArgIndex() != 1 {
		t.Errorf("expected initial NextArgIndex to be 1, got %d", wb.NextArgIndex())
	}

	wb.Eq("col1", "val1")
	if wb.NextArgIndex() != 2 {
		t.Errorf("expected NextArgIndex after 1 add to be 2, got %d", wb.NextArgIndex())
	}

	wb.Eq("col2", nil)
	if wb.NextArgIndex() != 2 {
		t.Errorf("IS NULL must not consume a placeholder, got %d", wb.NextArgIndex())
	}

	wb.AddTimestampRange("created_at", time.Now(), time.Now())
	if wb.NextArgIndex() != 4 {
		t.Errorf("expected NextArgIndex after timestamp range to be 4, got %d", wb.NextArgIndex())
	}
}
