package database

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/customer-import/internal/core"
)

func TestToPgText(t *testing.T) {
	tests := []struct {
		input string
		want  pgtype.Text
	}{
		{"", pgtype.Text{}},
		{"   ", pgtype.Text{}},
		{"actor-1", pgtype.Text{String: "actor-1", Valid: true}},
		{"  padded  ", pgtype.Text{String: "padded", Valid: true}},
	}
	for _, tt := range tests {
		if got := toPgText(tt.input); got != tt.want {
			t.Errorf("toPgText(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestToPgUUID_RoundTrip(t *testing.T) {
	id := uuid.NewString()

	got := toPgUUID(id)
	if !got.Valid {
		t.Fatalf("toPgUUID(%q) invalid", id)
	}
	if back := pgUUIDToString(got); back != id {
		t.Errorf("round trip = %q, want %q", back, id)
	}

	for _, bad := range []string{"", "not-a-uuid", "IMP-123"} {
		if toPgUUID(bad).Valid {
			t.Errorf("toPgUUID(%q) valid, want invalid", bad)
		}
	}
	if pgUUIDToString(pgtype.UUID{}) != "" {
		t.Error("pgUUIDToString(invalid) should be empty")
	}
}

func TestToIPAddr(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"192.0.2.10", "192.0.2.10"},
		{"192.0.2.10:54321", "192.0.2.10"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"", ""},
		{"unknown", ""},
	}
	for _, tt := range tests {
		got := toIPAddr(tt.input)
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.want {
			t.Errorf("toIPAddr(%q) = %q, want %q", tt.input, gotStr, tt.want)
		}
	}
}

func TestToRecord(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got := toRecord(map[string]any{
		"id":         [16]byte(id),
		"payer_id":   nil,
		"name":       "Acme",
		"is_active":  true,
		"created_at": created,
	})

	want := core.Record{
		"id":         id.String(),
		"payer_id":   nil,
		"name":       "Acme",
		"is_active":  true,
		"created_at": created,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("toRecord mismatch (-want +got):\n%s", diff)
	}
}
