package database

// convert.go maps between Go values and PostgreSQL column types.
//
// pgx returns uuid columns as [16]byte when scanning into interface values;
// the import works with ids as strings, so rows are normalized on the way out.
// All toPg* helpers return Valid=false for empty input so blank optional
// values are stored as NULL.

import (
	"net"
	"net/netip"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/customer-import/internal/core"
)

// toPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// pgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// toIPAddr parses a client address, stripping a port if present.
// Returns nil when the address is empty or unparsable.
func toIPAddr(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}

// normalizeValue converts driver values into the types core.Record uses.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.UUID:
		return pgUUIDToString(x)
	default:
		return v
	}
}

// toRecord converts a scanned row map into a core.Record.
func toRecord(row map[string]any) core.Record {
	rec := make(core.Record, len(row))
	for k, v := range row {
		rec[k] = normalizeValue(v)
	}
	return rec
}
