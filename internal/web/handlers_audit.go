package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/customer-import/internal/core"
)

const maxAuditPageSize = 500

// handleAuditLog lists audit entries newest first.
//
// Query parameters: entity, entityId, action, batch, from, to (YYYY-MM-DD,
// both inclusive), limit, offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := parseIntParam(r, "limit", core.DefaultAuditLimit, 1)
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}

	filter := core.AuditLogFilter{
		EntityType: q.Get("entity"),
		EntityID:   q.Get("entityId"),
		Action:     core.AuditAction(q.Get("action")),
		BatchID:    q.Get("batch"),
		From:       parseDateParam(r, "from"),
		Limit:      limit,
		Offset:     parseIntParam(r, "offset", 0, 0),
	}

	if to := parseDateParam(r, "to"); !to.IsZero() {
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}

	entries, err := s.service.ListAudit(r.Context(), filter)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// parseIntParam reads an integer query parameter, falling back to
// defaultVal when it is missing, malformed or below minVal.
func parseIntParam(r *http.Request, name string, defaultVal, minVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < minVal {
		return defaultVal
	}
	return i
}

// parseDateParam reads a YYYY-MM-DD query parameter as UTC midnight.
// Missing or malformed values yield the zero time.
func parseDateParam(r *http.Request, name string) time.Time {
	t, err := time.Parse(time.DateOnly, r.URL.Query().Get(name))
	if err != nil {
		return time.Time{}
	}
	return t
}
