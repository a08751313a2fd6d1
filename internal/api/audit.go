package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/cashcard-core/internal/audit"
)

// handleListAuditLogs returns the caller's own audit trail, newest first.
//
// Query parameters:
//   - action: filter by action (created, updated, deleted)
//   - entity_type: filter by entity type (cashcard, user)
//   - entity_id: filter by specific entity ID
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		UserID:     owner(r),
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeStatus(w, http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeStatus(w, http.StatusBadRequest)
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, "list audit logs", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
