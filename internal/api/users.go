package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nerrad567/cashcard-core/internal/audit"
	"github.com/nerrad567/cashcard-core/internal/auth"
)

// createUserRequest is the body of POST /createuser.
type createUserRequest struct {
	UserName string    `json:"userName"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

// handleCreateUser registers an account. The endpoint is open: whoever
// calls it chooses the role. Success has an empty body.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	id, err := s.users.Create(r.Context(), req.UserName, req.Password, req.Role)
	if err != nil {
		s.writeServiceError(w, r, "create user", err)
		return
	}

	s.recordAudit(r.Context(), &audit.AuditLog{
		Action:     "created",
		EntityType: audit.EntityUser,
		EntityID:   id.Username,
		UserID:     id.Username,
		Source:     audit.SourceAPI,
		Details:    map[string]any{"role": string(id.Role)},
	})

	w.WriteHeader(http.StatusOK)
}

// recordAudit writes entry if an audit repository is configured. Failures
// are logged and never fail the request.
func (s *Server) recordAudit(ctx context.Context, entry *audit.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
