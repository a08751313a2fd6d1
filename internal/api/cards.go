package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cashcard-core/internal/auth"
	"github.com/nerrad567/cashcard-core/internal/card"
)

// cardPath returns the canonical location of a card.
func cardPath(id int64) string {
	return "/cashcards/" + card.FormatID(id)
}

// owner returns the username every card operation is scoped to.
func owner(r *http.Request) string {
	if id := auth.IdentityFrom(r.Context()); id != nil {
		return id.Username
	}
	return ""
}

// handleGetCard returns one of the caller's cards. A card owned by someone
// else is reported exactly like a missing one.
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := card.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	c, err := s.cards.Get(r.Context(), id, owner(r))
	if err != nil {
		s.writeServiceError(w, r, "get card", err)
		return
	}

	w.Header().Set("ETag", c.ETag())
	writeJSON(w, http.StatusOK, c)
}

// handleListCards returns one page of the caller's cards as a JSON array.
//
// Query parameters:
//   - page: zero-based page number (default 0)
//   - size: page size (default 20, clamped to the configured maximum)
//   - sort: "field[,asc|desc]", repeatable (default amount,asc)
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	req, err := s.paging.FromQuery(r.URL.Query())
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	page, err := s.cards.List(r.Context(), owner(r), req)
	if err != nil {
		s.writeServiceError(w, r, "list cards", err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	writeJSON(w, http.StatusOK, page.Items)
}

// handleCreateCard stores a new card owned by the caller. Any id or owner
// in the body is ignored.
func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	draft, err := card.DecodeDraft(r.Body)
	if err != nil {
		writeStatus(w, statusFor(err))
		return
	}

	c, err := s.cards.Create(r.Context(), owner(r), draft)
	if err != nil {
		s.writeServiceError(w, r, "create card", err)
		return
	}

	w.Header().Set("Location", cardPath(c.ID))
	w.Header().Set("ETag", c.ETag())
	w.WriteHeader(http.StatusCreated)
}

// handleUpdateCard replaces the amount of one of the caller's cards.
// An If-Match header makes the write conditional on the card's version;
// without it the last write wins.
func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := card.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	draft, err := card.DecodeDraft(r.Body)
	if err != nil {
		writeStatus(w, statusFor(err))
		return
	}

	expected, err := expectedVersion(r)
	if err != nil {
		writeStatus(w, statusFor(err))
		return
	}

	c, err := s.cards.Update(r.Context(), id, owner(r), draft, expected)
	if err != nil {
		s.writeServiceError(w, r, "update card", err)
		return
	}

	w.Header().Set("ETag", c.ETag())
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteCard removes one of the caller's cards.
func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := card.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	if err := s.cards.Delete(r.Context(), id, owner(r)); err != nil {
		s.writeServiceError(w, r, "delete card", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// expectedVersion reads If-Match. Absent or "*" means any version (0).
func expectedVersion(r *http.Request) (int64, error) {
	tag := strings.TrimSpace(r.Header.Get("If-Match"))
	if tag == "" || tag == "*" {
		return 0, nil
	}
	return card.ParseETag(tag)
}
