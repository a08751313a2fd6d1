package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nerrad567/cashcard-core/internal/auth"
)

// Auth constants.
const (
	// defaultRealm is advertised in the Basic challenge when none is configured.
	defaultRealm = "cashcards"

	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// ticketBytes is the number of random bytes used for WebSocket tickets.
	ticketBytes = 32
)

// Auth failure reasons, used as the metrics label.
const (
	reasonBadCredentials  = "bad_credentials"
	reasonUnauthenticated = "unauthenticated"
	reasonForbidden       = "forbidden"
)

// errUnsupportedScheme marks an Authorization header that is neither Basic nor Bearer.
var errUnsupportedScheme = errors.New("unsupported authorization scheme")

// tokenResponse is the response body for POST /token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// authMiddleware resolves the caller from the Authorization header. A
// request without credentials continues anonymously and is judged by
// require; credentials that are present but wrong are refused here.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.identify(r)
		if err != nil {
			if isCredentialError(err) {
				s.logger.Debug("credentials rejected",
					"error", err,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				s.unauthorized(w, reasonBadCredentials)
				return
			}
			s.writeServiceError(w, r, "authentication", err)
			return
		}
		if id != nil {
			r = r.WithContext(auth.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// require applies the Gate for endpoint to the identity attached by authMiddleware.
func (s *Server) require(endpoint auth.Endpoint) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.IdentityFrom(r.Context())
			if err := s.gate.Authorize(endpoint, id); err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					s.unauthorized(w, reasonUnauthenticated)
					return
				}
				if id != nil {
					s.logger.Info("access denied",
						"endpoint", endpoint.String(),
						"username", id.Username,
						"role", string(id.Role),
					)
				}
				s.countAuthFailure(reasonForbidden)
				writeStatus(w, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identify returns the identity named by the Authorization header, or nil
// when the header is absent.
func (s *Server) identify(r *http.Request) (*auth.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil //nolint:nilnil // anonymous caller
	}

	scheme, credentials, _ := strings.Cut(header, " ")
	switch {
	case strings.EqualFold(scheme, "Basic"):
		username, password, ok := r.BasicAuth()
		if !ok {
			return nil, fmt.Errorf("%w: malformed basic credentials", auth.ErrInvalidCredentials)
		}
		return s.verifier.Verify(r.Context(), username, password)
	case strings.EqualFold(scheme, "Bearer") && s.tokens != nil:
		return s.tokens.Authenticate(r.Context(), strings.TrimSpace(credentials))
	default:
		return nil, errUnsupportedScheme
	}
}

func isCredentialError(err error) bool {
	return errors.Is(err, auth.ErrInvalidCredentials) ||
		errors.Is(err, auth.ErrTokenInvalid) ||
		errors.Is(err, errUnsupportedScheme)
}

// unauthorized writes a 401 with the Basic challenge.
func (s *Server) unauthorized(w http.ResponseWriter, reason string) {
	s.countAuthFailure(reason)
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.cfg.Realm))
	writeStatus(w, http.StatusUnauthorized)
}

func (s *Server) countAuthFailure(reason string) {
	if s.metrics != nil {
		s.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}

// handleIssueToken exchanges the caller's credentials for a bearer token.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	id := auth.IdentityFrom(r.Context())
	token, expires, err := s.tokens.Issue(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expires).Seconds()),
	})
}

// ticketStore holds pending WebSocket tickets. Tickets are single-use and
// expire after their TTL; go-cache's janitor removes unclaimed ones.
type ticketStore struct {
	mu    sync.Mutex // makes redeem a single get-and-delete
	cache *gocache.Cache
}

func newTicketStore(ttl time.Duration) *ticketStore {
	return &ticketStore{cache: gocache.New(ttl, ttl)}
}

// issue stores id under a fresh random ticket.
func (t *ticketStore) issue(id *auth.Identity) string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	ticket := hex.EncodeToString(b)
	t.cache.SetDefault(ticket, *id)
	return ticket
}

// redeem consumes a ticket and returns its identity.
func (t *ticketStore) redeem(ticket string) (*auth.Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.cache.Get(ticket)
	if !ok {
		return nil, false
	}
	t.cache.Delete(ticket)
	id, ok := v.(auth.Identity)
	if !ok {
		return nil, false
	}
	return &id, true
}

// handleWSTicket generates a single-use ticket for GET /cashcards/events,
// so browsers can connect without putting credentials in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket := s.tickets.issue(auth.IdentityFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}
