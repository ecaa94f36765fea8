package middleware

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/audit"
	"github.com/mitarbeiterportal/portal/pkg/authn"
	"github.com/mitarbeiterportal/portal/pkg/identity"
)

var tokenRegex = regexp.MustCompile(`^Bearer\s+(\S+)$`)

// JWTAuthenticator is middleware that validates bearer tokens
type JWTAuthenticator struct {
	Tokens *authn.Tokens
}

// NewJWTAuthenticator creates a new JWT authenticator middleware
func NewJWTAuthenticator(tokens *authn.Tokens) *JWTAuthenticator {
	return &JWTAuthenticator{Tokens: tokens}
}

// Middleware returns an HTTP middleware that validates bearer tokens and
// stores the caller's identity in the request context.
func (j *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if len(authHeader) == 0 {
			unauthorized(w, "Authorization missing")
			return
		}

		tokenMatches := tokenRegex.FindStringSubmatch(authHeader)
		if len(tokenMatches) != 2 {
			unauthorized(w, "Malformed authorization header")
			return
		}

		claims, err := j.Tokens.Verify(tokenMatches[1])
		if errors.Is(err, authn.ErrTokenExpired) {
			unauthorized(w, "Token expired")
			return
		}
		if err != nil {
			unauthorized(w, "Invalid token")
			return
		}

		id, err := identity.FromClaims(claims)
		if err != nil {
			unauthorized(w, "Invalid token")
			return
		}
		id.WithRemoteIP(ClientIP(r))

		next.ServeHTTP(w, r.WithContext(identity.Set(r.Context(), id)))
	})
}

// AdminChecker reports whether a user is currently an administrator.
type AdminChecker interface {
	IsAdmin(ctx context.Context, key uuid.UUID) (bool, error)
}

// RequireAdmin rejects callers that are not administrators right now. The
// is_admin claim of the token is not consulted: a demoted or deleted user
// loses access on the next request. It must run after Middleware.
func RequireAdmin(admins AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identity.Get(r.Context())
			if !ok {
				unauthorized(w, "Authorization missing")
				return
			}
			admin, err := admins.IsAdmin(r.Context(), id.UserKey)
			if err != nil {
				log.Printf("admin check for %s failed: %v", id.Email, err)
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !admin {
				audit.Log(audit.AccessDeniedEvent{
					UserID:   id.Email,
					ClientIP: id.ClientIP(),
					Method:   r.Method,
					Path:     r.URL.Path,
					Reason:   "admin required",
				})
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, or the host part of
// the remote address.
func ClientIP(r *http.Request) net.IP {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":{"message":"` + message + `"}}`))
}
