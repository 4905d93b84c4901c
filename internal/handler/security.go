package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/xenking/shoporder/internal/domain/auth"
)

// userIDKey is the context key for the authenticated user id.
type userIDKey struct{}

// UserFromContext extracts the authenticated user id from the context.
func UserFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// Security authenticates requests. User identity arrives as a trusted
// X-User-ID header set by the upstream auth proxy; machine collaborators
// present an api_key header validated against its HMAC-SHA256 hash.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// RequireUser rejects requests without a valid X-User-ID header and stores
// the user id in the request context.
func (s *Security) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAPIKey authenticates the api_key header by computing its HMAC-SHA256,
// looking it up, comparing in constant time, and checking the granted scopes.
func (s *Security) RequireAPIKey(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("api_key")
		if key == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		if !info.HasScope(scope) {
			writeError(w, r, http.StatusForbidden, "missing scope: "+scope)
			return
		}

		next.ServeHTTP(w, r)
	})
}
