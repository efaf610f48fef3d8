package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const OwnerKey contextKey = "owner"

var errInvalidCredentials = errors.New("invalid credentials")

// Claims carries the owner id either in "id" or in the subject.
type Claims struct {
	UserID int64 `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator resolves the optional owner of a request from an API key or
// an HS256 bearer token.
type Authenticator struct {
	secret  []byte
	apiKeys map[string]int64
}

func NewAuthenticator(jwtSecret string, apiKeys map[string]int64) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret), apiKeys: apiKeys}
}

// Owner returns nil without credentials. Credentials that are present but
// invalid are an error, never a silent fallback to anonymous.
func (a *Authenticator) Owner(r *http.Request) (*int64, error) {
	token := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if token == "" {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if auth == "" {
			return nil, nil
		}
		token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if token == "" {
		return nil, errInvalidCredentials
	}

	// constant-time comparison against every key
	var (
		owner int64
		found bool
	)
	for key, id := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
			owner, found = id, true
		}
	}
	if found {
		return &owner, nil
	}
	if len(a.secret) == 0 {
		return nil, errInvalidCredentials
	}
	return a.parseToken(token)
}

func (a *Authenticator) parseToken(raw string) (*int64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errInvalidCredentials
	}
	if claims.UserID > 0 {
		id := claims.UserID
		return &id, nil
	}
	if id, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil && id > 0 {
		return &id, nil
	}
	return nil, errInvalidCredentials
}

// Authenticate stores the owner, possibly nil, in the request context.
func Authenticate(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := a.Owner(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

// RequireOwner rejects anonymous requests.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if OwnerFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OwnerFromContext returns nil for anonymous requests.
func OwnerFromContext(ctx context.Context) *int64 {
	if owner, ok := ctx.Value(OwnerKey).(*int64); ok {
		return owner
	}
	return nil
}

// WithOwner stores owner in ctx and reports it to an enclosing
// RequestLogger, which only sees the request it was handed.
func WithOwner(ctx context.Context, owner *int64) context.Context {
	if slot, ok := ctx.Value(ownerSlotKey).(*ownerSlot); ok {
		slot.owner = owner
	}
	return context.WithValue(ctx, OwnerKey, owner)
}
