// Package auth verifies bearer tokens issued by the identity provider and
// carries the caller's identity through the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/internal/platform/httpserver"
)

// leeway absorbs clock skew between the issuer and these services.
const leeway = 30 * time.Second

var ErrNoSubject = errors.New("token has no subject")

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRole
)

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxUserID).(string)
	return v, ok && v != ""
}

// WithUserID is what RequireUser stores; handler tests use it to fake a session.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxUserID, uid)
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxRole, role)
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxRole).(string)
	return v, ok && v != ""
}

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// JWTVerifier checks HS256 tokens. Issuer and Audience are enforced only when set.
type JWTVerifier struct {
	Secret   []byte
	Issuer   string
	Audience string
}

func NewVerifier(secret, issuer, audience string) JWTVerifier {
	return JWTVerifier{Secret: []byte(secret), Issuer: issuer, Audience: audience}
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireUser rejects requests without a valid bearer token with 401 and
// otherwise stores the subject (and role, if any) in the context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := httpserver.RequestIDFromContext(r.Context())
			token, ok := bearerToken(r)
			if !ok {
				api.Unauthorized(w, api.CodeAuthRequired, "Sign in to continue", rid)
				return
			}
			claims, err := verifier.Parse(token)
			if err != nil {
				api.Unauthorized(w, api.CodeAuthRequired, "Session expired or invalid", rid)
				return
			}
			ctx := WithUserID(r.Context(), claims.Subject)
			if role := strings.TrimSpace(claims.Role); role != "" {
				ctx = WithRole(ctx, role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
