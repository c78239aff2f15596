package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Role is the kind of principal behind a token
type Role string

const (
	RolePassenger Role = "passenger"
	RoleAirline   Role = "airline"
	RoleAdmin     Role = "admin"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Error kinds reported in the body of an auth failure
const (
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
)

// Principal is the authenticated caller
type Principal struct {
	ID   string
	Role Role
}

type contextKey struct{}

// WithPrincipal returns a context carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom returns the principal stored by Middleware
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// Authenticator verifies HS256 bearer tokens. Tokens are issued elsewhere and
// carry the principal in the "id" claim.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

// NewAuthenticator creates an Authenticator for secret
func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// ValidateToken parses a token and returns its principal
func (a *Authenticator) ValidateToken(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	id, _ := claims["id"].(string)
	if id == "" {
		return Principal{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = string(RolePassenger)
	}

	return Principal{ID: id, Role: Role(role)}, nil
}

// IssueToken signs a token for p. The API never issues tokens itself; this
// exists for tooling and tests.
func (a *Authenticator) IssueToken(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   p.ID,
		"role": string(p.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString(a.secret)
}

// Middleware rejects requests without a valid bearer token and stores the
// principal in the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, KindUnauthorized, ErrMissingToken.Error())
			return
		}

		principal, err := a.ValidateToken(tokenString)
		if err != nil {
			a.logger.Debug("Rejected bearer token", zap.String("path", r.URL.Path), zap.Error(err))
			writeError(w, http.StatusUnauthorized, KindUnauthorized, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireRole allows the request through only for the given roles. Admins
// always pass.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, KindUnauthorized, ErrMissingToken.Error())
				return
			}
			if p.Role == RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, KindForbidden, "insufficient role")
		})
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Message: message, Error: kind})
}
