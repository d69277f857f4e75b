package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/pulseras/pulseras-go/libs/handlers"
	"github.com/pulseras/pulseras-go/libs/logging"
)

type actorKey struct{}

// RoleAdmin is the role claim granting access to administrative routes
const RoleAdmin = "admin"

// RoleCustomer is the default role claim
const RoleCustomer = "customer"

// Actor is the authenticated caller resolved from a bearer token
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor carries the admin role
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// ActorClaims are the claims carried by actor tokens
type ActorClaims struct {
	jwt.Claims
	Role string `json:"role,omitempty"`
}

// ActorFromContext returns the actor placed on the context by ActorFromToken, if any
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(*Actor)
	return actor, ok && actor != nil
}

// WithActor returns a copy of ctx carrying actor
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// SignActorToken issues an HS256 token for the given subject and role
func SignActorToken(secret []byte, subject, role string, ttl time.Duration) (string, error) {
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := ActorClaims{
		Claims: jwt.Claims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}

	return jwt.Signed(sig).Claims(claims).CompactSerialize()
}

// ParseActorToken verifies an HS256 token and returns the actor it names
func ParseActorToken(secret []byte, raw string) (*Actor, error) {
	tok, err := jwt.ParseSigned(raw)
	if err != nil {
		return nil, err
	}

	var claims ActorClaims
	if err := tok.Claims(secret, &claims); err != nil {
		return nil, err
	}

	if err := claims.ValidateWithLeeway(jwt.Expected{Time: time.Now()}, jwt.DefaultLeeway); err != nil {
		return nil, err
	}

	if claims.Subject == "" {
		return nil, jwt.ErrInvalidClaims
	}

	role := claims.Role
	if role == "" {
		role = RoleCustomer
	}

	return &Actor{ID: claims.Subject, Role: role}, nil
}

// ActorFromToken resolves the bearer token on the request, if present and valid, into an Actor on the context
// NOTE an invalid token leaves the request anonymous, the Require* middlewares decide whether that is acceptable
func ActorFromToken(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := r.Header.Get("Authorization")
			if len(bearer) <= 7 || strings.ToUpper(bearer[0:6]) != "BEARER" {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := ParseActorToken(secret, bearer[7:])
			if err != nil {
				logging.Logger(r.Context(), "middleware.ActorFromToken").
					Debug().Err(err).Msg("rejected actor token")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireActor rejects requests without a resolved actor
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			(&handlers.AppError{
				Message: "authentication required",
				Code:    http.StatusUnauthorized,
			}).ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose actor is missing or lacks the admin role
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			(&handlers.AppError{
				Message: "authentication required",
				Code:    http.StatusUnauthorized,
			}).ServeHTTP(w, r)
			return
		}
		if !actor.IsAdmin() {
			(&handlers.AppError{
				Message:   "admin role required",
				ErrorCode: handlers.ErrorCodeForbidden,
				Code:      http.StatusForbidden,
			}).ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
