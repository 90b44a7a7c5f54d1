package auth

import (
	"net/http"

	"github.com/rizalfahlevi/booking-management/internal/transport"
)

// Middleware authenticates requests via the Authorization bearer token and
// places the resulting Actor on the request context. It deliberately does no
// per-entity authorization; party checks live in the lifecycle services.
type Middleware struct {
	*transport.BaseHandler
	validator *TokenValidator
}

func NewMiddleware(baseHandler *transport.BaseHandler, validator *TokenValidator) *Middleware {
	return &Middleware{
		BaseHandler: baseHandler,
		validator:   validator,
	}
}

func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.ExtractTokenFromHeader(r)
		if token == "" {
			m.Logger.Error("auth middleware: missing authorization token")
			m.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := m.validator.ValidateAccessToken(token)
		if err != nil {
			m.Logger.Error("auth middleware: token validation failed", "error", err)
			m.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		actor, err := ActorFromClaims(claims)
		if err != nil {
			m.Logger.Error("auth middleware: bad token claims", "error", err, "user_id", claims.UserID, "role", claims.Role)
			m.WriteError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}

		ctx := ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
