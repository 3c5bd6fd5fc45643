package middleware

import (
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/infrastructure/auth"
	"github.com/iho/tradeledger/internal/infrastructure/logger"
	"github.com/iho/tradeledger/internal/infrastructure/logging"
	"github.com/iho/tradeledger/internal/infrastructure/metrics"
)

const (
	// ActorIDHeader names the operator when token auth is disabled.
	ActorIDHeader = "X-Actor-ID"
	// ActorRoleHeader optionally sets that operator's role.
	ActorRoleHeader = "X-Actor-Role"
)

// ActorMiddleware resolves the acting operator of every request and stores
// it on the request context, along with the request ID used by worker logs.
type ActorMiddleware struct {
	jwtManager *auth.JWTManager
	metrics    *metrics.Metrics
}

// NewActorMiddleware creates a new ActorMiddleware. A nil jwtManager means
// token auth is disabled and the actor is taken from X-Actor-ID.
func NewActorMiddleware(jwtManager *auth.JWTManager, m *metrics.Metrics) *ActorMiddleware {
	return &ActorMiddleware{jwtManager: jwtManager, metrics: m}
}

// Wrap wraps an http.Handler with actor resolution.
func (m *ActorMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var actor *domain.Actor

		if m.jwtManager != nil {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				m.reject(w, "missing_header", "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				m.reject(w, "bad_format", "invalid authorization header format")
				return
			}

			claims, err := m.jwtManager.Verify(parts[1])
			if err != nil {
				m.reject(w, "invalid_token", "invalid or expired token")
				return
			}
			actor = claims.Actor()
		} else if id := strings.TrimSpace(r.Header.Get(ActorIDHeader)); id != "" {
			role := domain.Role(r.Header.Get(ActorRoleHeader))
			if role == "" {
				role = domain.RoleAdmin
			}
			if !role.IsValid() {
				m.reject(w, "invalid_role", "invalid actor role")
				return
			}
			actor = &domain.Actor{ID: id, Role: role}
		}

		if actor == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := domain.ContextWithActor(r.Context(), actor)
		ctx = logger.WithActor(ctx, actor.ID)
		ctx = logging.WithActor(ctx, actor.ID)
		ctx = logging.WithRequestID(ctx, chimiddleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *ActorMiddleware) reject(w http.ResponseWriter, reason, message string) {
	if m.metrics != nil {
		m.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
	writeError(w, http.StatusUnauthorized, message)
}

// RequireRole creates a middleware that checks for a specific role
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := domain.ActorFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// Check role permissions
			switch minRole {
			case domain.RoleAdmin:
				if !actor.Role.CanDelete() {
					writeError(w, http.StatusForbidden, "insufficient permissions")
					return
				}
			case domain.RoleOperator:
				if !actor.Role.CanWrite() {
					writeError(w, http.StatusForbidden, "insufficient permissions")
					return
				}
			case domain.RoleViewer:
				// All resolved actors can view
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ActorID returns the ID of the actor resolved for the request, or "" when
// none was resolved.
func ActorID(r *http.Request) string {
	if actor, ok := domain.ActorFromContext(r.Context()); ok {
		return actor.ID
	}
	return ""
}
