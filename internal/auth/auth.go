// Package auth resolves the caller identity forwarded by the edge proxy.
// Token verification happens upstream; this service trusts the headers.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
)

type ctxKey struct{}

// Middleware rejects requests without a user id and stores the resolved
// identity in the request context.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := FromRequest(r)
			if err != nil {
				respond.Error(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// FromRequest reads the identity headers. Unknown roles fall back to customer.
func FromRequest(r *http.Request) (domain.Identity, error) {
	uid := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if uid == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	role := domain.RoleCustomer
	if domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))) == domain.RoleAdmin {
		role = domain.RoleAdmin
	}

	return domain.Identity{
		UserID: uid,
		Role:   role,
		Email:  strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
	}, nil
}

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return id, ok
}

// RequireAdmin answers 403 unless the caller holds the admin role.
func RequireAdmin(logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			respond.Error(w, logger, domain.ErrUnauthenticated)
			return
		}
		if !id.IsAdmin() {
			respond.Error(w, logger, domain.ErrForbidden)
			return
		}
		next(w, r)
	}
}
