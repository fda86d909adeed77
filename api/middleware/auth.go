package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/api/responses"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/internal/memberships"
	pkgAuth "github.com/angelmondragon/factoring-portal/pkg/auth"
	"github.com/angelmondragon/factoring-portal/pkg/auth/session"
	"github.com/angelmondragon/factoring-portal/pkg/config"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

// IdentityResolver resolves the caller's staff flag and company membership.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID, companyID uuid.UUID) (memberships.Resolution, error)
	IsBackofficeEmail(email string) bool
}

// Auth validates a bearer token and seeds the request context with the caller
// identity. Company membership is resolved later by CompanyAccess.
func Auth(cfg config.JWTConfig, revocations session.RevocationChecker, resolver IdentityResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token subject"))
				return
			}
			if userID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token subject"))
				return
			}

			if revocations != nil && claims.ID != "" {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if revoked {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked"))
					return
				}
			}

			actor := authz.Actor{UserID: userID, Email: claims.Email}
			if resolver != nil {
				res, err := resolver.Resolve(r.Context(), userID, uuid.Nil)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				actor.IsStaff = res.IsStaff || resolver.IsBackofficeEmail(claims.Email)
			}

			ctx := WithActor(r.Context(), actor)
			info := TokenInfo{ID: claims.ID}
			if claims.ExpiresAt != nil {
				info.ExpiresAt = claims.ExpiresAt.Time
			}
			ctx = WithToken(ctx, info)
			if logg != nil {
				ctx = logg.WithActor(ctx, userID.String(), actor.IsStaff)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
