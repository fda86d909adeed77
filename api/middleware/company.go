package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/api/responses"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

// CompanyAccess scopes the actor to the {companyId} route param and attaches
// the caller's membership in that company. Permission checks stay with the
// operation being invoked.
func CompanyAccess(resolver IdentityResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}

			companyID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "companyId")))
			if err != nil || companyID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid company id"))
				return
			}

			res, err := resolver.Resolve(r.Context(), actor.UserID, companyID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			actor.CompanyID = companyID
			actor.Membership = res.Membership
			actor.IsStaff = actor.IsStaff || res.IsStaff

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithCompanyID(ctx, companyID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff rejects callers without the global staff flag.
func RequireStaff(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, _ := ActorFromContext(r.Context())
			if err := actor.Require(authz.LevelStaffOnly); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
