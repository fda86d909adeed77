package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/factoring-portal/api/middleware"
	"github.com/angelmondragon/factoring-portal/api/responses"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

type tokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// AuthLogout revokes the presented access token until it would have expired.
func AuthLogout(revoker tokenRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := middleware.TokenFromContext(r.Context())
		if !ok || token.ID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token id missing"))
			return
		}
		if err := revoker.Revoke(r.Context(), token.ID, token.ExpiresAt); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session"))
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
