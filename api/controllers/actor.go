package controllers

import (
	"net/http"

	"github.com/angelmondragon/factoring-portal/api/middleware"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
)

func actorFrom(r *http.Request) (authz.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return authz.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}
