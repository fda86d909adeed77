package controllers

import (
	"net/http"

	"github.com/angelmondragon/factoring-portal/api/responses"
	"github.com/angelmondragon/factoring-portal/api/validators"
	"github.com/angelmondragon/factoring-portal/internal/fundingrequests"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

// AdminSummary counts requests by status for ?company_ids=a,b,c.
func AdminSummary(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := validators.ParseQueryUUIDs(r, "company_ids")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summaries, err := svc.Summary(r.Context(), actor, ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"companies": summaries})
	}
}
