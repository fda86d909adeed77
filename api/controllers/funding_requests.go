package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/api/responses"
	"github.com/angelmondragon/factoring-portal/api/validators"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/internal/fundingrequests"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"github.com/angelmondragon/factoring-portal/pkg/pagination"
)

type requestPayload struct {
	Request *fundingrequests.FundingRequestDTO `json:"request"`
}

// ListFundingRequests returns the company's requests, newest first.
func ListFundingRequests(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		archived, err := validators.ParseQueryBool(r, "include_archived")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), actor, fundingrequests.ListParams{
			Status:          strings.TrimSpace(r.URL.Query().Get("status")),
			IncludeArchived: archived,
			Limit:           limit,
			Cursor:          strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetFundingRequest(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Get(r.Context(), actor, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestPayload{Request: fundingrequests.ToDTO(req)})
	}
}

// UpdateFundingRequest applies a closed-set patch. Unknown keys are rejected.
func UpdateFundingRequest(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var patch fundingrequests.PatchRequest
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Update(r.Context(), actor, requestID, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestPayload{Request: fundingrequests.ToDTO(req)})
	}
}

func DeleteFundingRequest(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, requestID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func ArchiveFundingRequest(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return lifecycleAction(svc.Archive, logg)
}

func DenyFundingRequest(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return lifecycleAction(svc.Deny, logg)
}

func FundFundingRequest(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return lifecycleAction(svc.Fund, logg)
}

func ForceSignFundingRequest(svc fundingrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return lifecycleAction(svc.ForceSign, logg)
}

type lifecycleFunc func(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error)

func lifecycleAction(op lifecycleFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := op(r.Context(), actor, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requestPayload{Request: fundingrequests.ToDTO(req)})
	}
}
