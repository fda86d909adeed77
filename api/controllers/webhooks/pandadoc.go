package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/angelmondragon/factoring-portal/api/responses"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"github.com/angelmondragon/factoring-portal/pkg/pandadoc"
)

const maxWebhookBody = 1 << 20

// SignedMarker flips contracts to signed when the provider reports completion.
type SignedMarker interface {
	MarkSigned(ctx context.Context, envelopeID string) (bool, error)
}

// PandaDocWebhook handles document state callbacks. The HMAC arrives in the
// ?signature query parameter.
func PandaDocWebhook(svc SignedMarker, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !pandadoc.VerifySignature(secret, payload, r.URL.Query().Get("signature")) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var events []pandadoc.WebhookEvent
		if err := json.Unmarshal(payload, &events); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode events"))
			return
		}

		processed := 0
		for _, event := range events {
			if !event.IsCompleted() || event.Data.ID == "" {
				continue
			}
			changed, err := svc.MarkSigned(ctx, event.Data.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if changed {
				processed++
			} else if logg != nil {
				logg.Info(logg.WithField(ctx, "envelope_id", event.Data.ID), "pandadoc completion ignored")
			}
		}

		responses.WriteSuccess(w, map[string]int{"processed": processed})
	}
}
