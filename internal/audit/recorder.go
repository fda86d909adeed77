package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/internal/sideeffects"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	dbtypes "github.com/angelmondragon/factoring-portal/pkg/db/types"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

// Entities.
const EntityFundingRequest = "funding_request"

// Actions recorded against funding requests.
const (
	ActionArchived          = "archived"
	ActionStatusChanged     = "status_changed"
	ActionFunded            = "funded"
	ActionForceSigned       = "force_signed"
	ActionContractGenerated = "contract_generated"
	ActionContractSent      = "contract_sent"
	ActionContractSigned    = "contract_signed"
	ActionUpdated           = "updated"
	ActionDeleted           = "deleted"
	ActionDocumentsAttached = "documents_attached"
)

const integrationLevelWarning = "warning"

// Entry is one audit record before persistence.
type Entry struct {
	CompanyID uuid.UUID
	ActorID   *uuid.UUID
	Entity    string
	EntityID  uuid.UUID
	Action    string
	Data      map[string]any
}

type dispatcher interface {
	Dispatch(ctx context.Context, task sideeffects.Task) bool
}

// Recorder writes audit entries off the request path.
type Recorder struct {
	repo       Repository
	dispatcher dispatcher
	logg       *logger.Logger
}

// NewRecorder wires the audit recorder.
func NewRecorder(repo Repository, dispatcher dispatcher, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("side effect dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Recorder{repo: repo, dispatcher: dispatcher, logg: logg}, nil
}

// Record queues entry for persistence. It never fails the caller.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	row := &models.AuditLog{
		CompanyID: entry.CompanyID,
		ActorID:   entry.ActorID,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Action:    entry.Action,
		Data:      dbtypes.JSONMap(entry.Data),
	}
	r.dispatcher.Dispatch(ctx, sideeffects.Task{
		Kind: "audit." + entry.Action,
		Run: func(ctx context.Context) error {
			return r.repo.Create(ctx, row)
		},
	})
}

// IntegrationWarning logs a provider failure and stores it as an integration
// event. The row write is best-effort.
func (r *Recorder) IntegrationWarning(ctx context.Context, companyID uuid.UUID, provider, message string) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"event":      "integration.warning",
		"company_id": companyID.String(),
		"provider":   provider,
		"raw_error":  message,
	})
	r.logg.Warn(logCtx, "integration warning")

	event := &models.IntegrationEvent{
		Provider: provider,
		Level:    integrationLevelWarning,
		Message:  message,
	}
	if companyID != uuid.Nil {
		id := companyID
		event.CompanyID = &id
	}
	r.dispatcher.Dispatch(ctx, sideeffects.Task{
		Kind: "integration_event",
		Run: func(ctx context.Context) error {
			return r.repo.CreateIntegrationEvent(ctx, event)
		},
	})
}
