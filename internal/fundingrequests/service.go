package fundingrequests

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/factoring-portal/internal/audit"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/internal/contracts"
	"github.com/angelmondragon/factoring-portal/internal/documents"
	"github.com/angelmondragon/factoring-portal/internal/notifications"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"github.com/angelmondragon/factoring-portal/pkg/pagination"
)

const defaultMaxUploadBytes = 25 << 20

// Service is the funding request lifecycle engine. Every operation takes the
// caller's resolved identity and re-checks permission before touching state.
type Service interface {
	Get(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error)
	List(ctx context.Context, actor authz.Actor, params ListParams) (*ListResult, error)
	Archive(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error)
	Deny(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error)
	Fund(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error)
	ForceSign(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error)
	GenerateContract(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.Document, error)
	SendContract(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.Document, error)
	ContractLink(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*ContractLink, error)
	AttachDocuments(ctx context.Context, actor authz.Actor, requestID uuid.UUID, uploads []Upload) ([]models.Document, error)
	Update(ctx context.Context, actor authz.Actor, requestID uuid.UUID, patch PatchRequest) (*models.FundingRequest, error)
	Delete(ctx context.Context, actor authz.Actor, requestID uuid.UUID) error
	MarkSigned(ctx context.Context, envelopeID string) (bool, error)
	Summary(ctx context.Context, actor authz.Actor, companyIDs []uuid.UUID) ([]CompanySummary, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type fileStore interface {
	Upload(ctx context.Context, object, contentType string, r io.Reader) error
	Exists(ctx context.Context, object string) (bool, error)
	Delete(ctx context.Context, object string) error
}

type contractProvider interface {
	SendDocument(ctx context.Context, documentID, subject, message string) error
	CreateSessionLink(ctx context.Context, documentID, email string) (string, error)
}

type auditor interface {
	Record(ctx context.Context, entry audit.Entry)
	IntegrationWarning(ctx context.Context, companyID uuid.UUID, provider, message string)
}

type notifier interface {
	Notify(ctx context.Context, msg notifications.Message)
}

// Config carries the policy knobs of the engine.
type Config struct {
	UpdateLevel       authz.Level
	DeleteLevel       authz.Level
	PermissiveFunding bool
	ForceSignEnabled  bool
	ViewerURLTemplate string
	MaxUploadBytes    int64
}

// ServiceParams wires the engine's collaborators.
type ServiceParams struct {
	Repo      Repository
	Documents documents.Repository
	Tx        txRunner
	Files     fileStore
	Generator contracts.Generator
	Provider  contractProvider
	Audit     auditor
	Notifier  notifier
	Logger    *logger.Logger
	Config    Config
	Clock     func() time.Time
}

type service struct {
	repo      Repository
	documents documents.Repository
	tx        txRunner
	files     fileStore
	generator contracts.Generator
	provider  contractProvider
	audit     auditor
	notifier  notifier
	logg      *logger.Logger
	cfg       Config
	now       func() time.Time
}

// NewService validates and wires dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("funding request repository required")
	case params.Documents == nil:
		return nil, fmt.Errorf("documents repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Generator == nil:
		return nil, fmt.Errorf("contract generator required")
	case params.Provider == nil:
		return nil, fmt.Errorf("contract provider required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit recorder required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}

	cfg := params.Config
	if cfg.UpdateLevel == "" {
		cfg.UpdateLevel = authz.LevelActiveMember
	}
	if cfg.DeleteLevel == "" {
		cfg.DeleteLevel = authz.LevelOwnerOnly
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &service{
		repo:      params.Repo,
		documents: params.Documents,
		tx:        params.Tx,
		files:     params.Files,
		generator: params.Generator,
		provider:  params.Provider,
		audit:     params.Audit,
		notifier:  params.Notifier,
		logg:      params.Logger,
		cfg:       cfg,
		now:       clock,
	}, nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error) {
	if err := actor.Require(authz.LevelActiveMember); err != nil {
		return nil, err
	}
	return s.load(ctx, s.repo, actor, requestID)
}

func (s *service) List(ctx context.Context, actor authz.Actor, params ListParams) (*ListResult, error) {
	if err := actor.Require(authz.LevelActiveMember); err != nil {
		return nil, err
	}
	if actor.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}

	query := listParams{
		CompanyID:       actor.CompanyID,
		IncludeArchived: params.IncludeArchived,
		Limit:           pagination.LimitWithBuffer(params.Limit),
	}
	if params.Status != "" {
		status, err := enums.ParseFundingRequestStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list funding requests")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(m models.FundingRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})

	items := make([]FundingRequestDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *ToDTO(&rows[i]))
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) Archive(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error) {
	if err := actor.Require(authz.LevelStaffOnly); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}
	if !canArchive(current.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "terminal requests cannot be archived").
			WithDetails(map[string]any{"status": current.Status})
	}

	now := s.now()
	updated, err := s.applyGuarded(ctx, s.repo, current, map[string]any{
		"archived_at": now,
		"archived_by": actor.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, updated, audit.ActionArchived, map[string]any{
		"archived_at": now.Format(time.RFC3339Nano),
	})
	return updated, nil
}

func (s *service) Deny(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error) {
	if err := actor.Require(authz.LevelStaffOnly); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}
	from := current.Status
	if !canDeny(from) {
		return nil, invalidTransition(from, enums.FundingRequestStatusCancelled)
	}

	updated, err := s.applyGuarded(ctx, s.repo, current, map[string]any{
		"status":      enums.FundingRequestStatusCancelled,
		"archived_at": nil,
		"archived_by": nil,
	})
	if err != nil {
		return nil, err
	}

	if from != enums.FundingRequestStatusCancelled {
		s.record(ctx, actor, updated, audit.ActionStatusChanged, map[string]any{
			"from_status": string(from),
			"to_status":   string(enums.FundingRequestStatusCancelled),
		})
		s.notify(ctx, updated, enums.NotificationTypeRequestUpdate, "Funding request declined",
			"Your funding request was declined.")
	}
	return updated, nil
}

func (s *service) Fund(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error) {
	if err := actor.Require(authz.LevelStaffOnly); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}
	if current.Status == enums.FundingRequestStatusFunded {
		return current, nil
	}
	from := current.Status
	if !canFund(from, s.cfg.PermissiveFunding) {
		return nil, invalidTransition(from, enums.FundingRequestStatusFunded)
	}

	updated, err := s.applyGuarded(ctx, s.repo, current, map[string]any{
		"status": enums.FundingRequestStatusFunded,
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, updated, enums.NotificationTypeFunding, "Funding request funded",
		fmt.Sprintf("Your request for %s %s has been funded.", updated.RequestedAmount.StringFixed(2), updated.Currency))
	s.record(ctx, actor, updated, audit.ActionFunded, map[string]any{
		"from_status": string(from),
	})
	return updated, nil
}

func (s *service) Update(ctx context.Context, actor authz.Actor, requestID uuid.UUID, patch PatchRequest) (*models.FundingRequest, error) {
	if err := actor.Require(s.cfg.UpdateLevel); err != nil {
		return nil, err
	}
	if patch.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	current, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "terminal requests cannot be edited").
			WithDetails(map[string]any{"status": current.Status})
	}
	if patch.Version != nil && *patch.Version != current.Version {
		return nil, staleVersion(current.Version)
	}

	fields := map[string]any{}
	changed := []string{}
	data := map[string]any{}

	if patch.RequestedAmount != nil {
		if !patch.RequestedAmount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"requested_amount": "must be greater than 0"})
		}
		fields["requested_amount"] = patch.RequestedAmount.Round(2)
		changed = append(changed, "requested_amount")
	}
	if patch.InvoiceID != nil {
		if invoice := trimmed(*patch.InvoiceID); invoice == "" {
			fields["invoice_id"] = nil
		} else {
			fields["invoice_id"] = invoice
		}
		changed = append(changed, "invoice_id")
	}
	if patch.Status != nil {
		to, err := enums.ParseFundingRequestStatus(*patch.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		if to != current.Status {
			if !canPatchTo(current.Status, to) {
				return nil, invalidTransition(current.Status, to)
			}
			fields["status"] = to
			changed = append(changed, "status")
			data["from_status"] = string(current.Status)
			data["to_status"] = string(to)
		}
	}
	if len(fields) == 0 {
		return current, nil
	}

	updated, err := s.applyGuarded(ctx, s.repo, current, fields)
	if err != nil {
		return nil, err
	}

	data["fields"] = changed
	s.record(ctx, actor, updated, audit.ActionUpdated, data)
	if _, ok := fields["status"]; ok {
		s.notify(ctx, updated, enums.NotificationTypeRequestUpdate, "Funding request updated",
			fmt.Sprintf("Your funding request moved to %s.", updated.Status))
	}
	return updated, nil
}

func (s *service) load(ctx context.Context, repo Repository, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error) {
	if actor.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	req, err := repo.Get(ctx, actor.CompanyID, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load funding request")
	}
	if req == nil {
		return nil, notFound()
	}
	return req, nil
}

// applyGuarded writes fields under the version guard. A zero-row result is
// resolved into not_found or a version conflict, never reported as success.
func (s *service) applyGuarded(ctx context.Context, repo Repository, current *models.FundingRequest, fields map[string]any) (*models.FundingRequest, error) {
	rows, err := repo.UpdateGuarded(ctx, current.CompanyID, current.ID, current.Version, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update funding request")
	}
	if rows == 0 {
		exists, err := repo.Exists(ctx, current.CompanyID, current.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check funding request")
		}
		if !exists {
			return nil, notFound()
		}
		return nil, staleVersion(current.Version)
	}

	updated, err := repo.Get(ctx, current.CompanyID, current.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload funding request")
	}
	if updated == nil {
		return nil, notFound()
	}
	return updated, nil
}

func (s *service) record(ctx context.Context, actor authz.Actor, req *models.FundingRequest, action string, data map[string]any) {
	var actorID *uuid.UUID
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		actorID = &id
	}
	s.audit.Record(ctx, audit.Entry{
		CompanyID: req.CompanyID,
		ActorID:   actorID,
		Entity:    audit.EntityFundingRequest,
		EntityID:  req.ID,
		Action:    action,
		Data:      data,
	})
}

func (s *service) notify(ctx context.Context, req *models.FundingRequest, kind enums.NotificationType, title, body string) {
	s.notifier.Notify(ctx, notifications.Message{
		CompanyID: req.CompanyID,
		Type:      kind,
		Title:     title,
		Body:      body,
		Link:      requestLink(req),
	})
}

func requestLink(req *models.FundingRequest) string {
	return fmt.Sprintf("/companies/%s/requests/%s", req.CompanyID, req.ID)
}

func notFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "funding request not found")
}

func staleVersion(current int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, "funding request was modified by another request").
		WithDetails(map[string]any{"current_version": current})
}
