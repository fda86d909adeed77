package fundingrequests

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/factoring-portal/internal/audit"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/internal/contracts"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
	"github.com/angelmondragon/factoring-portal/pkg/pandadoc"
)

const (
	providerPandaDoc = "pandadoc"

	sendSubject = "Your factoring agreement is ready to sign"
	sendMessage = "Please review and sign the attached factoring agreement."
)

// placeholderPDF is stored for contracts signed outside the provider.
var placeholderPDF = []byte("%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n%%EOF\n")

func (s *service) GenerateContract(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.Document, error) {
	if err := actor.Require(authz.LevelStaffOnly); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}

	contract, err := s.generator.Generate(ctx, contracts.Input{CompanyID: req.CompanyID, Request: *req})
	if err != nil {
		s.audit.IntegrationWarning(ctx, req.CompanyID, providerPandaDoc, err.Error())

		var genErr *contracts.GenerationError
		if errors.As(err, &genErr) {
			return nil, pkgerrors.NewWithStatus(pkgerrors.Code(genErr.Code), genErr.Status, generationMessage(genErr.Code)).
				WithCause(err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "contract generation failed")
	}

	envelope := contract.EnvelopeID
	doc := &models.Document{
		ID:                 uuid.New(),
		CompanyID:          req.CompanyID,
		RequestID:          req.ID,
		Type:               enums.DocumentTypeContract,
		Status:             enums.DocumentStatusDraft,
		Provider:           enums.DocumentProviderPandaDoc,
		ProviderEnvelopeID: &envelope,
		FileName:           contract.Name,
		ContentType:        "application/pdf",
		CreatedBy:          actorRef(actor),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store contract document")
	}

	s.record(ctx, actor, req, audit.ActionContractGenerated, map[string]any{
		"document_id": doc.ID.String(),
		"envelope_id": envelope,
	})
	return doc, nil
}

func (s *service) SendContract(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.Document, error) {
	if err := actor.Require(authz.LevelStaffOnly); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.LatestByProvider(ctx, req.CompanyID, req.ID, enums.DocumentProviderPandaDoc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract document")
	}
	if doc == nil || doc.ProviderEnvelopeID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDocumentNotFound, "no contract document for request")
	}

	if err := s.provider.SendDocument(ctx, *doc.ProviderEnvelopeID, sendSubject, sendMessage); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, err.Error())
	}

	if _, err := s.documents.UpdateStatus(ctx, doc.CompanyID, doc.ID, enums.DocumentStatusSent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark contract sent")
	}
	doc.Status = enums.DocumentStatusSent

	s.record(ctx, actor, req, audit.ActionContractSent, map[string]any{
		"document_id": doc.ID.String(),
	})
	s.notify(ctx, req, enums.NotificationTypeContract, "Contract ready to sign",
		"Your factoring agreement has been sent for signature.")
	return doc, nil
}

// ContractLink returns the hosted viewer for staff and a signing session
// for members.
func (s *service) ContractLink(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*ContractLink, error) {
	if err := actor.Require(authz.LevelActiveMember); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.LatestContract(ctx, req.CompanyID, req.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract document")
	}
	if doc == nil || doc.ProviderEnvelopeID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDocumentNotFound, "no contract document for request")
	}

	if actor.IsStaff {
		url := pandadoc.ViewerURL(s.cfg.ViewerURLTemplate, *doc.ProviderEnvelopeID)
		if url == "" {
			return nil, pkgerrors.New(pkgerrors.CodeUnprocessable, "contract viewer is not configured")
		}
		return &ContractLink{URL: url, Kind: LinkKindViewer}, nil
	}

	email := strings.TrimSpace(actor.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "caller email required for signing link")
	}
	url, err := s.provider.CreateSessionLink(ctx, *doc.ProviderEnvelopeID, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, err.Error())
	}
	return &ContractLink{URL: url, Kind: LinkKindSession}, nil
}

func (s *service) ForceSign(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (*models.FundingRequest, error) {
	if err := actor.Require(authz.LevelStaffOnly); err != nil {
		return nil, err
	}
	if !s.cfg.ForceSignEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeForbiddenInEnv, "force-sign is disabled in this environment")
	}

	var (
		updated *models.FundingRequest
		doc     *models.Document
		from    enums.FundingRequestStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		docs := s.documents.WithTx(tx)

		current, err := s.load(ctx, repo, actor, requestID)
		if err != nil {
			return err
		}
		from = current.Status
		if !canForceSign(from) {
			return invalidTransition(from, enums.FundingRequestStatusSigned)
		}

		doc, err = docs.LatestContract(ctx, current.CompanyID, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract document")
		}
		if doc == nil {
			return pkgerrors.New(pkgerrors.CodeDocumentNotFound, "no contract document for request")
		}
		if from == enums.FundingRequestStatusSigned {
			updated = current
			return nil
		}

		if _, err := docs.UpdateStatus(ctx, doc.CompanyID, doc.ID, enums.DocumentStatusSigned); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark contract signed")
		}
		updated, err = s.applyGuarded(ctx, repo, current, map[string]any{
			"status": enums.FundingRequestStatusSigned,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if from == enums.FundingRequestStatusSigned {
		return updated, nil
	}

	s.ensurePlaceholder(ctx, doc)
	s.record(ctx, actor, updated, audit.ActionForceSigned, map[string]any{
		"document_id": doc.ID.String(),
		"from_status": string(from),
	})
	return updated, nil
}

// ensurePlaceholder stores a stand-in contract file when none exists.
// Storage failures are logged and otherwise ignored.
func (s *service) ensurePlaceholder(ctx context.Context, doc *models.Document) {
	if s.files == nil {
		return
	}
	object := contractObjectPath(doc)
	if doc.FilePath != nil && *doc.FilePath != "" {
		object = *doc.FilePath
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"company_id":  doc.CompanyID.String(),
		"document_id": doc.ID.String(),
		"object":      object,
	})

	exists, err := s.files.Exists(ctx, object)
	if err != nil {
		s.logg.Warn(logCtx, fmt.Sprintf("placeholder lookup failed: %v", err))
		return
	}
	if !exists {
		if err := s.files.Upload(ctx, object, "application/pdf", bytes.NewReader(placeholderPDF)); err != nil {
			s.logg.Warn(logCtx, fmt.Sprintf("placeholder upload failed: %v", err))
			return
		}
	}
	if doc.FilePath == nil {
		if err := s.documents.SetFilePath(ctx, doc.CompanyID, doc.ID, object); err != nil {
			s.logg.Warn(logCtx, fmt.Sprintf("placeholder path not recorded: %v", err))
		}
	}
}

// MarkSigned applies a provider completion callback. It reports false when
// the envelope is unknown.
func (s *service) MarkSigned(ctx context.Context, envelopeID string) (bool, error) {
	envelopeID = strings.TrimSpace(envelopeID)
	if envelopeID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "envelope id required")
	}
	doc, err := s.documents.FindByEnvelopeID(ctx, envelopeID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find contract document")
	}
	if doc == nil {
		return false, nil
	}

	var signed *models.FundingRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.documents.WithTx(tx).UpdateStatus(ctx, doc.CompanyID, doc.ID, enums.DocumentStatusSigned); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark contract signed")
		}
		current, err := repo.Get(ctx, doc.CompanyID, doc.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load funding request")
		}
		if current == nil || current.Status != enums.FundingRequestStatusAccepted {
			return nil
		}
		signed, err = s.applyGuarded(ctx, repo, current, map[string]any{
			"status": enums.FundingRequestStatusSigned,
		})
		return err
	})
	if err != nil {
		return false, err
	}

	if signed != nil {
		s.record(ctx, authz.Actor{}, signed, audit.ActionContractSigned, map[string]any{
			"document_id": doc.ID.String(),
			"envelope_id": envelopeID,
		})
		s.notify(ctx, signed, enums.NotificationTypeContract, "Contract signed",
			"Your factoring agreement has been signed.")
	}
	return true, nil
}

func generationMessage(code string) string {
	switch code {
	case contracts.CodeMissingPayer:
		return "company has no payer email"
	case contracts.CodeCompanyNotFound:
		return "company not found"
	case contracts.CodeTemplateNotConfigured:
		return "contract template is not configured"
	case contracts.CodeProviderNotConfigured:
		return "contract provider is not configured"
	case contracts.CodeProviderRejected:
		return "contract provider rejected the request"
	default:
		return "contract generation failed"
	}
}

func contractObjectPath(doc *models.Document) string {
	return fmt.Sprintf("companies/%s/requests/%s/contract/%s.pdf", doc.CompanyID, doc.RequestID, doc.ID)
}

func actorRef(actor authz.Actor) *uuid.UUID {
	if actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}
