package fundingrequests

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/factoring-portal/internal/audit"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/pkg/db"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
)

const maxUploadsPerRequest = 10

var allowedSupportTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"text/csv",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type sniffedUpload struct {
	name        string
	contentType string
	data        []byte
}

func (s *service) AttachDocuments(ctx context.Context, actor authz.Actor, requestID uuid.UUID, uploads []Upload) ([]models.Document, error) {
	if err := actor.Require(authz.LevelActiveMember); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required")
	}
	if len(uploads) > maxUploadsPerRequest {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d files per upload", maxUploadsPerRequest))
	}
	if s.files == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "file storage is not configured")
	}
	req, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}

	sniffed := make([]sniffedUpload, 0, len(uploads))
	for _, upload := range uploads {
		item, err := s.sniff(upload)
		if err != nil {
			return nil, err
		}
		sniffed = append(sniffed, item)
	}

	docs := make([]models.Document, 0, len(sniffed))
	stored := make([]string, 0, len(sniffed))
	for _, item := range sniffed {
		docID := uuid.New()
		object := supportObjectPath(req, docID, item.name)
		if err := s.files.Upload(ctx, object, item.contentType, bytes.NewReader(item.data)); err != nil {
			s.purge(ctx, req.CompanyID, stored)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store support document")
		}
		stored = append(stored, object)

		path := object
		docs = append(docs, models.Document{
			ID:          docID,
			CompanyID:   req.CompanyID,
			RequestID:   req.ID,
			Type:        enums.DocumentTypeRequestSupport,
			Status:      enums.DocumentStatusUploaded,
			Provider:    enums.DocumentProviderStorage,
			FilePath:    &path,
			FileName:    item.name,
			ContentType: item.contentType,
			CreatedBy:   actorRef(actor),
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.documents.WithTx(tx)
		for i := range docs {
			if err := repo.Create(ctx, &docs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.purge(ctx, req.CompanyID, stored)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record support documents")
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID.String())
	}
	s.record(ctx, actor, req, audit.ActionDocumentsAttached, map[string]any{
		"document_ids": ids,
	})
	return docs, nil
}

func (s *service) sniff(upload Upload) (sniffedUpload, error) {
	name := cleanFileName(upload.FileName)
	if upload.Content == nil {
		return sniffedUpload{}, uploadRejected(name, "file is empty")
	}
	data, err := io.ReadAll(io.LimitReader(upload.Content, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return sniffedUpload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if len(data) == 0 {
		return sniffedUpload{}, uploadRejected(name, "file is empty")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return sniffedUpload{}, uploadRejected(name, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
	}

	detected := mimetype.Detect(data)
	for _, allowed := range allowedSupportTypes {
		if detected.Is(allowed) {
			return sniffedUpload{name: name, contentType: allowed, data: data}, nil
		}
	}
	return sniffedUpload{}, uploadRejected(name, fmt.Sprintf("unsupported file type %s", detected.String()))
}

func (s *service) Delete(ctx context.Context, actor authz.Actor, requestID uuid.UUID) error {
	if err := actor.Require(s.cfg.DeleteLevel); err != nil {
		return err
	}
	req, err := s.load(ctx, s.repo, actor, requestID)
	if err != nil {
		return err
	}
	docs, err := s.documents.ListForRequest(ctx, req.CompanyID, req.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list request documents")
	}

	objects := make([]string, 0, len(docs)+1)
	if req.FilePath != nil && *req.FilePath != "" {
		objects = append(objects, *req.FilePath)
	}
	for _, doc := range docs {
		if doc.FilePath != nil && *doc.FilePath != "" {
			objects = append(objects, *doc.FilePath)
		}
	}
	s.purge(ctx, req.CompanyID, objects)

	rows, err := s.repo.Delete(ctx, req.CompanyID, req.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "funding request is still referenced")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete funding request")
	}
	if rows == 0 {
		return notFound()
	}

	s.record(ctx, actor, req, audit.ActionDeleted, map[string]any{
		"status":        string(req.Status),
		"files_removed": len(objects),
	})
	return nil
}

// purge removes stored objects. Failures are logged, never returned.
func (s *service) purge(ctx context.Context, companyID uuid.UUID, objects []string) {
	if s.files == nil || len(objects) == 0 {
		return
	}
	var errs error
	for _, object := range objects {
		errs = multierr.Append(errs, s.files.Delete(ctx, object))
	}
	if errs != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"company_id": companyID.String(),
			"objects":    objects,
		})
		s.logg.Warn(logCtx, fmt.Sprintf("stored file cleanup incomplete: %v", errs))
	}
}

func supportObjectPath(req *models.FundingRequest, docID uuid.UUID, name string) string {
	return fmt.Sprintf("companies/%s/requests/%s/support/%s-%s", req.CompanyID, req.ID, docID, name)
}

func cleanFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, base)
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "upload"
	}
	if len(cleaned) > 128 {
		cleaned = cleaned[len(cleaned)-128:]
	}
	return cleaned
}

func uploadRejected(name, reason string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
		WithDetails(map[string]string{name: reason})
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}
