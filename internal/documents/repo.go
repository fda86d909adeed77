package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/enums"
)

// Repository persists request documents. Every query is keyed by company and request.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, doc *models.Document) error
	ListForRequest(ctx context.Context, companyID, requestID uuid.UUID) ([]models.Document, error)
	LatestContract(ctx context.Context, companyID, requestID uuid.UUID) (*models.Document, error)
	LatestByProvider(ctx context.Context, companyID, requestID uuid.UUID, provider enums.DocumentProvider) (*models.Document, error)
	FindByEnvelopeID(ctx context.Context, envelopeID string) (*models.Document, error)
	UpdateStatus(ctx context.Context, companyID, documentID uuid.UUID, status enums.DocumentStatus) (bool, error)
	SetFilePath(ctx context.Context, companyID, documentID uuid.UUID, path string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a documents repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *repositoryImpl) ListForRequest(ctx context.Context, companyID, requestID uuid.UUID) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND request_id = ?", companyID, requestID).
		Order("created_at DESC, id DESC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// LatestContract returns the most recent contract document, or nil.
func (r *repositoryImpl) LatestContract(ctx context.Context, companyID, requestID uuid.UUID) (*models.Document, error) {
	return r.latest(ctx, r.db.WithContext(ctx).
		Where("company_id = ? AND request_id = ? AND type = ?", companyID, requestID, enums.DocumentTypeContract))
}

// LatestByProvider returns the most recent document held by provider, or nil.
func (r *repositoryImpl) LatestByProvider(ctx context.Context, companyID, requestID uuid.UUID, provider enums.DocumentProvider) (*models.Document, error) {
	return r.latest(ctx, r.db.WithContext(ctx).
		Where("company_id = ? AND request_id = ? AND provider = ?", companyID, requestID, provider))
}

func (r *repositoryImpl) latest(_ context.Context, query *gorm.DB) (*models.Document, error) {
	var doc models.Document
	err := query.Order("created_at DESC, id DESC").Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByEnvelopeID resolves a provider callback to its document, or nil.
func (r *repositoryImpl) FindByEnvelopeID(ctx context.Context, envelopeID string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("provider_envelope_id = ?", envelopeID).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateStatus reports whether a row matched.
func (r *repositoryImpl) UpdateStatus(ctx context.Context, companyID, documentID uuid.UUID, status enums.DocumentStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND company_id = ?", documentID, companyID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) SetFilePath(ctx context.Context, companyID, documentID uuid.UUID, path string) error {
	return r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND company_id = ?", documentID, companyID).
		Updates(map[string]any{"file_path": path, "updated_at": time.Now().UTC()}).Error
}
