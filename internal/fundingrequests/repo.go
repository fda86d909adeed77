package fundingrequests

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/enums"
	"github.com/angelmondragon/factoring-portal/pkg/pagination"
)

// Repository persists funding requests. Every predicate carries both the
// company id and the request id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.FundingRequest) error
	Get(ctx context.Context, companyID, requestID uuid.UUID) (*models.FundingRequest, error)
	Exists(ctx context.Context, companyID, requestID uuid.UUID) (bool, error)
	List(ctx context.Context, params listParams) ([]models.FundingRequest, error)
	UpdateGuarded(ctx context.Context, companyID, requestID uuid.UUID, version int, fields map[string]any) (int64, error)
	Delete(ctx context.Context, companyID, requestID uuid.UUID) (int64, error)
	CountByStatus(ctx context.Context, companyID uuid.UUID) (map[enums.FundingRequestStatus]int64, error)
}

type listParams struct {
	CompanyID       uuid.UUID
	Status          *enums.FundingRequestStatus
	IncludeArchived bool
	Limit           int
	Cursor          *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a funding request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, req *models.FundingRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Version == 0 {
		req.Version = 1
	}
	if req.Status == "" {
		req.Status = enums.FundingRequestStatusReview
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	return r.db.WithContext(ctx).Create(req).Error
}

// Get returns the request, or nil when it does not exist in the company.
func (r *repositoryImpl) Get(ctx context.Context, companyID, requestID uuid.UUID) (*models.FundingRequest, error) {
	var req models.FundingRequest
	err := r.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", requestID, companyID).
		Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repositoryImpl) Exists(ctx context.Context, companyID, requestID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FundingRequest{}).
		Where("id = ? AND company_id = ?", requestID, companyID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns up to params.Limit rows, newest first.
func (r *repositoryImpl) List(ctx context.Context, params listParams) ([]models.FundingRequest, error) {
	query := r.db.WithContext(ctx).
		Model(&models.FundingRequest{}).
		Where("company_id = ?", params.CompanyID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if !params.IncludeArchived {
		query = query.Where("archived_at IS NULL")
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.FundingRequest
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateGuarded applies fields only if the row still carries version, and
// bumps the version. It returns the number of rows changed.
func (r *repositoryImpl) UpdateGuarded(ctx context.Context, companyID, requestID uuid.UUID, version int, fields map[string]any) (int64, error) {
	updates := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&models.FundingRequest{}).
		Where("id = ? AND company_id = ? AND version = ?", requestID, companyID, version).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, companyID, requestID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", requestID, companyID).
		Delete(&models.FundingRequest{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) CountByStatus(ctx context.Context, companyID uuid.UUID) (map[enums.FundingRequestStatus]int64, error) {
	var rows []struct {
		Status enums.FundingRequestStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.FundingRequest{}).
		Select("status, COUNT(*) AS count").
		Where("company_id = ?", companyID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.FundingRequestStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
