package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/factoring-portal/pkg/enums"
)

// FundingRequest is one financing ask owned by a company.
// ArchivedAt and ArchivedBy are either both nil or both set.
type FundingRequest struct {
	ID                    uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID             uuid.UUID                  `gorm:"column:company_id;type:uuid;not null"`
	RequestedAmount       decimal.Decimal            `gorm:"column:requested_amount;type:numeric(18,2);not null"`
	Currency              string                     `gorm:"column:currency;type:char(3);not null;default:'USD'"`
	InvoiceID             *string                    `gorm:"column:invoice_id;type:text"`
	Status                enums.FundingRequestStatus `gorm:"column:status;type:funding_request_status;not null;default:'review'"`
	ArchivedAt            *time.Time                 `gorm:"column:archived_at;type:timestamptz"`
	ArchivedBy            *uuid.UUID                 `gorm:"column:archived_by;type:uuid"`
	DefaultDiscountRate   *decimal.Decimal           `gorm:"column:default_discount_rate;type:numeric(7,4)"`
	DefaultOperationDays  *int                       `gorm:"column:default_operation_days"`
	DefaultAdvancePct     *decimal.Decimal           `gorm:"column:default_advance_pct;type:numeric(5,2)"`
	DefaultSettingsSource *string                    `gorm:"column:default_settings_source;type:text"`
	FilePath              *string                    `gorm:"column:file_path;type:text"`
	Version               int                        `gorm:"column:version;not null;default:1"`
	CreatedBy             *uuid.UUID                 `gorm:"column:created_by;type:uuid"`
	CreatedAt             time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsArchived reports whether the archive pair is set.
func (f FundingRequest) IsArchived() bool {
	return f.ArchivedAt != nil && f.ArchivedBy != nil
}
