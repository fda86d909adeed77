package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/pkg/enums"
)

// Document is an uploaded file or e-signature envelope tied to a funding request.
type Document struct {
	ID                 uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID          uuid.UUID              `gorm:"column:company_id;type:uuid;not null"`
	RequestID          uuid.UUID              `gorm:"column:request_id;type:uuid;not null"`
	Type               enums.DocumentType     `gorm:"column:type;type:document_type;not null"`
	Status             enums.DocumentStatus   `gorm:"column:status;type:document_status;not null"`
	Provider           enums.DocumentProvider `gorm:"column:provider;type:document_provider;not null"`
	ProviderEnvelopeID *string                `gorm:"column:provider_envelope_id;type:text"`
	FilePath           *string                `gorm:"column:file_path;type:text"`
	FileName           string                 `gorm:"column:file_name;type:text;not null;default:''"`
	ContentType        string                 `gorm:"column:content_type;type:text;not null;default:''"`
	CreatedBy          *uuid.UUID             `gorm:"column:created_by;type:uuid"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
