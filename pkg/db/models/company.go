package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is the tenant that owns funding requests, memberships and documents.
type Company struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string    `gorm:"type:text;not null"`
	TaxID      *string   `gorm:"column:tax_id;type:text"`
	PayerEmail *string   `gorm:"column:payer_email;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
