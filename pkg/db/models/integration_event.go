package models

import (
	"time"

	"github.com/google/uuid"
)

// IntegrationEvent records a warning raised while talking to a third-party provider.
type IntegrationEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID *uuid.UUID `gorm:"column:company_id;type:uuid"`
	Provider  string     `gorm:"column:provider;type:text;not null"`
	Level     string     `gorm:"column:level;type:text;not null"`
	Message   string     `gorm:"column:message;type:text;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
