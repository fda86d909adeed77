package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile mirrors the identity provider's user with portal-level flags.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"type:text;not null;uniqueIndex"`
	FullName  string    `gorm:"column:full_name;type:text;not null;default:''"`
	IsStaff   bool      `gorm:"column:is_staff;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
