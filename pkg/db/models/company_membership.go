package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/pkg/enums"
)

// CompanyMembership links a user with a company and captures their role/status.
type CompanyMembership struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID uuid.UUID              `gorm:"column:company_id;type:uuid;not null"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	Role      enums.MemberRole       `gorm:"column:role;type:member_role;not null"`
	Status    enums.MembershipStatus `gorm:"column:status;type:membership_status;not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
