package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/factoring-portal/pkg/db/types"
)

// AuditLog is a write-once record of an action taken against an entity.
type AuditLog struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID uuid.UUID       `gorm:"column:company_id;type:uuid;not null"`
	ActorID   *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	Entity    string          `gorm:"column:entity;type:text;not null"`
	EntityID  uuid.UUID       `gorm:"column:entity_id;type:uuid;not null"`
	Action    string          `gorm:"column:action;type:text;not null"`
	Data      dbtypes.JSONMap `gorm:"column:data;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
