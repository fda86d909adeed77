package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
)

// Level is the minimum relationship an actor needs with a company.
type Level string

const (
	LevelStaffOnly    Level = "staff_only"
	LevelActiveMember Level = "active_member"
	LevelOwnerOnly    Level = "owner_only"
)

// ParseLevel converts a configured value into a Level.
func ParseLevel(value string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(value))) {
	case LevelStaffOnly:
		return LevelStaffOnly, nil
	case LevelActiveMember:
		return LevelActiveMember, nil
	case LevelOwnerOnly:
		return LevelOwnerOnly, nil
	default:
		return "", fmt.Errorf("invalid permission level %q", value)
	}
}

// Snapshot is the caller's membership in the target company at request time.
type Snapshot struct {
	Role   enums.MemberRole
	Status enums.MembershipStatus
}

// Active reports whether the membership grants access.
func (s *Snapshot) Active() bool {
	return s != nil && s.Status == enums.MembershipStatusActive
}

// Allowed is the permission gate. It has no side effects.
func Allowed(isStaff bool, m *Snapshot, level Level) bool {
	if isStaff {
		return true
	}
	switch level {
	case LevelActiveMember:
		return m.Active()
	case LevelOwnerOnly:
		return m.Active() && m.Role == enums.MemberRoleOwner
	default:
		return false
	}
}

// Actor is the identity of the caller, resolved once per request and passed
// explicitly into every lifecycle operation.
type Actor struct {
	UserID     uuid.UUID
	Email      string
	IsStaff    bool
	CompanyID  uuid.UUID
	Membership *Snapshot
}

// Can applies the gate to the actor.
func (a Actor) Can(level Level) bool {
	return Allowed(a.IsStaff, a.Membership, level)
}

// Require returns a forbidden error when the actor does not meet level.
func (a Actor) Require(level Level) error {
	if a.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !a.Can(level) {
		return pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage(level))
	}
	return nil
}

func forbiddenMessage(level Level) string {
	switch level {
	case LevelStaffOnly:
		return "staff access required"
	case LevelOwnerOnly:
		return "company owner access required"
	default:
		return "active company membership required"
	}
}
