package memberships

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
)

type store interface {
	GetMembership(ctx context.Context, userID, companyID uuid.UUID) (*models.CompanyMembership, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// Resolution is what the resolver learned about a caller for one company.
type Resolution struct {
	IsStaff    bool
	Membership *authz.Snapshot
}

// Resolver derives staff status and company membership on every call.
type Resolver struct {
	store      store
	backoffice map[string]struct{}
}

// NewResolver builds a resolver. backofficeEmails grants staff status by email.
func NewResolver(store store, backofficeEmails []string) (*Resolver, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "membership store required")
	}
	allow := make(map[string]struct{}, len(backofficeEmails))
	for _, email := range backofficeEmails {
		if normalized := normalizeEmail(email); normalized != "" {
			allow[normalized] = struct{}{}
		}
	}
	return &Resolver{store: store, backoffice: allow}, nil
}

// IsBackofficeEmail reports whether email is on the back-office allow-list.
func (r *Resolver) IsBackofficeEmail(email string) bool {
	_, ok := r.backoffice[normalizeEmail(email)]
	return ok
}

// Resolve looks up the caller's staff flag and membership. The company itself
// is not checked for existence: an unknown company yields a nil membership.
// A uuid.Nil company skips the membership lookup.
func (r *Resolver) Resolve(ctx context.Context, userID, companyID uuid.UUID) (Resolution, error) {
	var res Resolution

	profile, err := r.store.GetProfile(ctx, userID)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	if profile != nil {
		res.IsStaff = profile.IsStaff || r.IsBackofficeEmail(profile.Email)
	}

	if companyID == uuid.Nil {
		return res, nil
	}

	membership, err := r.store.GetMembership(ctx, userID, companyID)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if membership != nil {
		res.Membership = &authz.Snapshot{Role: membership.Role, Status: membership.Status}
	}
	return res, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
