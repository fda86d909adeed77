package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/angelmondragon/factoring-portal/pkg/redis"
)

// minRevocationTTL keeps a denylist entry alive for tokens that are about to expire.
const minRevocationTTL = time.Minute

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

type sessionKeyer interface {
	RevokedTokenKey(tokenID string) string
}

// Manager tracks access tokens revoked before their natural expiry (logout).
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	now   func() time.Time
}

// RevocationChecker exposes the read-only surface needed by middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client, now: time.Now}, nil
}

// Revoke denylists tokenID until expiresAt.
func (m *Manager) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if strings.TrimSpace(tokenID) == "" {
		return fmt.Errorf("token id is required")
	}
	ttl := expiresAt.Sub(m.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	return m.store.Set(ctx, m.keyer.RevokedTokenKey(tokenID), "1", ttl)
}

// IsRevoked reports whether tokenID was revoked. Tokens without an id cannot be revoked.
func (m *Manager) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if strings.TrimSpace(tokenID) == "" {
		return false, nil
	}
	return m.store.Exists(ctx, m.keyer.RevokedTokenKey(tokenID))
}
