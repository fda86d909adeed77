package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/internal/authz"
)

type contextKey string

const (
	ctxActor contextKey = "actor"
	ctxToken contextKey = "access_token"
	ctxTrace contextKey = "request_trace"
)

// TokenInfo identifies the access token that authenticated the request.
type TokenInfo struct {
	ID        string
	ExpiresAt time.Time
}

// ActorFromContext returns the caller identity seeded by Auth and CompanyAccess.
func ActorFromContext(ctx context.Context) (authz.Actor, bool) {
	if ctx == nil {
		return authz.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(authz.Actor)
	return actor, ok
}

// WithActor injects the caller identity into the context and notes it on the
// request trace.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if trace := traceFromContext(ctx); trace != nil {
		trace.note(actor)
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func TokenFromContext(ctx context.Context) (TokenInfo, bool) {
	if ctx == nil {
		return TokenInfo{}, false
	}
	info, ok := ctx.Value(ctxToken).(TokenInfo)
	return info, ok
}

func WithToken(ctx context.Context, info TokenInfo) context.Context {
	return context.WithValue(ctx, ctxToken, info)
}

func userIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.UserID.String()
}

func companyIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.CompanyID == uuid.Nil {
		return ""
	}
	return actor.CompanyID.String()
}
