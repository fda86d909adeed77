package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 64
)

// requestTrace is shared by all middleware of a single request, so outer
// layers such as Recoverer see the identity resolved further in.
type requestTrace struct {
	id        string
	userID    string
	companyID string
	isStaff   bool
}

func (t *requestTrace) note(actor authz.Actor) {
	if actor.UserID != uuid.Nil {
		t.userID = actor.UserID.String()
	}
	if actor.CompanyID != uuid.Nil {
		t.companyID = actor.CompanyID.String()
	}
	t.isStaff = actor.IsStaff
}

// fields returns the identity noted so far. request_id is already on the
// logger context.
func (t *requestTrace) fields() map[string]any {
	fields := map[string]any{}
	if t.userID != "" {
		fields["user_id"] = t.userID
		fields["is_staff"] = t.isStaff
	}
	if t.companyID != "" {
		fields["company_id"] = t.companyID
	}
	return fields
}

// RequestID accepts a caller supplied X-Request-Id when it is a short token
// and mints a UUID otherwise. The id is echoed on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := sanitizeRequestID(r.Header.Get(requestIDHeader))
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := context.WithValue(r.Context(), ctxTrace, &requestTrace{id: reqID})
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the id assigned by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if trace := traceFromContext(ctx); trace != nil {
		return trace.id
	}
	return ""
}

func traceFromContext(ctx context.Context) *requestTrace {
	if ctx == nil {
		return nil
	}
	trace, _ := ctx.Value(ctxTrace).(*requestTrace)
	return trace
}

func sanitizeRequestID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxRequestIDLen {
		return ""
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return ""
		}
	}
	return id
}
