package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

func TestRequestIDKeepsValidHeader(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "portal-7f3a.retry_2")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if seen != "portal-7f3a.retry_2" {
		t.Fatalf("expected caller id got %q", seen)
	}
	if got := resp.Header().Get(requestIDHeader); got != seen {
		t.Fatalf("expected echoed id %q got %q", seen, got)
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	for _, raw := range []string{"bad id\nX-Injected: 1", strings.Repeat("a", maxRequestIDLen+1), "<script>"} {
		var seen string
		handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, raw)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if _, err := uuid.Parse(seen); err != nil {
			t.Fatalf("expected generated uuid for %q, got %q", raw, seen)
		}
	}
}

func TestRecovererLogsTracedIdentity(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	userID, companyID := uuid.New(), uuid.New()

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WithActor(r.Context(), authz.Actor{UserID: userID, CompanyID: companyID, IsStaff: true})
		panic("ledger exploded")
	})
	handler := RequestID(logg)(Recoverer(logg)(panicking))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/companies/x/requests/y/fund", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"internal_error"`) {
		t.Fatalf("expected internal_error envelope, got %s", resp.Body.String())
	}
	if strings.Contains(resp.Body.String(), "ledger exploded") {
		t.Fatal("panic value leaked to the client")
	}
	for _, field := range []string{
		`"panic.recovered"`,
		`"request_id":"req-42"`,
		`"user_id":"` + userID.String() + `"`,
		`"company_id":"` + companyID.String() + `"`,
		`"is_staff":true`,
	} {
		if !strings.Contains(buf.String(), field) {
			t.Fatalf("expected %s in log, got %s", field, buf.String())
		}
	}
}

func TestRecovererRepanicsAbortHandler(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
