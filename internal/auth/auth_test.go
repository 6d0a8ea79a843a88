package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticateRequestStaticToken(t *testing.T) {
	svc := NewService("secret-token", nil)

	if _, err := svc.AuthenticateRequest(""); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := svc.AuthenticateRequest("Bearer wrong"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	subject, err := svc.AuthenticateRequest("Bearer secret-token")
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if subject == nil || subject.Name == "" {
		t.Fatalf("unexpected subject: %+v", subject)
	}
}

func TestAuthenticateRequestDisabled(t *testing.T) {
	svc := NewService("", nil)
	if svc.Mode() != ModeDisabled {
		t.Fatalf("empty token should disable auth, mode = %s", svc.Mode())
	}
	if _, err := svc.AuthenticateRequest(""); err != nil {
		t.Fatalf("disabled mode should accept anything: %v", err)
	}
}

func TestMiddlewareRejectsAndInjectsSubject(t *testing.T) {
	svc := NewService("secret-token", nil)
	var seen *Subject
	handler := svc.Middleware(MiddlewareConfig{AuditEvent: "test"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = SubjectFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if seen == nil {
		t.Fatal("subject missing from request context")
	}
}
