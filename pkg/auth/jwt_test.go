package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestJWTValidator_RoundTrip(t *testing.T) {
	v := NewJWTValidator([]byte("secret-secret-secret"), "token-node")

	token, err := v.IssueToken("operator", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	claims, err := v.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.Subject != "operator" {
		t.Fatalf("expected subject operator, got %q", claims.Subject)
	}
}

func TestJWTValidator_RejectsWrongSecret(t *testing.T) {
	issuer := NewJWTValidator([]byte("secret-one"), "")
	verifier := NewJWTValidator([]byte("secret-two"), "")

	token, err := issuer.IssueToken("operator", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}
	if _, err := verifier.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTValidator_RejectsWrongIssuer(t *testing.T) {
	a := NewJWTValidator([]byte("secret"), "issuer-a")
	b := NewJWTValidator([]byte("secret"), "issuer-b")

	token, err := a.IssueToken("operator", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestJWTValidator_RejectsExpired(t *testing.T) {
	v := NewJWTValidator([]byte("secret"), "")
	token, err := v.IssueToken("operator", -time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}
	if _, err := v.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestMiddleware(t *testing.T) {
	v := NewJWTValidator([]byte("secret"), "")
	var seen string
	h := Middleware(v, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	token, err := v.IssueToken("operator", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if seen != "operator" {
		t.Fatalf("expected subject operator, got %q", seen)
	}
}
