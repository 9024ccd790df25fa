package app

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAdminAuth_VerifyAdmin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	auth := NewAdminAuth(string(hash), "")

	if err := auth.VerifyAdmin("s3cret"); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if err := auth.VerifyAdmin("wrong"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := auth.VerifyAdmin(""); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for empty token, got %v", err)
	}
}

func TestAdminAuth_Disabled(t *testing.T) {
	auth := NewAdminAuth("", "")
	if err := auth.VerifyAdmin("anything"); err != ErrAdminDisabled {
		t.Errorf("expected ErrAdminDisabled, got %v", err)
	}
}

func TestAdminAuth_WebhookSecret(t *testing.T) {
	open := NewAdminAuth("", "")
	if !open.VerifyWebhookSecret("") {
		t.Error("no configured secret should accept deliveries")
	}

	guarded := NewAdminAuth("", "hook-secret")
	if !guarded.VerifyWebhookSecret("hook-secret") {
		t.Error("matching secret rejected")
	}
	if guarded.VerifyWebhookSecret("other") || guarded.VerifyWebhookSecret("") {
		t.Error("mismatching secret accepted")
	}
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("token")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	if err := NewAdminAuth(hash, "").VerifyAdmin("token"); err != nil {
		t.Fatalf("hash did not verify: %v", err)
	}

	var vErr *ValidationError
	if _, err := HashToken(""); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare("abc", "abc") {
		t.Error("equal strings compared unequal")
	}
	if ConstantTimeCompare("abc", "abd") || ConstantTimeCompare("abc", "ab") {
		t.Error("unequal strings compared equal")
	}
}
