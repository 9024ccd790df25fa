package app

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAdminDisabled indicates that no admin token hash is configured.
	ErrAdminDisabled = errors.New("admin endpoints disabled")
	// ErrInvalidCredentials indicates that the provided admin token was incorrect.
	ErrInvalidCredentials = errors.New("invalid admin token")
)

// AdminAuth guards the webhook management endpoints and verifies the shared
// secret MAX attaches to webhook deliveries.
type AdminAuth struct {
	tokenHash     []byte
	webhookSecret string
}

// NewAdminAuth creates an AdminAuth. An empty tokenHash disables admin
// access; an empty webhookSecret accepts every delivery.
func NewAdminAuth(tokenHash, webhookSecret string) *AdminAuth {
	a := &AdminAuth{webhookSecret: webhookSecret}
	if tokenHash != "" {
		a.tokenHash = []byte(tokenHash)
	}
	return a
}

// HashToken returns the bcrypt hash to configure as ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", &ValidationError{Field: "token", Reason: "must not be empty"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdmin checks a presented admin token.
func (a *AdminAuth) VerifyAdmin(token string) error {
	if len(a.tokenHash) == 0 {
		return ErrAdminDisabled
	}
	if token == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// VerifyWebhookSecret reports whether a delivery carries the configured secret.
func (a *AdminAuth) VerifyWebhookSecret(presented string) bool {
	if a.webhookSecret == "" {
		return true
	}
	return ConstantTimeCompare(presented, a.webhookSecret)
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
