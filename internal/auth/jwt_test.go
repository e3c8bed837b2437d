package auth

import (
	"testing"
	"time"

	"callbridge/internal/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "callbridge-test",
		JWTAudience:     "callbridge-api",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m, err := NewManager(testAuthConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pair, err := m.IssuePair(now, "acct-123")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatalf("access and refresh tokens must differ")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	if claims.AccountID != "acct-123" {
		t.Fatalf("AccountID = %q, want acct-123", claims.AccountID)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("TokenType = %q, want access", claims.TokenType)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(testAuthConfig())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pair, err := m.IssuePair(now, "acct-123")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.Verify(pair.RefreshToken, TokenTypeAccess, now.Add(time.Minute)); err == nil {
		t.Fatalf("expected refresh token rejected as access")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(testAuthConfig())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pair, err := m.IssuePair(now, "acct-123")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	// Well past the 15m access TTL plus leeway.
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expired token rejected")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m1, _ := NewManager(testAuthConfig())

	other := testAuthConfig()
	other.JWTSecret = "different-secret"
	m2, _ := NewManager(other)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pair, err := m1.IssuePair(now, "acct-123")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m2.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute)); err == nil {
		t.Fatalf("expected signature mismatch rejected")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWTSecret = ""
	if _, err := NewManager(cfg); err == nil {
		t.Fatalf("expected error without secret")
	}
}
