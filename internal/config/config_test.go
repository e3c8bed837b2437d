package config

import (
	"testing"
	"time"
)

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func validBase(env string) Config {
	return Config{
		App:   AppConfig{Env: env, Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callbridge", SSLMode: "disable"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ProductionRequiresProviderSecrets(t *testing.T) {
	c := validBase("production")
	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "callbridge"
	c.Auth.JWTAudience = "callbridge-api"
	c.Session.VerifyURL = "https://sessions.internal/verify"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without webhook secrets")
	}

	c.Providers.RetellWebhookSecret = "r"
	c.Providers.VapiWebhookSecret = "v"
	c.Providers.LiveKitWebhookToken = "l"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase("local")
	c.DB.SSLMode = ""
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_DefaultsTimeouts(t *testing.T) {
	c := validBase("local")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Enrich.Timeout != 30*time.Second {
		t.Fatalf("expected enrich timeout default, got %v", c.Enrich.Timeout)
	}
	if c.Session.Timeout != 5*time.Second {
		t.Fatalf("expected session timeout default, got %v", c.Session.Timeout)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected access ttl default, got %v", c.Auth.AccessTokenTTL)
	}
}
