package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:    AppConfig{Env: "local", Port: 8080, PublicURL: "https://crm.example.com"},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "crm"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret"},
		OpenAI: OpenAIConfig{APIKey: "sk-test"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "crm"
	c.Auth.JWTAudience = "crm-api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.OpenAI.ChatModel != "gpt-4o-mini" || c.OpenAI.TranscribeModel != "whisper-1" {
		t.Fatalf("expected model defaults, got %q %q", c.OpenAI.ChatModel, c.OpenAI.TranscribeModel)
	}
	if c.Ingest.Workers != 4 {
		t.Fatalf("expected default worker count, got %d", c.Ingest.Workers)
	}
	if c.Ingest.SyncLookback != 7*24*time.Hour {
		t.Fatalf("expected 7 day lookback default, got %v", c.Ingest.SyncLookback)
	}
}

func TestRecordingCallbackURL(t *testing.T) {
	c := validBase()
	if got := c.RecordingCallbackURL(); got != "https://crm.example.com/webhooks/twilio/recording" {
		t.Fatalf("unexpected callback url: %q", got)
	}
}
