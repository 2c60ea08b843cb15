package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Backend.BaseURL != "http://localhost:8081" {
		t.Fatalf("unexpected backend url: %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Temperature != 0.7 || cfg.Backend.TopP != 0.95 {
		t.Fatalf("unexpected sampling defaults: %+v", cfg.Backend)
	}
	if cfg.Backend.Retries != 2 {
		t.Fatalf("unexpected retries: %d", cfg.Backend.Retries)
	}
	if cfg.Context.MaxContextWindow != 4096 || cfg.Context.MaxTokens != 512 {
		t.Fatalf("unexpected context defaults: %+v", cfg.Context)
	}
	if cfg.Session.IdleTTL != 30*time.Minute {
		t.Fatalf("unexpected idle ttl: %v", cfg.Session.IdleTTL)
	}
}

func TestLoadPortForms(t *testing.T) {
	t.Setenv("PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}

	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
}

func TestLoadRejectsMinOverMax(t *testing.T) {
	t.Setenv("MIN_TOKENS", "600")
	t.Setenv("MAX_TOKENS", "500")

	_, err := Load()
	if err == nil {
		t.Fatal("expected invalid token limits error")
	}
	if !strings.Contains(err.Error(), "MIN_TOKENS") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoadRejectsMaxTokensOverWindow(t *testing.T) {
	t.Setenv("MAX_TOKENS", "8192")

	_, err := Load()
	if err == nil {
		t.Fatal("expected invalid token limits error")
	}
	if !strings.Contains(err.Error(), "MAX_CONTEXT_WINDOW") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoadRejectsReservesOverWindow(t *testing.T) {
	t.Setenv("SYSTEM_MESSAGE_RESERVE", "2000")
	t.Setenv("RESPONSE_RESERVE", "3000")

	_, err := Load()
	if err == nil {
		t.Fatal("expected reserve validation error")
	}
}

func TestLoadRejectsTinyMessageSpace(t *testing.T) {
	t.Setenv("MAX_CONTEXT_WINDOW", "700")
	t.Setenv("SYSTEM_MESSAGE_RESERVE", "300")
	t.Setenv("RESPONSE_RESERVE", "350")
	t.Setenv("MAX_TOKENS", "500")

	_, err := Load()
	if err == nil {
		t.Fatal("expected insufficient-space error")
	}
	if !strings.Contains(err.Error(), "insufficient space") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("TEMPERATURE", "warm")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid TEMPERATURE error")
	}
	t.Setenv("TEMPERATURE", "")

	t.Setenv("BACKEND_RETRIES", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid BACKEND_RETRIES error")
	}
	t.Setenv("BACKEND_RETRIES", "")

	t.Setenv("SESSION_IDLE_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid SESSION_IDLE_TTL error")
	}
}
