package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults mirror what a stock local mistral.rs / llama.cpp style
// server expects.
const (
	defaultBackendURL       = "http://localhost:8081"
	defaultTemperature      = 0.7
	defaultTopP             = 0.95
	defaultMaxTokens        = 512
	defaultMinTokens        = 100
	defaultMaxContextWindow = 4096
	defaultSystemReserve    = 200
	defaultResponseReserve  = 500
	defaultBackendTimeout   = 60 * time.Second
	defaultBackendRetries   = 2
	defaultBackendBackoff   = 500 * time.Millisecond
	defaultSessionIdleTTL   = 30 * time.Minute
	defaultSweepInterval    = 5 * time.Minute
)

const defaultSystemPrompt = "You are a helpful AI assistant. Be thorough and detailed in your explanations when the question calls for it."

// Config aggregates every setting of the service.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Context ContextConfig
	Session SessionConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// BackendConfig describes the inference server connection and its
// sampling defaults.
type BackendConfig struct {
	BaseURL     string
	Temperature float64
	TopP        float64
	Timeout     time.Duration
	Retries     int
	Backoff     time.Duration
}

// ContextConfig bounds the assembled prompt.
type ContextConfig struct {
	MaxContextWindow int
	SystemReserve    int
	ResponseReserve  int
	MinTokens        int
	MaxTokens        int
	SystemPrompt     string
}

// SessionConfig controls idle-session eviction.
type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from environment variables and validates
// the cross-field token constraints before the server starts.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	context, err := loadContextConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Server: server, Backend: backend, Context: context, Session: session}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	ctx := c.Context
	if ctx.MinTokens > ctx.MaxTokens {
		return fmt.Errorf("invalid token limits: MIN_TOKENS (%d) > MAX_TOKENS (%d)", ctx.MinTokens, ctx.MaxTokens)
	}
	if ctx.MaxTokens > ctx.MaxContextWindow {
		return fmt.Errorf("invalid token limits: MAX_TOKENS (%d) > MAX_CONTEXT_WINDOW (%d)", ctx.MaxTokens, ctx.MaxContextWindow)
	}
	reserve := ctx.SystemReserve + ctx.ResponseReserve
	if reserve >= ctx.MaxContextWindow {
		return fmt.Errorf("invalid token limits: SYSTEM_MESSAGE_RESERVE (%d) + RESPONSE_RESERVE (%d) >= MAX_CONTEXT_WINDOW (%d)",
			ctx.SystemReserve, ctx.ResponseReserve, ctx.MaxContextWindow)
	}
	if ctx.MaxContextWindow-reserve < 100 {
		return fmt.Errorf("insufficient space for messages: %d tokens left after reserves", ctx.MaxContextWindow-reserve)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_URL must not be empty")
	}
	return nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func loadBackendConfig() (BackendConfig, error) {
	temperature, err := parseFloatEnv("TEMPERATURE", defaultTemperature)
	if err != nil {
		return BackendConfig{}, err
	}

	topP, err := parseFloatEnv("TOP_P", defaultTopP)
	if err != nil {
		return BackendConfig{}, err
	}

	timeout, err := parseDurationEnv("BACKEND_TIMEOUT", defaultBackendTimeout)
	if err != nil {
		return BackendConfig{}, err
	}

	retries, err := parseIntEnv("BACKEND_RETRIES", defaultBackendRetries)
	if err != nil {
		return BackendConfig{}, err
	}
	if retries < 0 {
		return BackendConfig{}, fmt.Errorf("invalid BACKEND_RETRIES value: %d", retries)
	}

	backoff, err := parseDurationEnv("BACKEND_RETRY_BACKOFF", defaultBackendBackoff)
	if err != nil {
		return BackendConfig{}, err
	}

	return BackendConfig{
		BaseURL:     getEnvOrDefault("BACKEND_URL", defaultBackendURL),
		Temperature: temperature,
		TopP:        topP,
		Timeout:     timeout,
		Retries:     retries,
		Backoff:     backoff,
	}, nil
}

func loadContextConfig() (ContextConfig, error) {
	window, err := parseIntEnv("MAX_CONTEXT_WINDOW", defaultMaxContextWindow)
	if err != nil {
		return ContextConfig{}, err
	}

	systemReserve, err := parseIntEnv("SYSTEM_MESSAGE_RESERVE", defaultSystemReserve)
	if err != nil {
		return ContextConfig{}, err
	}

	responseReserve, err := parseIntEnv("RESPONSE_RESERVE", defaultResponseReserve)
	if err != nil {
		return ContextConfig{}, err
	}

	minTokens, err := parseIntEnv("MIN_TOKENS", defaultMinTokens)
	if err != nil {
		return ContextConfig{}, err
	}

	maxTokens, err := parseIntEnv("MAX_TOKENS", defaultMaxTokens)
	if err != nil {
		return ContextConfig{}, err
	}

	return ContextConfig{
		MaxContextWindow: window,
		SystemReserve:    systemReserve,
		ResponseReserve:  responseReserve,
		MinTokens:        minTokens,
		MaxTokens:        maxTokens,
		SystemPrompt:     getEnvOrDefault("SYSTEM_PROMPT", defaultSystemPrompt),
	}, nil
}

func loadSessionConfig() (SessionConfig, error) {
	idleTTL, err := parseDurationEnv("SESSION_IDLE_TTL", defaultSessionIdleTTL)
	if err != nil {
		return SessionConfig{}, err
	}

	sweep, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{IdleTTL: idleTTL, SweepInterval: sweep}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
