package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ReplyFormatJSON = "json"
	ReplyFormatOSC  = "osc"

	AuthModeNone  = "none"
	AuthModeToken = "token"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds the application configuration.
// Values come from defaults, then the optional TOML file named by CONFIG_FILE,
// then environment variables.
type Config struct {
	// Environment
	Environment string
	Port        string

	// Bridge
	ListenAddr        string        // UDP address the controller sends to
	MaxHost           string        // Controller host for outbound datagrams
	MaxPort           int           // Controller port for outbound datagrams
	ReplyFormat       string        // "json" sends raw JSON, "osc" wraps it in a /json packet
	ReceiveBufferSize int           // Largest datagram accepted, in bytes
	InboundRateLimit  float64       // Datagrams per second; 0 disables limiting
	InboundRateBurst  int           // Burst allowance for the limiter
	CompletionWorkers int           // Concurrent completions started from captures
	CompletionQueue   int           // Captures allowed to wait for a worker
	CompletionTimeout time.Duration // Upper bound on one completion call

	// Completion
	CompletionProvider string // "openai" or "gemini"
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIBaseURL      string // Optional OpenAI-compatible endpoint
	GeminiAPIKey       string
	GeminiModel        string
	Temperature        float64

	// Persistence (optional)
	DatabaseURL string

	// Observability
	SentryDSN         string // Sentry DSN for error tracking
	LangfusePublicKey string // Langfuse public key
	LangfuseSecretKey string // Langfuse secret key
	LangfuseHost      string // Langfuse host URL (cloud or self-hosted)
	LangfuseEnabled   bool   // Feature flag for Langfuse

	// HTTP
	CORSAllowOrigins []string

	// Auth mode
	// - "none": No auth (local use next to the controller)
	// - "token": Mutating routes require an HMAC-signed bearer token
	AuthMode  string
	JWTSecret string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment:        "development",
		Port:               "8000",
		ListenAddr:         "127.0.0.1:7400",
		MaxHost:            "127.0.0.1",
		MaxPort:            7401,
		ReplyFormat:        ReplyFormatJSON,
		ReceiveBufferSize:  65536,
		InboundRateLimit:   50,
		InboundRateBurst:   20,
		CompletionWorkers:  2,
		CompletionQueue:    4,
		CompletionTimeout:  60 * time.Second,
		CompletionProvider: ProviderOpenAI,
		OpenAIModel:        "gpt-4o-mini",
		GeminiModel:        "gemini-2.5-flash",
		Temperature:        0.3,
		LangfuseHost:       "https://cloud.langfuse.com",
		CORSAllowOrigins:   []string{"*"},
		AuthMode:           AuthModeNone,
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.Port = getEnv("PORT", cfg.Port)

	cfg.ListenAddr = getEnv("BRIDGE_LISTEN_ADDR", cfg.ListenAddr)
	cfg.MaxHost = getEnv("MAX_UDP_HOST", cfg.MaxHost)
	cfg.ReplyFormat = strings.ToLower(getEnv("MAX_REPLY_FORMAT", cfg.ReplyFormat))

	var err error
	if cfg.MaxPort, err = getEnvInt("MAX_UDP_PORT", cfg.MaxPort); err != nil {
		return err
	}
	if cfg.ReceiveBufferSize, err = getEnvInt("BRIDGE_BUFFER_SIZE", cfg.ReceiveBufferSize); err != nil {
		return err
	}
	if cfg.InboundRateLimit, err = getEnvFloat("BRIDGE_RATE_LIMIT", cfg.InboundRateLimit); err != nil {
		return err
	}
	if cfg.InboundRateBurst, err = getEnvInt("BRIDGE_RATE_BURST", cfg.InboundRateBurst); err != nil {
		return err
	}
	if cfg.CompletionWorkers, err = getEnvInt("COMPLETION_WORKERS", cfg.CompletionWorkers); err != nil {
		return err
	}
	if cfg.CompletionQueue, err = getEnvInt("COMPLETION_QUEUE", cfg.CompletionQueue); err != nil {
		return err
	}
	if cfg.CompletionTimeout, err = getEnvDuration("COMPLETION_TIMEOUT", cfg.CompletionTimeout); err != nil {
		return err
	}
	if cfg.Temperature, err = getEnvFloat("COMPLETION_TEMPERATURE", cfg.Temperature); err != nil {
		return err
	}

	cfg.CompletionProvider = strings.ToLower(getEnv("COMPLETION_PROVIDER", cfg.CompletionProvider))
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.OpenAIBaseURL = getEnv("OPENAI_API_BASE", cfg.OpenAIBaseURL)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.SentryDSN = getEnv("SENTRY_DSN", cfg.SentryDSN)
	cfg.LangfusePublicKey = getEnv("LANGFUSE_PUBLIC_KEY", cfg.LangfusePublicKey)
	cfg.LangfuseSecretKey = getEnv("LANGFUSE_SECRET_KEY", cfg.LangfuseSecretKey)
	cfg.LangfuseHost = getEnv("LANGFUSE_HOST", cfg.LangfuseHost)
	if v := os.Getenv("LANGFUSE_ENABLED"); v != "" {
		cfg.LangfuseEnabled = v == "true"
	}

	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORSAllowOrigins = splitOrigins(v)
	}

	cfg.AuthMode = strings.ToLower(getEnv("AUTH_MODE", cfg.AuthMode))
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	return nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.ReplyFormat {
	case ReplyFormatJSON, ReplyFormatOSC:
	default:
		return fmt.Errorf("config: unknown reply format %q (want json or osc)", c.ReplyFormat)
	}

	switch c.AuthMode {
	case AuthModeNone:
	case AuthModeToken:
		if c.JWTSecret == "" {
			return fmt.Errorf("config: AUTH_MODE=token requires JWT_SECRET")
		}
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.AuthMode)
	}

	switch c.CompletionProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown completion provider %q", c.CompletionProvider)
	}

	if c.MaxPort <= 0 || c.MaxPort > 65535 {
		return fmt.Errorf("config: MAX_UDP_PORT %d out of range", c.MaxPort)
	}
	if c.ReceiveBufferSize <= 0 {
		return fmt.Errorf("config: BRIDGE_BUFFER_SIZE must be positive")
	}
	if c.CompletionWorkers <= 0 {
		return fmt.Errorf("config: COMPLETION_WORKERS must be positive")
	}
	if c.CompletionQueue < 0 {
		return fmt.Errorf("config: COMPLETION_QUEUE must not be negative")
	}
	return nil
}

// IsTokenAuth returns true if mutating routes require a bearer token
func (c *Config) IsTokenAuth() bool {
	return c.AuthMode == AuthModeToken
}

// MaxAddr is the controller's outbound UDP address.
func (c *Config) MaxAddr() string {
	return fmt.Sprintf("%s:%d", c.MaxHost, c.MaxPort)
}

// CORSAllowsCredentials is false when any origin is allowed.
func (c *Config) CORSAllowsCredentials() bool {
	for _, o := range c.CORSAllowOrigins {
		if o == "*" {
			return false
		}
	}
	return true
}

func splitOrigins(v string) []string {
	var origins []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
