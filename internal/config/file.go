package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the TOML layout:
//
//	environment = "production"
//	port = "8000"
//
//	[bridge]
//	listen_addr = "127.0.0.1:7400"
//	max_host = "127.0.0.1"
//	max_port = 7401
//	reply_format = "osc"
//
//	[completion]
//	provider = "openai"
//	model = "gpt-4o-mini"
//	timeout = "45s"
type fileConfig struct {
	Environment string `toml:"environment"`
	Port        string `toml:"port"`
	DatabaseURL string `toml:"database_url"`

	Bridge struct {
		ListenAddr  string  `toml:"listen_addr"`
		MaxHost     string  `toml:"max_host"`
		MaxPort     int     `toml:"max_port"`
		ReplyFormat string  `toml:"reply_format"`
		BufferSize  int     `toml:"buffer_size"`
		RateLimit   float64 `toml:"rate_limit"`
		RateBurst   int     `toml:"rate_burst"`
	} `toml:"bridge"`

	Completion struct {
		Provider    string  `toml:"provider"`
		Model       string  `toml:"model"`
		GeminiModel string  `toml:"gemini_model"`
		BaseURL     string  `toml:"base_url"`
		Workers     int     `toml:"workers"`
		Queue       int     `toml:"queue"`
		Timeout     string  `toml:"timeout"`
		Temperature float64 `toml:"temperature"`
	} `toml:"completion"`

	HTTP struct {
		CORSAllowOrigins []string `toml:"cors_allow_origins"`
		AuthMode         string   `toml:"auth_mode"`
	} `toml:"http"`

	Langfuse struct {
		Enabled bool   `toml:"enabled"`
		Host    string `toml:"host"`
	} `toml:"langfuse"`
}

// applyFile overlays the keys defined in the TOML file at path.
// Secrets are only read from the environment.
func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	setString := func(key string, dst *string, v string) {
		if meta.IsDefined(strings.Split(key, ".")...) {
			*dst = strings.TrimSpace(v)
		}
	}

	setString("environment", &cfg.Environment, raw.Environment)
	setString("port", &cfg.Port, raw.Port)
	setString("database_url", &cfg.DatabaseURL, raw.DatabaseURL)

	setString("bridge.listen_addr", &cfg.ListenAddr, raw.Bridge.ListenAddr)
	setString("bridge.max_host", &cfg.MaxHost, raw.Bridge.MaxHost)
	setString("bridge.reply_format", &cfg.ReplyFormat, raw.Bridge.ReplyFormat)
	if meta.IsDefined("bridge", "max_port") {
		cfg.MaxPort = raw.Bridge.MaxPort
	}
	if meta.IsDefined("bridge", "buffer_size") {
		cfg.ReceiveBufferSize = raw.Bridge.BufferSize
	}
	if meta.IsDefined("bridge", "rate_limit") {
		cfg.InboundRateLimit = raw.Bridge.RateLimit
	}
	if meta.IsDefined("bridge", "rate_burst") {
		cfg.InboundRateBurst = raw.Bridge.RateBurst
	}

	setString("completion.provider", &cfg.CompletionProvider, raw.Completion.Provider)
	setString("completion.model", &cfg.OpenAIModel, raw.Completion.Model)
	setString("completion.gemini_model", &cfg.GeminiModel, raw.Completion.GeminiModel)
	setString("completion.base_url", &cfg.OpenAIBaseURL, raw.Completion.BaseURL)
	if meta.IsDefined("completion", "workers") {
		cfg.CompletionWorkers = raw.Completion.Workers
	}
	if meta.IsDefined("completion", "queue") {
		cfg.CompletionQueue = raw.Completion.Queue
	}
	if meta.IsDefined("completion", "temperature") {
		cfg.Temperature = raw.Completion.Temperature
	}
	if meta.IsDefined("completion", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Completion.Timeout))
		if err != nil {
			return fmt.Errorf("parse completion.timeout: %w", err)
		}
		cfg.CompletionTimeout = d
	}

	if meta.IsDefined("http", "cors_allow_origins") {
		cfg.CORSAllowOrigins = splitOrigins(strings.Join(raw.HTTP.CORSAllowOrigins, ","))
	}
	setString("http.auth_mode", &cfg.AuthMode, raw.HTTP.AuthMode)

	if meta.IsDefined("langfuse", "enabled") {
		cfg.LangfuseEnabled = raw.Langfuse.Enabled
	}
	setString("langfuse.host", &cfg.LangfuseHost, raw.Langfuse.Host)

	return nil
}
