// Package config provides application-wide configuration.
// Values come from, in increasing priority: built-in defaults, an optional
// YAML config file, .env files and the process environment. All fields have
// safe defaults so the binary runs locally without any setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for folio.
type Config struct {
	// Server
	Host            string // HOST: default: "127.0.0.1"
	Port            int    // PORT: default: 3000
	PersonaPath     string // PERSONA_PATH: default: "configs/persona.yaml"
	PromptPolicy    string // PROMPT_POLICY: "persona" or "restricted"
	DefaultProvider string // DEFAULT_PROVIDER: used by the MCP ask tool and `folio chat`

	// LLM vendors
	OpenAI          VendorConfig
	Groq            VendorConfig
	Anthropic       VendorConfig
	OllamaBaseURL   string // OLLAMA_BASE_URL: default: "http://localhost:11434"
	OllamaChatModel string // OLLAMA_CHAT_MODEL: default: "llama3.2:3b"

	// Logging
	LogLevel  string // LOG_LEVEL: default: "info"
	LogFormat string // LOG_FORMAT: "json" or "console"

	// Per-client request budget on the chat routes.
	RateLimitRPS   float64 // RATE_LIMIT_RPS: default: 1
	RateLimitBurst int     // RATE_LIMIT_BURST: default: 5

	// Terminal client
	SessionDBPath string        // SESSION_DB_PATH: default: <user cache dir>/folio/sessions.db
	SessionTTL    time.Duration // SESSION_TTL: default: 12h
	ServerURL     string        // SERVER_URL: default: "http://localhost:3000"
}

// VendorConfig is the credential and model selection for one hosted vendor.
// An empty APIKey is allowed; requests to that vendor then fail individually.
type VendorConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

const (
	envKeyHost            = "HOST"
	envKeyPort            = "PORT"
	envKeyPersonaPath     = "PERSONA_PATH"
	envKeyPromptPolicy    = "PROMPT_POLICY"
	envKeyDefaultProvider = "DEFAULT_PROVIDER"
	envKeyOpenAIKey       = "OPENAI_API_KEY"
	envKeyOpenAIModel     = "OPENAI_MODEL"
	envKeyOpenAIBaseURL   = "OPENAI_BASE_URL"
	envKeyGroqKey         = "GROQ_API_KEY"
	envKeyGroqModel       = "GROQ_MODEL"
	envKeyGroqBaseURL     = "GROQ_BASE_URL"
	envKeyAnthropicKey    = "ANTHROPIC_API_KEY"
	envKeyAnthropicModel  = "ANTHROPIC_MODEL"
	envKeyAnthropicURL    = "ANTHROPIC_BASE_URL"
	envKeyOllamaBaseURL   = "OLLAMA_BASE_URL"
	envKeyOllamaChatModel = "OLLAMA_CHAT_MODEL"
	envKeyLogLevel        = "LOG_LEVEL"
	envKeyLogFormat       = "LOG_FORMAT"
	envKeyRateLimitRPS    = "RATE_LIMIT_RPS"
	envKeyRateLimitBurst  = "RATE_LIMIT_BURST"
	envKeySessionDBPath   = "SESSION_DB_PATH"
	envKeySessionTTL      = "SESSION_TTL"
	envKeyServerURL       = "SERVER_URL"
)

// DotenvFiles are loaded in order; a variable set by an earlier file (or the
// real environment) is never overwritten by a later one.
var DotenvFiles = []string{".env.local", ".env"}

// Load reads configuration. configPath names an optional YAML file whose keys
// are the lower-cased variable names (e.g. "openai_model"); an empty path skips it.
func Load(configPath string) (Config, error) {
	for _, f := range DotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	cfg := Config{
		Host:            v.GetString(envKeyHost),
		Port:            v.GetInt(envKeyPort),
		PersonaPath:     v.GetString(envKeyPersonaPath),
		PromptPolicy:    v.GetString(envKeyPromptPolicy),
		DefaultProvider: v.GetString(envKeyDefaultProvider),
		OpenAI: VendorConfig{
			APIKey:  v.GetString(envKeyOpenAIKey),
			Model:   v.GetString(envKeyOpenAIModel),
			BaseURL: v.GetString(envKeyOpenAIBaseURL),
		},
		Groq: VendorConfig{
			APIKey:  v.GetString(envKeyGroqKey),
			Model:   v.GetString(envKeyGroqModel),
			BaseURL: v.GetString(envKeyGroqBaseURL),
		},
		Anthropic: VendorConfig{
			APIKey:  v.GetString(envKeyAnthropicKey),
			Model:   v.GetString(envKeyAnthropicModel),
			BaseURL: v.GetString(envKeyAnthropicURL),
		},
		OllamaBaseURL:   v.GetString(envKeyOllamaBaseURL),
		OllamaChatModel: v.GetString(envKeyOllamaChatModel),
		LogLevel:        v.GetString(envKeyLogLevel),
		LogFormat:       v.GetString(envKeyLogFormat),
		RateLimitRPS:    v.GetFloat64(envKeyRateLimitRPS),
		RateLimitBurst:  v.GetInt(envKeyRateLimitBurst),
		SessionDBPath:   v.GetString(envKeySessionDBPath),
		SessionTTL:      v.GetDuration(envKeySessionTTL),
		ServerURL:       v.GetString(envKeyServerURL),
	}
	if cfg.SessionDBPath == "" {
		cfg.SessionDBPath = defaultSessionDBPath()
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: %s %d out of range", envKeyPort, cfg.Port)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(envKeyHost, "127.0.0.1")
	v.SetDefault(envKeyPort, 3000)
	v.SetDefault(envKeyPersonaPath, "configs/persona.yaml")
	v.SetDefault(envKeyPromptPolicy, "persona")
	v.SetDefault(envKeyDefaultProvider, "openai")

	v.SetDefault(envKeyOpenAIModel, "gpt-3.5-turbo")
	v.SetDefault(envKeyGroqModel, "llama-3.3-70b-versatile")
	v.SetDefault(envKeyAnthropicModel, "claude-3-5-haiku-20241022")
	v.SetDefault(envKeyOllamaBaseURL, "http://localhost:11434")
	v.SetDefault(envKeyOllamaChatModel, "llama3.2:3b")

	v.SetDefault(envKeyLogLevel, "info")
	v.SetDefault(envKeyLogFormat, "json")

	v.SetDefault(envKeyRateLimitRPS, 1.0)
	v.SetDefault(envKeyRateLimitBurst, 5)

	v.SetDefault(envKeySessionTTL, 12*time.Hour)
	v.SetDefault(envKeyServerURL, "http://localhost:3000")
}

// defaultSessionDBPath falls back to the working directory when the user
// cache directory is unknown.
func defaultSessionDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "folio-sessions.db"
	}
	return filepath.Join(dir, "folio", "sessions.db")
}
