package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Operator secret sources.
const (
	SecretSourceEnv  = "env"
	SecretSourceFile = "file"
	SecretSourceAWS  = "aws"
	SecretSourceNone = "none"
)

const (
	defaultPort             = 3001
	defaultEnvironment      = "development"
	defaultVersion          = "3.0.0"
	defaultProviderTimeout  = 60 * time.Second
	defaultSecretEnvVar     = "OPENAI_API_KEY"
	defaultSecretField      = "api_key"
	defaultAWSRegion        = "us-east-1"
	defaultAWSSecretID      = "master-shredder-v3/openai-api-key"
	defaultSecretCacheTTL   = 5 * time.Minute
	defaultModel            = "gpt-4o"
	defaultTemperature      = 0.7
	defaultMaxTokens        = 4000
	defaultCatalogTTL       = 24 * time.Hour
	defaultMaxCachedClients = 1000
)

// DefaultSystemPrompt frames every conversation unless chat.system_prompt overrides it.
const DefaultSystemPrompt = "You are Master Shredder, a helpful and intelligent document processing assistant. " +
	"You help users analyze, summarize, and extract insights from their documents with precision and clarity."

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Operator    OperatorConfig    `yaml:"operator"`
	Chat        ChatConfig        `yaml:"chat"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

// ServerConfig defines listener configuration and the values reported by /settings/config.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	BasePath    string   `yaml:"base_path"`
	Environment string   `yaml:"environment"`
	Version     string   `yaml:"version"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProvidersConfig catalogues the upstream backends.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
}

// ProviderConfig captures routing info for a provider. Credentials are never
// part of provider configuration; they arrive per request or from the
// operator secret store.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Headers Headers       `yaml:"headers"`
	Timeout time.Duration `yaml:"timeout"`
}

// Headers contains additional HTTP headers to send with a provider request.
type Headers map[string]string

// OperatorConfig controls the operator-held fallback credential.
type OperatorConfig struct {
	AllowUserTokens *bool           `yaml:"allow_user_tokens"`
	Source          string          `yaml:"source"`
	EnvVar          string          `yaml:"env_var"`
	File            string          `yaml:"file"`
	Field           string          `yaml:"field"`
	AWS             AWSSecretConfig `yaml:"aws"`
}

// AWSSecretConfig locates the operator credential in AWS Secrets Manager.
type AWSSecretConfig struct {
	Region   string        `yaml:"region"`
	SecretID string        `yaml:"secret_id"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ChatConfig holds completion defaults.
type ChatConfig struct {
	DefaultModel     string   `yaml:"default_model"`
	DynamicSelection *bool    `yaml:"dynamic_selection"`
	SystemPrompt     string   `yaml:"system_prompt"`
	Temperature      *float64 `yaml:"temperature"`
	MaxTokens        int      `yaml:"max_tokens"`
}

// CatalogConfig controls per-credential catalog caching.
type CatalogConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CredentialsConfig bounds the provider handle cache.
type CredentialsConfig struct {
	MaxCachedClients int `yaml:"max_cached_clients"`
}

// UserTokensAllowed reports whether callers may supply their own credential.
func (o OperatorConfig) UserTokensAllowed() bool {
	return o.AllowUserTokens == nil || *o.AllowUserTokens
}

// DynamicSelectionEnabled reports whether models are picked per request.
func (c ChatConfig) DynamicSelectionEnabled() bool {
	return c.DynamicSelection == nil || *c.DynamicSelection
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// Load reads YAML configuration from disk, applies defaults and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	c.Server.BasePath = strings.TrimRight(strings.TrimSpace(c.Server.BasePath), "/")
	if c.Server.Environment == "" {
		c.Server.Environment = defaultEnvironment
	}
	if c.Server.Version == "" {
		c.Server.Version = defaultVersion
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Providers.OpenAI.Timeout == 0 {
		c.Providers.OpenAI.Timeout = defaultProviderTimeout
	}
	if c.Providers.Anthropic.Timeout == 0 {
		c.Providers.Anthropic.Timeout = defaultProviderTimeout
	}

	if c.Operator.Source == "" {
		c.Operator.Source = SecretSourceEnv
	}
	if c.Operator.EnvVar == "" {
		c.Operator.EnvVar = defaultSecretEnvVar
	}
	if c.Operator.Field == "" {
		c.Operator.Field = defaultSecretField
	}
	if c.Operator.AWS.Region == "" {
		c.Operator.AWS.Region = defaultAWSRegion
	}
	if c.Operator.AWS.SecretID == "" {
		c.Operator.AWS.SecretID = defaultAWSSecretID
	}
	if c.Operator.AWS.CacheTTL == 0 {
		c.Operator.AWS.CacheTTL = defaultSecretCacheTTL
	}

	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = defaultModel
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = DefaultSystemPrompt
	}
	if c.Chat.Temperature == nil {
		t := defaultTemperature
		c.Chat.Temperature = &t
	}
	if c.Chat.MaxTokens == 0 {
		c.Chat.MaxTokens = defaultMaxTokens
	}

	if c.Catalog.CacheTTL == 0 {
		c.Catalog.CacheTTL = defaultCatalogTTL
	}
	if c.Credentials.MaxCachedClients == 0 {
		c.Credentials.MaxCachedClients = defaultMaxCachedClients
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with '/', got %q", c.Server.BasePath)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	providers := map[string]ProviderConfig{
		"openai":    c.Providers.OpenAI,
		"anthropic": c.Providers.Anthropic,
	}
	for name, provider := range providers {
		if err := validateProvider(name, provider); err != nil {
			return err
		}
	}

	if err := c.Operator.validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Chat.DefaultModel) == "" {
		return fmt.Errorf("chat.default_model must not be empty")
	}
	if t := c.Chat.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("chat.temperature must be within [0, 2], got %v", *t)
	}
	if c.Chat.MaxTokens < 0 {
		return fmt.Errorf("chat.max_tokens must not be negative, got %d", c.Chat.MaxTokens)
	}
	if c.Catalog.CacheTTL < 0 {
		return fmt.Errorf("catalog.cache_ttl must not be negative, got %s", c.Catalog.CacheTTL)
	}
	if c.Credentials.MaxCachedClients < 0 {
		return fmt.Errorf("credentials.max_cached_clients must not be negative, got %d", c.Credentials.MaxCachedClients)
	}

	return nil
}

func (o OperatorConfig) validate() error {
	switch o.Source {
	case SecretSourceEnv:
		if strings.TrimSpace(o.EnvVar) == "" {
			return fmt.Errorf("operator.env_var must be provided for source %q", o.Source)
		}
	case SecretSourceFile:
		if strings.TrimSpace(o.File) == "" {
			return fmt.Errorf("operator.file must be provided for source %q", o.Source)
		}
	case SecretSourceAWS:
		if strings.TrimSpace(o.AWS.SecretID) == "" {
			return fmt.Errorf("operator.aws.secret_id must be provided for source %q", o.Source)
		}
		if o.AWS.CacheTTL < 0 {
			return fmt.Errorf("operator.aws.cache_ttl must not be negative, got %s", o.AWS.CacheTTL)
		}
	case SecretSourceNone:
	default:
		return fmt.Errorf("operator.source must be one of %q, %q, %q or %q, got %q",
			SecretSourceEnv, SecretSourceFile, SecretSourceAWS, SecretSourceNone, o.Source)
	}
	return nil
}

func validateProvider(name string, provider ProviderConfig) error {
	if base := strings.TrimSpace(provider.BaseURL); base != "" &&
		!strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return fmt.Errorf("provider %s: base_url must be an http(s) URL, got %q", name, base)
	}
	if provider.Timeout < 0 {
		return fmt.Errorf("provider %s: timeout must not be negative, got %s", name, provider.Timeout)
	}

	for headerKey := range provider.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("provider %s: header %q is not a valid canonical HTTP header", name, headerKey)
		}
		if strings.EqualFold(headerKey, "Authorization") || strings.EqualFold(headerKey, "X-Api-Key") {
			return fmt.Errorf("provider %s: header %q is managed per credential and must not be configured", name, headerKey)
		}
	}

	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
