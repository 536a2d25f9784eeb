package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 8080\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "gpt-4o", cfg.Chat.DefaultModel)
	require.NotNil(t, cfg.Chat.Temperature)
	assert.InDelta(t, 0.7, *cfg.Chat.Temperature, 1e-9)
	assert.Equal(t, 4000, cfg.Chat.MaxTokens)
	assert.Equal(t, 24*time.Hour, cfg.Catalog.CacheTTL)
	assert.Equal(t, SecretSourceEnv, cfg.Operator.Source)
	assert.True(t, cfg.Operator.UserTokensAllowed())
	assert.True(t, cfg.Chat.DynamicSelectionEnabled())
	assert.Equal(t, 60*time.Second, cfg.Providers.OpenAI.Timeout)
	assert.Equal(t, DefaultSystemPrompt, cfg.Chat.SystemPrompt)
}

func TestLoadFullDocument(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 3001
  base_path: /api/
  environment: production
  cors_origins: ["https://shredder.example.com"]
logging:
  level: debug
  format: json
providers:
  openai:
    base_url: https://api.openai.com/v1
    timeout: 30s
    headers:
      OpenAI-Organization: org-123
operator:
  allow_user_tokens: false
  source: aws
  aws:
    region: us-gov-west-1
    secret_id: shredder/openai
    cache_ttl: 2m
chat:
  dynamic_selection: false
  default_model: gpt-4.1
  temperature: 0
`))
	require.NoError(t, err)

	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, 30*time.Second, cfg.Providers.OpenAI.Timeout)
	assert.Equal(t, "org-123", cfg.Providers.OpenAI.Headers["OpenAI-Organization"])
	assert.False(t, cfg.Operator.UserTokensAllowed())
	assert.False(t, cfg.Chat.DynamicSelectionEnabled())
	assert.Equal(t, "shredder/openai", cfg.Operator.AWS.SecretID)
	assert.Equal(t, 2*time.Minute, cfg.Operator.AWS.CacheTTL)
	assert.Equal(t, "gpt-4.1", cfg.Chat.DefaultModel)
	require.NotNil(t, cfg.Chat.Temperature)
	assert.Zero(t, *cfg.Chat.Temperature)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"relative base path", func(c *Config) { c.Server.BasePath = "api" }, "base_path"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"unknown secret source", func(c *Config) { c.Operator.Source = "vault" }, "operator.source"},
		{"file source without path", func(c *Config) { c.Operator.Source = SecretSourceFile }, "operator.file"},
		{"non-http base url", func(c *Config) { c.Providers.OpenAI.BaseURL = "ftp://x" }, "base_url"},
		{"credential header", func(c *Config) { c.Providers.Anthropic.Headers = Headers{"Authorization": "x"} }, "managed per credential"},
		{"invalid header", func(c *Config) { c.Providers.OpenAI.Headers = Headers{"X_Bad": "x"} }, "canonical"},
		{"temperature", func(c *Config) { v := 3.0; c.Chat.Temperature = &v }, "chat.temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unterminated"))
	assert.Error(t, err)
}
