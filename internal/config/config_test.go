package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tourscan/internal/external/llm"
	"tourscan/internal/model"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/tours")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15*time.Second, cfg.ScraperConfig.Timeout)
	assert.Equal(t, 2*time.Second, cfg.ScraperConfig.MinDelay)
	assert.Equal(t, 3, cfg.ScraperConfig.MaxPages)
	assert.Equal(t, 5*time.Second, cfg.ProbeConfig.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ProbeConfig.Pause)
	assert.Equal(t, llm.BackendOllama, cfg.LLMConfig.Backend)
	assert.Equal(t, "http://localhost:11434", cfg.LLMConfig.BaseURL)
	assert.Equal(t, "llama3.1", cfg.LLMConfig.Model)
	assert.Equal(t, 8000, cfg.AnalyzerConfig.MaxChars)
	assert.Equal(t, 50.0, cfg.AnalyzerConfig.MinConfidence)
	assert.Equal(t, "./reports", cfg.ReportDir)
	assert.False(t, cfg.S3Config.Enabled())
	assert.False(t, cfg.TelegramEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/tours")
	t.Setenv("FETCH_TIMEOUT", "30s")
	t.Setenv("FETCH_MAX_PAGES", "5")
	t.Setenv("FETCH_MAX_BODY_BYTES", "2097152")
	t.Setenv("PROBE_PAUSE", "0s")
	t.Setenv("INFERENCE_BACKEND", "gemini")
	t.Setenv("AI_MIN_CONFIDENCE", "70")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	// Некорректное значение игнорируется
	t.Setenv("PROBE_TIMEOUT", "soon")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.ScraperConfig.Timeout)
	assert.Equal(t, 5, cfg.ScraperConfig.MaxPages)
	assert.Equal(t, 2<<20, cfg.ScraperConfig.MaxBodyBytes)
	assert.Equal(t, time.Duration(0), cfg.ProbeConfig.Pause)
	assert.Equal(t, 5*time.Second, cfg.ProbeConfig.Timeout)
	assert.Equal(t, llm.BackendGemini, cfg.LLMConfig.Backend)
	assert.Equal(t, 70.0, cfg.AnalyzerConfig.MinConfidence)
	assert.Equal(t, int64(-100123), cfg.ChatID)
	assert.True(t, cfg.TelegramEnabled())
}

func TestFromEnv_InvalidChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "general")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/tours")
	valid := func(t *testing.T) *Config {
		cfg, err := FromEnv()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing DSN", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DB_DSN"},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.ScraperConfig.Timeout = 0 }, wantErr: "FETCH_TIMEOUT"},
		{name: "no pages", mutate: func(c *Config) { c.ScraperConfig.MaxPages = 0 }, wantErr: "FETCH_MAX_PAGES"},
		{name: "no body limit", mutate: func(c *Config) { c.ScraperConfig.MaxBodyBytes = 0 }, wantErr: "FETCH_MAX_BODY_BYTES"},
		{name: "negative pause", mutate: func(c *Config) { c.ProbeConfig.Pause = -time.Second }, wantErr: "PROBE_PAUSE"},
		{name: "unknown backend", mutate: func(c *Config) { c.LLMConfig.Backend = "claude" }, wantErr: "INFERENCE_BACKEND"},
		{name: "confidence above 100", mutate: func(c *Config) { c.AnalyzerConfig.MinConfidence = 120 }, wantErr: "AI_MIN_CONFIDENCE"},
		{name: "bucket without region", mutate: func(c *Config) { c.S3Config.Bucket = "tours" }, wantErr: "REPORT_S3_REGION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseProviderPolicies(t *testing.T) {
	data := []byte(`
providers:
  yandex:
    accept_403: false
    extra_hosts:
      - domain: Yandex.KZ
        path_prefix: /maps
  2gis:
    accept_302: false
`)

	policies, err := ParseProviderPolicies(data)
	require.NoError(t, err)
	require.Len(t, policies, 2)

	yandex := policies[model.ProviderYandex]
	require.NotNil(t, yandex.Accept403)
	assert.False(t, *yandex.Accept403)
	assert.Nil(t, yandex.Accept302)
	assert.Equal(t, []model.HostRule{{Domain: "yandex.kz", PathPrefix: "/maps"}}, yandex.ExtraHosts)

	twogis := policies[model.ProviderTwoGIS]
	require.NotNil(t, twogis.Accept302)
	assert.False(t, *twogis.Accept302)
}

func TestParseProviderPolicies_Errors(t *testing.T) {
	_, err := ParseProviderPolicies([]byte("providers:\n  bing:\n    accept_403: true\n"))
	assert.Error(t, err)

	_, err = ParseProviderPolicies([]byte("providers:\n  google:\n    extra_hosts:\n      - path_prefix: /x\n"))
	assert.Error(t, err)
}

func TestProviderLoader_LoadProviderTable(t *testing.T) {
	loader := NewProviderLoader(zap.NewNop())

	table, err := loader.LoadProviderTable("")
	require.NoError(t, err)
	spec, ok := table.Spec(model.ProviderYandex)
	require.True(t, ok)
	assert.True(t, spec.Accept403)

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  yandex:\n    accept_403: false\n"), 0o644))

	table, err = loader.LoadProviderTable(path)
	require.NoError(t, err)
	spec, ok = table.Spec(model.ProviderYandex)
	require.True(t, ok)
	assert.False(t, spec.Accept403)

	_, err = loader.LoadProviderTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
