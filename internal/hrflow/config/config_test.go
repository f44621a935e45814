package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDocGenURL, cfg.DocGen.BaseURL)
	assert.Equal(t, DefaultPDFServicesURL, cfg.PDFServices.BaseURL)
	assert.Equal(t, DefaultCompanyName, cfg.CompanyName)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 40, cfg.PollMaxAttempts)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "hrflow.documents", cfg.Kafka.Topic)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
COMPANY_NAME: Acme Corp
HTTP_PORT: 9090
POLL_INTERVAL: 1s
FOXIT_DOCGEN:
  CLIENT_ID: from-file
  CLIENT_SECRET: file-secret
KAFKA:
  BROKERS: ["k1:9092"]
`), 0o600))

	t.Setenv("FOXIT_DOCGEN_CLIENT_ID", "from-env")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("POLL_MAX_ATTEMPTS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", cfg.CompanyName)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.PollMaxAttempts)
	assert.Equal(t, "from-env", cfg.DocGen.ClientID)
	assert.Equal(t, "file-secret", cfg.DocGen.ClientSecret)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTPPort = 0 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero attempts", func(c *Config) { c.PollMaxAttempts = 0 }},
		{"no base url", func(c *Config) { c.DocGen.BaseURL = "" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"zero concurrency", func(c *Config) { c.BulkConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), e.ErrConfiguration)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestPresence_NeverLeaksValues(t *testing.T) {
	cfg := Default()
	cfg.DocGen.ClientID = "abcd1234efgh"
	cfg.DocGen.ClientSecret = "super-secret"

	p := cfg.Presence()
	assert.Equal(t, "PRESENT (Length: 12)", p["FOXIT_DOCGEN_CLIENT_ID"])
	assert.Equal(t, "PRESENT (Length: 12)", p["FOXIT_DOCGEN_CLIENT_SECRET"])
	assert.Equal(t, "MISSING", p["FOXIT_PDFSERVICES_CLIENT_ID"])
	for _, v := range p {
		assert.NotContains(t, v, "super-secret")
		assert.NotContains(t, v, "abcd1234")
	}
}

func TestServiceConfig_Credentials(t *testing.T) {
	sc := ServiceConfig{ClientID: "id", ClientSecret: "secret", ApplicationID: "app"}
	chain := sc.Credentials()
	assert.Nil(t, chain.Fallback)
	assert.Equal(t, "app", chain.Primary.ApplicationID)

	sc.FallbackClientID = "id2"
	assert.Nil(t, sc.Credentials().Fallback, "half a fallback pair is ignored")

	sc.FallbackClientSecret = "secret2"
	chain = sc.Credentials()
	require.NotNil(t, chain.Fallback)
	assert.Equal(t, "id2", chain.Fallback.ClientID)
	assert.Equal(t, "app", chain.Fallback.ApplicationID)
}
