// Package config loads hrflow settings from an optional YAML file and the
// process environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gartstein/hrflow/internal/hrflow/auth"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDocGenURL      = "https://na1.fusion.foxit.com/document-generation"
	DefaultPDFServicesURL = "https://na1.fusion.foxit.com/pdf-services"
	DefaultCompanyName    = "TechCorp Solutions"
)

// ServiceConfig holds the connection settings of one remote service.
type ServiceConfig struct {
	BaseURL              string `yaml:"BASE_URL" envconfig:"BASE_URL"`
	ClientID             string `yaml:"CLIENT_ID" envconfig:"CLIENT_ID"`
	ClientSecret         string `yaml:"CLIENT_SECRET" envconfig:"CLIENT_SECRET"`
	ApplicationID        string `yaml:"APPLICATION_ID" envconfig:"APPLICATION_ID"`
	FallbackClientID     string `yaml:"FALLBACK_CLIENT_ID" envconfig:"FALLBACK_CLIENT_ID"`
	FallbackClientSecret string `yaml:"FALLBACK_CLIENT_SECRET" envconfig:"FALLBACK_CLIENT_SECRET"`
}

// Credentials returns the credential chain for the service. The fallback
// pair is only attached when both halves are set.
func (s ServiceConfig) Credentials() auth.Chain {
	chain := auth.Chain{Primary: auth.Credentials{
		ClientID:      s.ClientID,
		ClientSecret:  s.ClientSecret,
		ApplicationID: s.ApplicationID,
	}}
	if s.FallbackClientID != "" && s.FallbackClientSecret != "" {
		chain.Fallback = &auth.Credentials{
			ClientID:      s.FallbackClientID,
			ClientSecret:  s.FallbackClientSecret,
			ApplicationID: s.ApplicationID,
		}
	}
	return chain
}

type StoreConfig struct {
	Driver string `yaml:"DRIVER" envconfig:"DRIVER"`
	DSN    string `yaml:"DSN" envconfig:"DSN"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"BROKERS" envconfig:"BROKERS"`
	Topic   string   `yaml:"TOPIC" envconfig:"TOPIC"`
}

// Config is the full runtime configuration.
type Config struct {
	DocGen      ServiceConfig `yaml:"FOXIT_DOCGEN" envconfig:"FOXIT_DOCGEN"`
	PDFServices ServiceConfig `yaml:"FOXIT_PDFSERVICES" envconfig:"FOXIT_PDFSERVICES"`

	CompanyName      string        `yaml:"COMPANY_NAME" envconfig:"COMPANY_NAME"`
	HTTPPort         int           `yaml:"HTTP_PORT" envconfig:"HTTP_PORT"`
	RequestTimeout   time.Duration `yaml:"REQUEST_TIMEOUT" envconfig:"REQUEST_TIMEOUT"`
	PollInterval     time.Duration `yaml:"POLL_INTERVAL" envconfig:"POLL_INTERVAL"`
	PollMaxAttempts  int           `yaml:"POLL_MAX_ATTEMPTS" envconfig:"POLL_MAX_ATTEMPTS"`
	TemplateCacheDir string        `yaml:"TEMPLATE_CACHE_DIR" envconfig:"TEMPLATE_CACHE_DIR"`
	BulkConcurrency  int           `yaml:"BULK_CONCURRENCY" envconfig:"BULK_CONCURRENCY"`
	LogLevel         string        `yaml:"LOG_LEVEL" envconfig:"LOG_LEVEL"`

	Store StoreConfig `yaml:"STORE" envconfig:"STORE"`
	Kafka KafkaConfig `yaml:"KAFKA" envconfig:"KAFKA"`
}

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		DocGen:          ServiceConfig{BaseURL: DefaultDocGenURL},
		PDFServices:     ServiceConfig{BaseURL: DefaultPDFServicesURL},
		CompanyName:     DefaultCompanyName,
		HTTPPort:        8080,
		RequestTimeout:  30 * time.Second,
		PollInterval:    3 * time.Second,
		PollMaxAttempts: 40,
		BulkConcurrency: 4,
		LogLevel:        "info",
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "file::memory:?cache=shared",
		},
		Kafka: KafkaConfig{Topic: "hrflow.documents"},
	}
}

// Load reads path (when non-empty) over the defaults and then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the non-credential settings. Missing credentials are
// reported per call so that check-config and partial setups keep working.
func (c *Config) Validate() error {
	switch {
	case c.DocGen.BaseURL == "" || c.PDFServices.BaseURL == "":
		return fmt.Errorf("%w: service base URL is empty", e.ErrConfiguration)
	case c.HTTPPort <= 0 || c.HTTPPort > 65535:
		return fmt.Errorf("%w: HTTP_PORT %d out of range", e.ErrConfiguration, c.HTTPPort)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: REQUEST_TIMEOUT must be positive", e.ErrConfiguration)
	case c.PollInterval < 0:
		return fmt.Errorf("%w: POLL_INTERVAL must not be negative", e.ErrConfiguration)
	case c.PollMaxAttempts <= 0:
		return fmt.Errorf("%w: POLL_MAX_ATTEMPTS must be positive", e.ErrConfiguration)
	case c.BulkConcurrency <= 0:
		return fmt.Errorf("%w: BULK_CONCURRENCY must be positive", e.ErrConfiguration)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", e.ErrConfiguration, c.Store.Driver)
	}
	return nil
}

// Presence reports, per credential variable, whether it is set. Values are
// never included, only their length.
func (c *Config) Presence() map[string]string {
	report := func(v string) string {
		if v == "" {
			return "MISSING"
		}
		return fmt.Sprintf("PRESENT (Length: %d)", len(v))
	}
	return map[string]string{
		"FOXIT_DOCGEN_CLIENT_ID":               report(c.DocGen.ClientID),
		"FOXIT_DOCGEN_CLIENT_SECRET":           report(c.DocGen.ClientSecret),
		"FOXIT_DOCGEN_APPLICATION_ID":          report(c.DocGen.ApplicationID),
		"FOXIT_PDFSERVICES_CLIENT_ID":          report(c.PDFServices.ClientID),
		"FOXIT_PDFSERVICES_CLIENT_SECRET":      report(c.PDFServices.ClientSecret),
		"FOXIT_PDFSERVICES_APPLICATION_ID":     report(c.PDFServices.ApplicationID),
		"FOXIT_DOCGEN_FALLBACK_CLIENT_ID":      report(c.DocGen.FallbackClientID),
		"FOXIT_PDFSERVICES_FALLBACK_CLIENT_ID": report(c.PDFServices.FallbackClientID),
		"COMPANY_NAME":                         report(c.CompanyName),
	}
}
