// Package config loads the contract tester configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"api-contract-tester/internal/llm"
	"api-contract-tester/internal/paramsource"
)

// DefaultPath is where the configuration is read from when no path is given.
const DefaultPath = "config/config.yaml"

// Config holds the application configuration
type Config struct {
	Target     TargetConfig     `yaml:"target"`
	Test       TestConfig       `yaml:"test"`
	Validation ValidationConfig `yaml:"validation"`
	Params     ParamsConfig     `yaml:"params"`
	Reporting  ReportingConfig  `yaml:"reporting"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	LLM        llm.Config       `yaml:"llm"`
}

// TargetConfig describes the service under test
type TargetConfig struct {
	BaseURL  string `yaml:"base_url"`
	Document string `yaml:"document"`
	// Discover tries well-known document locations when Document cannot be fetched.
	Discover bool       `yaml:"discover"`
	Auth     AuthConfig `yaml:"auth"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type   string `yaml:"type"`
	Token  string `yaml:"token"`
	Header string `yaml:"header"`
}

// TestConfig holds test execution configuration
type TestConfig struct {
	Concurrency int         `yaml:"concurrency"`
	Timeout     int         `yaml:"timeout"`
	Retry       RetryConfig `yaml:"retry"`
	Methods     []string    `yaml:"methods"`
	Skip        []string    `yaml:"skip"`

	FailOnMissingParams bool `yaml:"fail_on_missing_params"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	Attempts int `yaml:"attempts"`
	Delay    int `yaml:"delay"`
}

// ValidationConfig tunes response validation
type ValidationConfig struct {
	BanUnknownProperties bool `yaml:"ban_unknown_properties"`
	StrictIntegers       bool `yaml:"strict_integers"`
	ValidateHeaders      bool `yaml:"validate_headers"`
}

// ParamsConfig locates known-good parameter values
type ParamsConfig struct {
	File     string               `yaml:"file"`
	Database paramsource.DBConfig `yaml:"database"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
	Detailed  bool     `yaml:"detailed"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Dir, when set, sends the log to a timestamped file in this directory.
	Dir string `yaml:"dir"`
}

// TracingConfig holds OTLP trace export configuration
type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Document: "/swagger.json",
			Auth:     AuthConfig{Type: "bearer"},
		},
		Test: TestConfig{
			Concurrency: 100,
			Timeout:     30,
			Retry:       RetryConfig{Attempts: 1, Delay: 1},
			Methods:     []string{"GET"},
		},
		Validation: ValidationConfig{
			BanUnknownProperties: true,
			ValidateHeaders:      true,
		},
		Params: ParamsConfig{File: "testdata/params.json"},
		Reporting: ReportingConfig{
			Format:    []string{"console", "json"},
			OutputDir: "reports",
		},
		Logging: LoggingConfig{Level: "info"},
		Tracing: TracingConfig{Service: "api-contract-tester"},
		LLM:     *llm.NewDefaultConfig(),
	}
}

// Load reads the configuration file at path over the defaults and applies
// environment overrides. An empty path means DefaultPath, which may be
// absent; an explicitly named file must exist.
func Load(path string) (*Config, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.applyEnv()
	config.fillDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	// Override auth token from environment variable if set
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		c.Target.Auth.Token = token
	}
	if baseURL := os.Getenv("CONTRACT_BASE_URL"); baseURL != "" {
		c.Target.BaseURL = baseURL
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
}

// fillDefaults restores defaults for fields a file left empty.
func (c *Config) fillDefaults() {
	if c.Target.Document == "" {
		c.Target.Document = "/swagger.json"
	}
	if c.Test.Timeout == 0 {
		c.Test.Timeout = 30
	}
	if c.Test.Retry.Attempts == 0 {
		c.Test.Retry.Attempts = 1
	}
	if len(c.Test.Methods) == 0 {
		c.Test.Methods = []string{"GET"}
	}
	if len(c.Reporting.Format) == 0 {
		c.Reporting.Format = []string{"console", "json"}
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = "reports"
	}
	if c.Params.File == "" {
		c.Params.File = "testdata/params.json"
	}
	for i, m := range c.Test.Methods {
		c.Test.Methods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Test.Concurrency < 1 {
		return fmt.Errorf("test.concurrency must be at least 1, got %d", c.Test.Concurrency)
	}
	if c.Test.Timeout < 0 {
		return fmt.Errorf("test.timeout must not be negative, got %d", c.Test.Timeout)
	}
	if c.Test.Retry.Attempts < 1 {
		return fmt.Errorf("test.retry.attempts must be at least 1, got %d", c.Test.Retry.Attempts)
	}
	switch strings.ToLower(c.Target.Auth.Type) {
	case "", "bearer", "basic", "header":
	default:
		return fmt.Errorf("unsupported auth type: %s", c.Target.Auth.Type)
	}
	for _, f := range c.Reporting.Format {
		switch f {
		case "console", "json", "html":
		default:
			return fmt.Errorf("unsupported report format: %s", f)
		}
	}
	return nil
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Test.Timeout) * time.Second
}

// RetryDelay returns the pause between attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Test.Retry.Delay) * time.Second
}

// HasFormat reports whether the named report format is enabled.
func (c *Config) HasFormat(name string) bool {
	for _, f := range c.Reporting.Format {
		if f == name {
			return true
		}
	}
	return false
}
