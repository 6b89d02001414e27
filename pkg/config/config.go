// Package config holds the SDK configuration: application credentials,
// endpoints and client options.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"varinode/pkg/errs"
)

// Default endpoints and client limits.
const (
	DefaultBaseURL = "http://apiv1.varinode.com"
	// Customer, card and address calls go through a separate endpoint signed
	// with the private secret; the remote system partitions trust boundaries
	// by resource sensitivity.
	DefaultPrivateBaseURL = "http://capiv1.varinode.com"

	// Fixed wall-clock limit for a single API round trip.
	DefaultTimeout = 20 * time.Second
)

// Config is the application configuration. The three keys are mandatory
// before any call is permitted.
type Config struct {
	AppKey           string `yaml:"app_key"`
	AppSecret        string `yaml:"app_secret"`
	AppPrivateSecret string `yaml:"app_private_secret"`

	Debug      bool `yaml:"debug"`
	FileUpload bool `yaml:"file_upload"`

	BaseURL        string        `yaml:"base_url"`
	PrivateBaseURL string        `yaml:"private_base_url"`
	Timeout        time.Duration `yaml:"-"`
}

// UnmarshalYAML decodes a Config, accepting the timeout as a duration
// string ("5s", "1m30s").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type alias Config
	var a alias
	if err := value.Decode(&a); err != nil {
		return err
	}

	var extra struct {
		Timeout string `yaml:"timeout"`
	}
	if err := value.Decode(&extra); err != nil {
		return err
	}

	*c = Config(a)
	if extra.Timeout != "" {
		d, err := time.ParseDuration(extra.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// IsConfigured reports whether all three application secrets are set.
func (c *Config) IsConfigured() bool {
	return c.AppKey != "" && c.AppSecret != "" && c.AppPrivateSecret != ""
}

// Validate fails fast with a NOT_CONFIGURED error when credentials are
// incomplete.
func (c *Config) Validate() error {
	if !c.IsConfigured() {
		return errs.New(errs.NotConfigured, "appKey, appSecret and appPrivateSecret are all required")
	}
	return nil
}

// withDefaults fills in endpoint and timeout defaults for zero fields.
func (c *Config) withDefaults() *Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PrivateBaseURL == "" {
		c.PrivateBaseURL = DefaultPrivateBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// New builds a Config with endpoint defaults applied.
func New(appKey, appSecret, appPrivateSecret string) *Config {
	c := &Config{
		AppKey:           appKey,
		AppSecret:        appSecret,
		AppPrivateSecret: appPrivateSecret,
	}
	return c.withDefaults()
}

// FromEnv loads configuration from environment variables.
func FromEnv() *Config {
	c := &Config{
		AppKey:           os.Getenv("VARINODE_APP_KEY"),
		AppSecret:        os.Getenv("VARINODE_APP_SECRET"),
		AppPrivateSecret: os.Getenv("VARINODE_APP_PRIVATE_SECRET"),
		Debug:            os.Getenv("VARINODE_DEBUG") == "true",
	}
	if base := os.Getenv("VARINODE_BASE_URL"); base != "" {
		c.BaseURL = base
	}
	if base := os.Getenv("VARINODE_PRIVATE_BASE_URL"); base != "" {
		c.PrivateBaseURL = base
	}
	return c.withDefaults()
}

// LoadFile loads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c.withDefaults(), nil
}
