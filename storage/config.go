package storage

import (
	"errors"
	"fmt"
	"time"
)

// Provider names.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Default configuration values.
const (
	DefaultProvider      = ProviderLocal
	DefaultBasePath      = "./recordings"
	DefaultRegion        = "us-east-1"
	DefaultPrefix        = "sessions"
	DefaultUploadTimeout = 30 * time.Second
)

// Config selects and configures the recording store.
type Config struct {
	// Enabled turns persistence on. When off no audio-saved message is sent.
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// Provider selects the backend: "local" or "s3".
	Provider string `yaml:"provider" mapstructure:"provider" json:"provider" validate:"omitempty,oneof=local s3"`

	// Prefix is prepended to every object key.
	Prefix string `yaml:"prefix" mapstructure:"prefix" json:"prefix"`

	// UploadTimeout bounds a single save.
	UploadTimeout time.Duration `yaml:"upload_timeout" mapstructure:"upload_timeout" json:"upload_timeout"`

	// BasePath is the root directory for the local provider.
	BasePath string `yaml:"base_path" mapstructure:"base_path" json:"base_path"`

	Bucket         string `yaml:"bucket" mapstructure:"bucket" json:"bucket"`
	Region         string `yaml:"region" mapstructure:"region" json:"region"`
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint" json:"endpoint"`
	AccessKey      string `yaml:"access_key" mapstructure:"access_key" json:"-"`
	SecretKey      string `yaml:"secret_key" mapstructure:"secret_key" json:"-"`
	ForcePathStyle bool   `yaml:"force_path_style" mapstructure:"force_path_style" json:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = DefaultUploadTimeout
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for local provider")
		}
	case ProviderS3:
		var errs []error
		if c.Bucket == "" {
			errs = append(errs, errors.New("storage: bucket is required for s3 provider"))
		}
		if c.Region == "" {
			errs = append(errs, errors.New("storage: region is required for s3 provider"))
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			errs = append(errs, errors.New("storage: access_key and secret_key must be set together"))
		}
		if len(errs) > 0 {
			return fmt.Errorf("storage: invalid s3 config: %w", errors.Join(errs...))
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
