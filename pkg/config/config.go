// Package config provides configuration management for datafetch.
// It handles loading, validating and saving the application settings file:
// where datasets are stored, where catalogs are read from, network timeouts,
// the retry budget and logging. Missing values fall back to sensible defaults.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/datafetch/pkg/auth"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/fsutil"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	// Storage
	DataDir    string `yaml:"data_dir,omitempty"`    // datasets land in <data_dir>/<dataset>
	CatalogDir string `yaml:"catalog_dir,omitempty"` // holds <dataset>.yaml catalogs
	HooksDir   string `yaml:"hooks_dir,omitempty"`   // post-download.tengo / post-extract.tengo, empty disables

	// Network settings
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	UserAgent    string        `yaml:"user_agent,omitempty"`

	// Download behaviour defaults, overridable per command.
	KeepArchive     bool `yaml:"keep_archive"`
	IncludeOptional bool `yaml:"include_optional"`

	S3 S3Settings `yaml:"s3,omitempty"`

	// Auth holds credentials for hosts that require registration.
	Auth []auth.Credential `yaml:"auth,omitempty"`

	// Output settings
	LogLevel  string `yaml:"log_level"`  // trace, debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
}

// S3Settings configures the client used for s3:// catalog URLs.
type S3Settings struct {
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
}

// Default configuration values.
const (
	// DefaultHTTPTimeout bounds connecting, waiting for headers and stalls
	// between body reads. Transfers themselves may take as long as they need.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultProbeTimeout bounds a single metadata probe.
	DefaultProbeTimeout = 10 * time.Second

	// DefaultMaxRetries is the retry budget per part.
	DefaultMaxRetries = 3

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "datafetch/1.0"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir, err := fsutil.GetDataDir()
	if err != nil {
		dataDir = "."
	}

	return &Config{
		Settings: Settings{
			DataDir:      filepath.Join(dataDir, "datasets"),
			CatalogDir:   filepath.Join(dataDir, "catalogs"),
			HTTPTimeout:  DefaultHTTPTimeout,
			ProbeTimeout: DefaultProbeTimeout,
			MaxRetries:   DefaultMaxRetries,
			UserAgent:    DefaultUserAgent,
			LogLevel:     "info",
			LogFormat:    "text",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	// Decode over the defaults so absent keys keep their default values.
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return config, nil
}

// SaveConfig saves configuration to a file, replacing it atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeSecure)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	s := c.Settings
	if s.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout cannot be negative")
	}
	if s.ProbeTimeout < 0 {
		return fmt.Errorf("probe_timeout cannot be negative")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if _, err := auth.NewSet(s.Auth); err != nil {
		return err
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[s.LogFormat] {
		return fmt.Errorf("invalid log_format %q (valid: text, json)", s.LogFormat)
	}
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return fmt.Errorf("invalid log_level %q (valid: trace, debug, info, warn, error)", s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// DatasetDir returns the flat directory a dataset is downloaded into.
func (c *Config) DatasetDir(dataset string) string {
	return filepath.Join(c.Settings.DataDir, dataset)
}

// applyDefaults fills in values that were explicitly left blank.
// max_retries is left alone: zero is a valid budget (a single attempt).
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.DataDir == "" {
		c.Settings.DataDir = defaults.Settings.DataDir
	}
	if c.Settings.CatalogDir == "" {
		c.Settings.CatalogDir = defaults.Settings.CatalogDir
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.ProbeTimeout == 0 {
		c.Settings.ProbeTimeout = defaults.Settings.ProbeTimeout
	}
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Settings.LogFormat == "" {
		c.Settings.LogFormat = defaults.Settings.LogFormat
	}
}
