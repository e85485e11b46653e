package config

import (
	"fmt"
	"strconv"
	"time"
)

// Keys lists the settings addressable through GetValue and SetValue, in display order.
var Keys = []string{
	"data_dir",
	"catalog_dir",
	"hooks_dir",
	"http_timeout",
	"probe_timeout",
	"max_retries",
	"user_agent",
	"keep_archive",
	"include_optional",
	"s3.region",
	"s3.endpoint",
	"s3.use_path_style",
	"log_level",
	"log_format",
}

// SetValue sets a configuration value by key and re-validates the result.
func (c *Config) SetValue(key, value string) error {
	s := &c.Settings
	switch key {
	case "data_dir":
		s.DataDir = value
	case "catalog_dir":
		s.CatalogDir = value
	case "hooks_dir":
		s.HooksDir = value
	case "http_timeout", "probe_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		if key == "http_timeout" {
			s.HTTPTimeout = d
		} else {
			s.ProbeTimeout = d
		}
	case "max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		s.MaxRetries = n
	case "user_agent":
		s.UserAgent = value
	case "keep_archive", "include_optional", "s3.use_path_style":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		switch key {
		case "keep_archive":
			s.KeepArchive = b
		case "include_optional":
			s.IncludeOptional = b
		default:
			s.S3.UsePathStyle = b
		}
	case "s3.region":
		s.S3.Region = value
	case "s3.endpoint":
		s.S3.Endpoint = value
	case "log_level":
		s.LogLevel = value
	case "log_format":
		s.LogFormat = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return c.Validate()
}

// GetValue returns the string form of a configuration value.
func (c *Config) GetValue(key string) (string, error) {
	s := c.Settings
	switch key {
	case "data_dir":
		return s.DataDir, nil
	case "catalog_dir":
		return s.CatalogDir, nil
	case "hooks_dir":
		return s.HooksDir, nil
	case "http_timeout":
		return s.HTTPTimeout.String(), nil
	case "probe_timeout":
		return s.ProbeTimeout.String(), nil
	case "max_retries":
		return strconv.Itoa(s.MaxRetries), nil
	case "user_agent":
		return s.UserAgent, nil
	case "keep_archive":
		return strconv.FormatBool(s.KeepArchive), nil
	case "include_optional":
		return strconv.FormatBool(s.IncludeOptional), nil
	case "s3.region":
		return s.S3.Region, nil
	case "s3.endpoint":
		return s.S3.Endpoint, nil
	case "s3.use_path_style":
		return strconv.FormatBool(s.S3.UsePathStyle), nil
	case "log_level":
		return s.LogLevel, nil
	case "log_format":
		return s.LogFormat, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}
