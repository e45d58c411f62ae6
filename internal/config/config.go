// Package config loads inliner settings from YAML files for the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-inliner/internal/fileutil"
	"github.com/alnah/go-inliner/internal/policy"
	"github.com/alnah/go-inliner/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxPathLength        = 4096
	MaxAttributeLength   = 100
	MaxUserAgentLength   = 256
	MaxHeaderNameLength  = 256
	MaxHeaderValueLength = 8192
	MaxHeaders           = 64
	MaxDurationLength    = 20 // "1m30s"
)

// NotFoundError lists the locations searched for a config name.
type NotFoundError struct {
	Tried []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: tried %s", ErrConfigNotFound, strings.Join(e.Tried, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrConfigNotFound }

// Config holds the settings a config file may carry. Zero values mean
// "not set": command-line flags and library defaults fill them.
type Config struct {
	Strict bool         `yaml:"strict"`
	Inline InlineConfig `yaml:"inline"`
	Paths  PathsConfig  `yaml:"paths"`
	Minify MinifyConfig `yaml:"minify"`
	HTTP   HTTPConfig   `yaml:"http"`
	Output OutputConfig `yaml:"output"`
}

// InlineConfig holds per-type inlining limits. Each accepts a boolean or a
// size in kilobytes.
type InlineConfig struct {
	Images    *Limit `yaml:"images"`
	SVGs      *Limit `yaml:"svgs"`
	Scripts   *Limit `yaml:"scripts"`
	Links     *Limit `yaml:"links"`
	Imports   *Limit `yaml:"imports"`
	Attribute string `yaml:"attribute"` // Marker attribute (default: "data-inline")
}

// PathsConfig holds path resolution settings.
type PathsConfig struct {
	RelativeTo       string `yaml:"relativeTo"`       // Empty = input's directory
	RebaseRelativeTo string `yaml:"rebaseRelativeTo"` // Empty = no rebasing
	Root             string `yaml:"root"`             // Empty = unconfined reads
}

// MinifyConfig toggles minification of inlined content and output.
type MinifyConfig struct {
	Scripts bool `yaml:"scripts"`
	Styles  bool `yaml:"styles"`
	HTML    bool `yaml:"html"`
}

// HTTPConfig holds remote fetch settings.
type HTTPConfig struct {
	UserAgent   string            `yaml:"userAgent"`
	Timeout     string            `yaml:"timeout"`     // Go duration, e.g. "30s"
	Rate        float64           `yaml:"rate"`        // Requests per second (0 = unlimited)
	Concurrency int               `yaml:"concurrency"` // Parallel fetches per document (0 = unlimited)
	Headers     map[string]string `yaml:"headers"`
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Empty = next to the input
}

// Limit is a policy.Limit read from YAML as a boolean, a kilobyte count or
// any string ParseLimit accepts.
type Limit struct {
	policy.Limit
}

// UnmarshalYAML implements the goccy/go-yaml InterfaceUnmarshaler.
func (l *Limit) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		if v {
			l.Limit = policy.On
		} else {
			l.Limit = policy.Off
		}
		return nil
	case uint64:
		l.Limit = policy.KB(int(v))
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: negative threshold %d", policy.ErrInvalidLimit, v)
		}
		l.Limit = policy.KB(int(v))
		return nil
	case int:
		if v < 0 {
			return fmt.Errorf("%w: negative threshold %d", policy.ErrInvalidLimit, v)
		}
		l.Limit = policy.KB(v)
		return nil
	case string:
		parsed, err := policy.ParseLimit(v)
		if err != nil {
			return err
		}
		l.Limit = parsed
		return nil
	}
	return fmt.Errorf("%w: %v (want a boolean or a size in KB)", policy.ErrInvalidLimit, raw)
}

// Validate checks field lengths and values.
// Called automatically by LoadConfig, but available for callers
// who construct Config manually.
func (c *Config) Validate() error {
	if err := validateFieldLength("inline.attribute", c.Inline.Attribute, MaxAttributeLength); err != nil {
		return err
	}
	limits := []struct {
		field string
		limit *Limit
	}{
		{"inline.images", c.Inline.Images},
		{"inline.svgs", c.Inline.SVGs},
		{"inline.scripts", c.Inline.Scripts},
		{"inline.links", c.Inline.Links},
		{"inline.imports", c.Inline.Imports},
	}
	for _, l := range limits {
		if l.limit == nil {
			continue
		}
		if err := l.limit.Validate(); err != nil {
			return fmt.Errorf("%s: %w", l.field, err)
		}
	}

	// Validate paths
	if err := validateFieldLength("paths.relativeTo", c.Paths.RelativeTo, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("paths.rebaseRelativeTo", c.Paths.RebaseRelativeTo, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("paths.root", c.Paths.Root, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("output.defaultDir", c.Output.DefaultDir, MaxPathLength); err != nil {
		return err
	}

	// Validate http fields
	if err := validateFieldLength("http.userAgent", c.HTTP.UserAgent, MaxUserAgentLength); err != nil {
		return err
	}
	if err := validateFieldLength("http.timeout", c.HTTP.Timeout, MaxDurationLength); err != nil {
		return err
	}
	if _, err := c.HTTP.TimeoutDuration(); err != nil {
		return err
	}
	if c.HTTP.Rate < 0 {
		return fmt.Errorf("%w: http.rate must not be negative, got %.2f", ErrInvalidValue, c.HTTP.Rate)
	}
	if c.HTTP.Concurrency < 0 {
		return fmt.Errorf("%w: http.concurrency must not be negative, got %d", ErrInvalidValue, c.HTTP.Concurrency)
	}
	if len(c.HTTP.Headers) > MaxHeaders {
		return fmt.Errorf("%w: http.headers has %d entries (max %d)", ErrInvalidValue, len(c.HTTP.Headers), MaxHeaders)
	}
	for name, value := range c.HTTP.Headers {
		if name == "" || strings.ContainsAny(name, " \t:\r\n") {
			return fmt.Errorf("%w: http.headers: invalid header name %q", ErrInvalidValue, name)
		}
		if err := validateFieldLength("http.headers."+name, name, MaxHeaderNameLength); err != nil {
			return err
		}
		if err := validateFieldLength("http.headers."+name, value, MaxHeaderValueLength); err != nil {
			return err
		}
	}

	return nil
}

// TimeoutDuration parses http.timeout. An empty value is zero (no timeout).
func (h HTTPConfig) TimeoutDuration() (time.Duration, error) {
	if h.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(h.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: http.timeout: %v", ErrInvalidValue, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: http.timeout must not be negative, got %s", ErrInvalidValue, d)
	}
	return d, nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns a configuration with nothing set.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.Open(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Tried: []string{configPath}}
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cfg Config
	if err := yamlutil.ReadStrict(f, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-inliner/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2) // 2 locations

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-inliner", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", &NotFoundError{Tried: triedPaths}
}
