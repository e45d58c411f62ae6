package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-inliner/internal/policy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inline.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return path
}

// ---------------------------------------------------------------------------
// TestLimit_UnmarshalYAML - Booleans, sizes and strings
// ---------------------------------------------------------------------------

func TestLimit_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		want    policy.Limit
		wantErr bool
	}{
		{name: "true", value: "true", want: policy.On},
		{name: "false", value: "false", want: policy.Off},
		{name: "kilobytes", value: "16", want: policy.KB(16)},
		{name: "zero disables", value: "0", want: policy.Off},
		{name: "string on", value: `"on"`, want: policy.On},
		{name: "string size", value: `"4"`, want: policy.KB(4)},
		{name: "negative", value: "-1", wantErr: true},
		{name: "garbage string", value: "lots", wantErr: true},
		{name: "float", value: "1.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadConfig(writeConfig(t, "inline:\n  images: "+tt.value+"\n"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.Inline.Images == nil {
				t.Fatal("Inline.Images not set")
			}
			if cfg.Inline.Images.Limit != tt.want {
				t.Errorf("Images = %+v, want %+v", cfg.Inline.Images.Limit, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestConfig_Validate - Field rules
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "empty config", mutate: func(*Config) {}},
		{
			name:    "attribute too long",
			mutate:  func(c *Config) { c.Inline.Attribute = strings.Repeat("a", MaxAttributeLength+1) },
			wantErr: ErrFieldTooLong,
		},
		{
			name:    "negative limit",
			mutate:  func(c *Config) { c.Inline.Scripts = &Limit{policy.Limit{Enabled: true, MaxKB: -3}} },
			wantErr: policy.ErrInvalidLimit,
		},
		{
			name:    "path too long",
			mutate:  func(c *Config) { c.Paths.Root = strings.Repeat("d", MaxPathLength+1) },
			wantErr: ErrFieldTooLong,
		},
		{
			name:   "valid timeout",
			mutate: func(c *Config) { c.HTTP.Timeout = "1m30s" },
		},
		{
			name:    "unparsable timeout",
			mutate:  func(c *Config) { c.HTTP.Timeout = "soon" },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.HTTP.Timeout = "-5s" },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.HTTP.Rate = -1 },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.HTTP.Concurrency = -1 },
			wantErr: ErrInvalidValue,
		},
		{
			name:   "headers",
			mutate: func(c *Config) { c.HTTP.Headers = map[string]string{"Authorization": "Bearer t"} },
		},
		{
			name:    "header name with colon",
			mutate:  func(c *Config) { c.HTTP.Headers = map[string]string{"X-A:": "v"} },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "header value too long",
			mutate:  func(c *Config) { c.HTTP.Headers = map[string]string{"X-A": strings.Repeat("v", MaxHeaderValueLength+1)} },
			wantErr: ErrFieldTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPConfig_TimeoutDuration(t *testing.T) {
	t.Parallel()

	if d, err := (HTTPConfig{}).TimeoutDuration(); err != nil || d != 0 {
		t.Errorf("empty timeout = %v, %v; want 0, nil", d, err)
	}
	if d, err := (HTTPConfig{Timeout: "250ms"}).TimeoutDuration(); err != nil || d != 250*time.Millisecond {
		t.Errorf("250ms timeout = %v, %v", d, err)
	}
}

// ---------------------------------------------------------------------------
// TestLoadConfig - File lookup and decoding
// ---------------------------------------------------------------------------

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty name returns ErrEmptyConfigName", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig("")
		if !errors.Is(err, ErrEmptyConfigName) {
			t.Errorf("error = %v, want ErrEmptyConfigName", err)
		}
	})

	t.Run("full file", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `strict: true
inline:
  images: 4
  svgs: false
  imports: true
  attribute: x-embed
paths:
  relativeTo: site
  rebaseRelativeTo: dist
  root: .
minify:
  scripts: true
  html: true
http:
  userAgent: bot/1.0
  timeout: 10s
  rate: 2.5
  concurrency: 4
  headers:
    Authorization: Bearer t
output:
  defaultDir: out
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if !cfg.Strict {
			t.Error("Strict = false, want true")
		}
		if cfg.Inline.Images.Limit != policy.KB(4) || cfg.Inline.SVGs.Limit != policy.Off || cfg.Inline.Imports.Limit != policy.On {
			t.Errorf("Inline = %+v", cfg.Inline)
		}
		if cfg.Inline.Scripts != nil {
			t.Errorf("Scripts = %+v, want unset", cfg.Inline.Scripts)
		}
		if cfg.Inline.Attribute != "x-embed" {
			t.Errorf("Attribute = %q", cfg.Inline.Attribute)
		}
		if cfg.Paths != (PathsConfig{RelativeTo: "site", RebaseRelativeTo: "dist", Root: "."}) {
			t.Errorf("Paths = %+v", cfg.Paths)
		}
		if !cfg.Minify.Scripts || cfg.Minify.Styles || !cfg.Minify.HTML {
			t.Errorf("Minify = %+v", cfg.Minify)
		}
		if cfg.HTTP.UserAgent != "bot/1.0" || cfg.HTTP.Rate != 2.5 || cfg.HTTP.Concurrency != 4 {
			t.Errorf("HTTP = %+v", cfg.HTTP)
		}
		if cfg.HTTP.Headers["Authorization"] != "Bearer t" {
			t.Errorf("Headers = %v", cfg.HTTP.Headers)
		}
		if cfg.Output.DefaultDir != "out" {
			t.Errorf("Output.DefaultDir = %q", cfg.Output.DefaultDir)
		}
	})

	t.Run("nonexistent file path returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig("/nonexistent/path/config.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
		var nf *NotFoundError
		if !errors.As(err, &nf) || len(nf.Tried) != 1 {
			t.Errorf("error = %#v, want *NotFoundError with one path", err)
		}
	})

	t.Run("unknown name lists searched paths", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig("no-such-config-name-xyz")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("error = %v, want *NotFoundError", err)
		}
		if len(nf.Tried) < 2 || nf.Tried[0] != "no-such-config-name-xyz.yaml" {
			t.Errorf("Tried = %v", nf.Tried)
		}
	})

	t.Run("invalid YAML returns ErrConfigParse", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig(writeConfig(t, "inline: [unclosed"))
		if !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("unknown field returns ErrConfigParse in strict mode", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig(writeConfig(t, "strict: true\nverbose: true\n"))
		if !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("validation runs after decoding", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig(writeConfig(t, "http:\n  timeout: soon\n"))
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("error = %v, want ErrInvalidValue", err)
		}
	})
}
