package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	inliner "github.com/alnah/go-inliner"
	"github.com/alnah/go-inliner/internal/config"
	"github.com/alnah/go-inliner/internal/policy"
)

func mustParse(t *testing.T, args ...string) *cliFlags {
	t.Helper()
	f, _, err := parseFlags(args)
	if err != nil {
		t.Fatalf("parseFlags(%v) error: %v", args, err)
	}
	return f
}

// optionsOf builds an Inliner from merged settings and returns its snapshot.
func optionsOf(t *testing.T, s *settings) inliner.Options {
	t.Helper()
	in, err := inliner.NewInliner(s.options...)
	if err != nil {
		t.Fatalf("NewInliner() error: %v", err)
	}
	return in.Options()
}

// ---------------------------------------------------------------------------
// TestMergeSettings - Flags over config over defaults
// ---------------------------------------------------------------------------

func TestMergeSettings(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Strict: true,
		Inline: config.InlineConfig{
			Images:    &config.Limit{Limit: policy.KB(2)},
			Imports:   &config.Limit{Limit: policy.On},
			Attribute: "x-embed",
		},
		Paths:  config.PathsConfig{RelativeTo: "site", Root: "/srv"},
		Minify: config.MinifyConfig{Styles: true, HTML: true},
		HTTP: config.HTTPConfig{
			UserAgent:   "bot/1",
			Concurrency: 3,
			Timeout:     "10s",
		},
		Output: config.OutputConfig{DefaultDir: "dist"},
	}

	t.Run("config fills unset flags", func(t *testing.T) {
		t.Parallel()

		s, err := mergeSettings(mustParse(t, "a.html"), cfg, io.Discard)
		if err != nil {
			t.Fatalf("mergeSettings() error: %v", err)
		}
		o := optionsOf(t, s)
		if o.Images != inliner.UpToKB(2) || o.Imports != inliner.Always || o.Scripts != inliner.Always {
			t.Errorf("limits = %v %v %v", o.Images, o.Imports, o.Scripts)
		}
		if o.InlineAttribute != "x-embed" || o.Root != "/srv" || o.UserAgent != "bot/1" || o.Concurrency != 3 {
			t.Errorf("options = %+v", o)
		}
		if !o.Strict || !o.MinifyStyles || o.MinifyScripts {
			t.Errorf("toggles = strict %v styles %v scripts %v", o.Strict, o.MinifyStyles, o.MinifyScripts)
		}
		if o.HTTPClient == nil || o.HTTPClient.Timeout.String() != "10s" {
			t.Errorf("HTTPClient = %+v, want 10s timeout", o.HTTPClient)
		}
		if s.relativeTo != "site" || s.output != "dist" || !s.minifyHTML {
			t.Errorf("settings = %+v", s)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		t.Parallel()

		f := mustParse(t, "--images", "false", "--inline-attribute", "data-x", "--relative-to", "web",
			"-o", "out", "--concurrency", "1", "--timeout", "1s", "--user-agent", "me", "a.html")
		s, err := mergeSettings(f, cfg, io.Discard)
		if err != nil {
			t.Fatalf("mergeSettings() error: %v", err)
		}
		o := optionsOf(t, s)
		if o.Images != inliner.Never || o.InlineAttribute != "data-x" || o.Concurrency != 1 || o.UserAgent != "me" {
			t.Errorf("options = %+v", o)
		}
		if o.HTTPClient.Timeout.String() != "1s" {
			t.Errorf("timeout = %v", o.HTTPClient.Timeout)
		}
		if s.relativeTo != "web" || s.output != "out" {
			t.Errorf("settings = %+v", s)
		}
	})

	t.Run("rate builds a shared limiter", func(t *testing.T) {
		t.Parallel()

		s, err := mergeSettings(mustParse(t, "--rate", "5", "a.html"), config.DefaultConfig(), io.Discard)
		if err != nil {
			t.Fatalf("mergeSettings() error: %v", err)
		}
		if o := optionsOf(t, s); o.Limiter == nil || float64(o.Limiter.Limit()) != 5 {
			t.Errorf("Limiter = %v, want 5 rps", o.Limiter)
		}
	})
}

func TestMergeSettings_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		cfg     *config.Config
		wantCfg bool  // *inliner.ConfigurationError
		wantErr error // sentinel
	}{
		{name: "bad timeout", args: []string{"--timeout", "soon"}, wantCfg: true},
		{name: "negative rate", args: []string{"--rate", "-1"}, wantCfg: true},
		{name: "bad header", args: []string{"--header", "no-colon"}, wantErr: ErrInvalidHeader},
		{name: "bad type", args: []string{"--type", "pdf"}, wantErr: ErrUnsupportedInput},
		{name: "invalid attribute", args: []string{"--inline-attribute", "bad name"}, wantCfg: true},
		{
			name:    "rebase with unbounded images from config",
			args:    []string{"--rebase-relative-to", "out"},
			cfg:     &config.Config{Inline: config.InlineConfig{Images: &config.Limit{Limit: policy.On}}},
			wantCfg: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			if cfg == nil {
				cfg = config.DefaultConfig()
			}
			_, err := mergeSettings(mustParse(t, tt.args...), cfg, io.Discard)
			if tt.wantCfg {
				var cfgErr *inliner.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("mergeSettings() error = %v, want *ConfigurationError", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("mergeSettings() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestHeaders - Request header injection
// ---------------------------------------------------------------------------

func TestMergeHeaders(t *testing.T) {
	t.Parallel()

	h, err := mergeHeaders(
		map[string]string{"authorization": "Bearer config", "X-Team": "docs"},
		[]string{"Authorization:  Bearer flag ", "X-Empty:"},
	)
	if err != nil {
		t.Fatalf("mergeHeaders() error: %v", err)
	}
	if got := h.Get("Authorization"); got != "Bearer flag" {
		t.Errorf("Authorization = %q, want flag value", got)
	}
	if got := h.Get("X-Team"); got != "docs" {
		t.Errorf("X-Team = %q", got)
	}
	if _, ok := h["X-Empty"]; !ok {
		t.Error("X-Empty missing")
	}
}

func TestHeaderTransform(t *testing.T) {
	t.Parallel()

	transform := headerTransform(http.Header{"X-Token": {"abc"}})
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://cdn.test/a.css", nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := transform(req)
	if err != nil {
		t.Fatalf("transform error: %v", err)
	}
	if got.Header.Get("X-Token") != "abc" {
		t.Errorf("X-Token = %q", got.Header.Get("X-Token"))
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		quiet, verbose bool
		wantWarn       bool
		wantDebug      bool
	}{
		{name: "default shows warnings", wantWarn: true},
		{name: "quiet hides warnings", quiet: true},
		{name: "verbose shows debug", verbose: true, wantWarn: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := newLogger(&buf, tt.quiet, tt.verbose)
			logger.Debug("dbg")
			logger.Warn("wrn")
			out := buf.String()
			if strings.Contains(out, "msg=wrn") != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", !tt.wantWarn, tt.wantWarn)
			}
			if strings.Contains(out, "msg=dbg") != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", !tt.wantDebug, tt.wantDebug)
			}
		})
	}
}
