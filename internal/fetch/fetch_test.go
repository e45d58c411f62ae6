package fetch

// Notes:
// - Remote origins are httptest servers; no test touches the network.
// - Protocol-relative rewriting happens in the source package and is tested there.

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/source"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func locate(t *testing.T, relativeTo, src string) source.Location {
	t.Helper()
	base, err := source.NewBase(relativeTo)
	if err != nil {
		t.Fatal(err)
	}
	loc, err := base.Locate(src)
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

// ---------------------------------------------------------------------------
// TestFetchLocal - Text and data URI reads from disk
// ---------------------------------------------------------------------------

func TestFetchLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "logo.png", pngHeader)
	writeFile(t, dir, "site.css", append([]byte{0xEF, 0xBB, 0xBF}, "body{}"...))
	writeFile(t, dir, "fonts/a.woff2", []byte("wOF2"))
	writeFile(t, dir, "blob.unknownext", pngHeader)

	f := New(Config{Logger: quietLogger()})

	tests := []struct {
		name string
		src  string
		mode Mode
		want string
	}{
		{
			name: "png as data uri",
			src:  "logo.png",
			mode: DataURI,
			want: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
		},
		{
			name: "text drops BOM",
			src:  "site.css?v=1",
			mode: Text,
			want: "body{}",
		},
		{
			name: "font type from built-in table",
			src:  "fonts/a.woff2",
			mode: DataURI,
			want: "data:font/woff2;base64," + base64.StdEncoding.EncodeToString([]byte("wOF2")),
		},
		{
			name: "unknown extension is sniffed",
			src:  "blob.unknownext",
			mode: DataURI,
			want: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := f.Fetch(context.Background(), locate(t, dir, tt.src), tt.mode)
			if err != nil {
				t.Fatalf("Fetch() error: %v", err)
			}
			if got.Data != tt.want {
				t.Errorf("Data = %q, want %q", got.Data, tt.want)
			}
		})
	}
}

func TestFetchLocal_NotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := New(Config{Logger: quietLogger()})

	_, err := f.Fetch(context.Background(), locate(t, dir, "missing.css"), Text)

	var notFound *failure.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if !strings.Contains(err.Error(), "missing.css") {
		t.Errorf("error %q does not name the source", err.Error())
	}
}

func TestFetchLocal_Root(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	root := filepath.Join(parent, "site")
	writeFile(t, parent, "secret.txt", []byte("s3cr3t"))
	writeFile(t, root, "ok.txt", []byte("ok"))

	f := New(Config{Root: root, Logger: quietLogger()})

	if _, err := f.Fetch(context.Background(), locate(t, root, "ok.txt"), Text); err != nil {
		t.Fatalf("Fetch(inside root) error: %v", err)
	}

	_, err := f.Fetch(context.Background(), locate(t, root, "../secret.txt"), Text)
	if !errors.Is(err, failure.ErrOutsideRoot) {
		t.Fatalf("Fetch(outside root) error = %v, want ErrOutsideRoot", err)
	}
}

// ---------------------------------------------------------------------------
// TestFetchRemote - HTTP origins through the injectable client
// ---------------------------------------------------------------------------

func TestFetchRemote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/site.css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
			_, _ = io.WriteString(w, "body{color:red}")
		case "/latin1.css":
			w.Header().Set("Content-Type", "text/css; charset=iso-8859-1")
			_, _ = w.Write([]byte("a{content:\"\xe9\"}"))
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngHeader)
		case "/untyped":
			w.Header()["Content-Type"] = nil
			_, _ = w.Write(pngHeader)
		case "/gzipped.js":
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			_, _ = io.WriteString(gz, "console.log(1)")
			_ = gz.Close()
		case "/ua":
			_, _ = io.WriteString(w, r.UserAgent())
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Client: srv.Client(), UserAgent: "inliner-test", Logger: quietLogger()})

	tests := []struct {
		name string
		path string
		mode Mode
		want string
	}{
		{"text", "/site.css", Text, "body{color:red}"},
		{"declared charset is decoded", "/latin1.css", Text, "a{content:\"é\"}"},
		{"binary uses declared type", "/logo.png", DataURI, "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)},
		{"missing type is sniffed", "/untyped", DataURI, "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)},
		{"gzip is decompressed", "/gzipped.js", Text, "console.log(1)"},
		{"user agent applied", "/ua", Text, "inliner-test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := f.Fetch(context.Background(), locate(t, srv.URL, tt.path), tt.mode)
			if err != nil {
				t.Fatalf("Fetch() error: %v", err)
			}
			if got.Data != tt.want {
				t.Errorf("Data = %q, want %q", got.Data, tt.want)
			}
		})
	}
}

func TestFetchRemote_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	f := New(Config{Client: srv.Client(), Logger: quietLogger()})
	loc := locate(t, srv.URL, "/missing.css")

	_, err := f.Fetch(context.Background(), loc, Text)

	var httpErr *failure.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", httpErr.StatusCode)
	}
	if want := loc.URL + " returned http 404"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// ---------------------------------------------------------------------------
// TestRequestTransform - Skip, misconfiguration and failure outcomes
// ---------------------------------------------------------------------------

func TestRequestTransform(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Header.Get("X-Token"))
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		name      string
		transform RequestTransform
		want      string
		check     func(t *testing.T, err error)
	}{
		{
			name: "header added",
			transform: func(req *http.Request) (*http.Request, error) {
				req.Header.Set("X-Token", "abc")
				return req, nil
			},
			want: "abc",
		},
		{
			name: "skip",
			transform: func(*http.Request) (*http.Request, error) {
				return nil, failure.ErrSkipRequest
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrSkipped) {
					t.Errorf("error = %v, want ErrSkipped", err)
				}
			},
		},
		{
			name: "nil request is a configuration error",
			transform: func(*http.Request) (*http.Request, error) {
				return nil, nil
			},
			check: func(t *testing.T, err error) {
				var cfgErr *failure.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error = %v, want *ConfigurationError", err)
				}
			},
		},
		{
			name: "failure is a transform error",
			transform: func(*http.Request) (*http.Request, error) {
				return nil, errors.New("signing failed")
			},
			check: func(t *testing.T, err error) {
				var trErr *failure.TransformError
				if !errors.As(err, &trErr) {
					t.Errorf("error = %v, want *TransformError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := New(Config{Client: srv.Client(), RequestTransform: tt.transform, Logger: quietLogger()})
			got, err := f.Fetch(context.Background(), locate(t, srv.URL, "/x"), Text)
			if tt.check != nil {
				tt.check(t, err)
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error: %v", err)
			}
			if got.Data != tt.want {
				t.Errorf("Data = %q, want %q", got.Data, tt.want)
			}
		})
	}
}

func TestRequestTransform_ErrorNamesSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	sign := func(req *http.Request) (*http.Request, error) {
		q := req.URL.Query()
		q.Set("sig", "secret")
		req.URL.RawQuery = q.Encode()
		return req, nil
	}
	f := New(Config{Client: srv.Client(), RequestTransform: sign, Logger: quietLogger()})
	loc := locate(t, srv.URL, "/missing.css")

	_, err := f.Fetch(context.Background(), loc, Text)

	var httpErr *failure.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.URL != loc.URL {
		t.Errorf("URL = %q, want %q as written", httpErr.URL, loc.URL)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("Error() = %q leaks the rewritten request", err.Error())
	}
}

// ---------------------------------------------------------------------------
// TestRequestResource - Transport override
// ---------------------------------------------------------------------------

func TestRequestResource(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []string
	hook := func(_ context.Context, req *http.Request) (*Resource, error) {
		mu.Lock()
		seen = append(seen, req.URL.String())
		mu.Unlock()
		switch req.URL.Query().Get("mode") {
		case "skip":
			return nil, failure.ErrSkipRequest
		case "nil":
			return nil, nil
		case "fail":
			return nil, errors.New("offline")
		}
		return &Resource{Body: pngHeader, ContentType: "image/png"}, nil
	}

	f := New(Config{RequestResource: hook, Logger: quietLogger()})
	ctx := context.Background()

	got, err := f.Fetch(ctx, locate(t, "", "http://example.com/assets/icon.png"), DataURI)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if !strings.HasPrefix(got.Data, "data:image/png;base64,") {
		t.Errorf("Data = %q, want png data uri", got.Data)
	}

	if _, err := f.Fetch(ctx, locate(t, "", "http://example.com/icon.png?mode=skip"), DataURI); !errors.Is(err, ErrSkipped) {
		t.Errorf("skip: error = %v, want ErrSkipped", err)
	}

	var cfgErr *failure.ConfigurationError
	if _, err := f.Fetch(ctx, locate(t, "", "http://example.com/icon.png?mode=nil"), DataURI); !errors.As(err, &cfgErr) {
		t.Errorf("nil: error = %v, want *ConfigurationError", err)
	}

	var fetchErr *failure.FetchError
	if _, err := f.Fetch(ctx, locate(t, "", "http://example.com/icon.png?mode=fail"), DataURI); !errors.As(err, &fetchErr) {
		t.Errorf("fail: error = %v, want *FetchError", err)
	}

	if seen[0] != "http://example.com/assets/icon.png" {
		t.Errorf("first request = %q", seen[0])
	}
}

// ---------------------------------------------------------------------------
// TestSession - One fetch per key and mode
// ---------------------------------------------------------------------------

func TestSession(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var reads atomic.Int32
	f := New(Config{
		Logger: quietLogger(),
		ReadFile: func(name string) ([]byte, error) {
			reads.Add(1)
			if filepath.Base(name) == "missing.png" {
				return nil, os.ErrNotExist
			}
			return bytes.Clone(pngHeader), nil
		},
	})
	s := f.NewSession()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := "logo.png"
			if i%2 == 1 {
				src = "./logo.png?v=2"
			}
			c, err := s.Fetch(ctx, locate(t, dir, src), DataURI)
			if err != nil {
				t.Errorf("Fetch() error: %v", err)
				return
			}
			results[i] = c.Data
		}(i)
	}
	wg.Wait()

	if n := reads.Load(); n != 1 {
		t.Errorf("reads = %d, want 1", n)
	}
	for i, r := range results {
		if r != results[0] {
			t.Errorf("result[%d] differs from result[0]", i)
		}
	}

	if _, err := s.Fetch(ctx, locate(t, dir, "logo.png"), Text); err != nil {
		t.Fatal(err)
	}
	if n := reads.Load(); n != 2 {
		t.Errorf("reads after text fetch = %d, want 2 (mode is part of the key)", n)
	}

	for range 2 {
		if _, err := s.Fetch(ctx, locate(t, dir, "missing.png"), DataURI); err == nil {
			t.Fatal("Fetch(missing) error = nil")
		}
	}
	if n := reads.Load(); n != 3 {
		t.Errorf("reads after failures = %d, want 3 (failures are cached)", n)
	}
}

func TestDecodeDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf-8 kept", []byte("<p>héllo</p>"), "<p>héllo</p>"},
		{"utf-8 BOM dropped", []byte("\xef\xbb\xbf<p>x</p>"), "<p>x</p>"},
		{"meta charset", []byte(`<meta charset="iso-8859-1"><p>caf` + "\xe9" + `</p>`), `<meta charset="iso-8859-1"><p>café</p>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DecodeDocument(tt.in); got != tt.want {
				t.Errorf("DecodeDocument() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeStylesheet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf-8 kept", []byte("a::before{content:\"é\"}"), "a::before{content:\"é\"}"},
		{"utf-8 BOM dropped", []byte("\xef\xbb\xbfa{}"), "a{}"},
		{"charset rule", []byte(`@charset "iso-8859-1";a::before{content:"` + "\xe9" + `"}`), `@charset "iso-8859-1";a::before{content:"é"}`},
		{"utf-16 BOM wins", []byte("\xff\xfea\x00{\x00}\x00"), "a{}"},
		{"undeclared falls back to windows-1252", []byte("a{content:\"\x80\"}"), "a{content:\"€\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DecodeStylesheet(tt.in); got != tt.want {
				t.Errorf("DecodeStylesheet() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchLocal_StylesheetCharset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "latin1.css", []byte(`@charset "iso-8859-1";p::after{content:"caf`+"\xe9"+`"}`))
	f := New(Config{Logger: quietLogger()})

	got, err := f.Fetch(context.Background(), locate(t, dir, "latin1.css"), Text)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if !strings.HasSuffix(got.Data, `content:"café"}`) {
		t.Errorf("Data = %q, want decoded text", got.Data)
	}
}
