package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/source"
)

func (f *Fetcher) fetchRemote(ctx context.Context, loc source.Location, mode Mode) (Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return Content{}, &failure.FetchError{Source: loc.URL, Err: err}
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	if f.cfg.RequestTransform != nil {
		next, err := f.cfg.RequestTransform(req)
		switch {
		case errors.Is(err, failure.ErrSkipRequest):
			f.cfg.Logger.Debug("request skipped by transform", "source", loc.URL)
			return Content{}, ErrSkipped
		case err != nil:
			return Content{}, &failure.TransformError{Hook: "request", Source: loc.URL, Err: err}
		case next == nil:
			return Content{}, &failure.ConfigurationError{
				Option: "RequestTransform",
				Reason: fmt.Sprintf("returned no request for %s", loc.URL),
			}
		}
		req = next
	}

	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx); err != nil {
			return Content{}, &failure.FetchError{Source: loc.URL, Err: err}
		}
	}

	body, contentType, err := f.do(ctx, req, loc.URL)
	if err != nil {
		return Content{}, err
	}

	f.cfg.Logger.Debug("fetched remote resource", "source", loc.URL, "bytes", len(body))

	if mode == DataURI {
		mediaType := declaredMediaType(contentType)
		if mediaType == "" {
			mediaType = sniffMediaType(body)
		}
		return Content{Key: loc.Key(), Data: encodeDataURI(mediaType, body), MediaType: mediaType}, nil
	}

	text, err := decodeText(body, contentType)
	if err != nil {
		return Content{}, &failure.FetchError{Source: loc.URL, Err: err}
	}
	return Content{Key: loc.Key(), Data: text, MediaType: declaredMediaType(contentType)}, nil
}

// do performs the request through the override hook or the HTTP client.
// Errors name url, the reference as written before any request transform.
func (f *Fetcher) do(ctx context.Context, req *http.Request, url string) ([]byte, string, error) {
	if f.cfg.RequestResource != nil {
		res, err := f.cfg.RequestResource(ctx, req)
		var httpErr *failure.HTTPError
		switch {
		case errors.Is(err, failure.ErrSkipRequest):
			return nil, "", ErrSkipped
		case errors.As(err, &httpErr):
			return nil, "", httpErr
		case err != nil:
			return nil, "", &failure.FetchError{Source: url, Err: err}
		case res == nil:
			return nil, "", &failure.ConfigurationError{
				Option: "RequestResource",
				Reason: fmt.Sprintf("returned no resource for %s", url),
			}
		}
		return res.Body, res.ContentType, nil
	}

	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		return nil, "", &failure.FetchError{Source: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", &failure.HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	var r io.Reader = resp.Body
	if !resp.Uncompressed && strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, "", &failure.FetchError{Source: url, Err: err}
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, "", &failure.FetchError{Source: url, Err: err}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// decodeText converts body to UTF-8. Valid UTF-8 without a declared
// charset is returned unchanged; otherwise the declared or sniffed charset
// is used.
func decodeText(body []byte, contentType string) (string, error) {
	if !hasCharset(contentType) && utf8.Valid(body) {
		return strings.TrimPrefix(string(body), "\uFEFF"), nil
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}

func hasCharset(contentType string) bool {
	_, params, err := mime.ParseMediaType(contentType)
	return err == nil && params["charset"] != ""
}
