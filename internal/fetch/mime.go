package fetch

import (
	"bytes"
	"encoding/base64"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html/charset"
)

// fontTypes covers extensions missing from the system MIME table on many hosts.
var fontTypes = map[string]string{
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
	".ico":   "image/x-icon",
	".svg":   "image/svg+xml",
}

// mediaTypeFor derives a media type from the file extension, sniffing the
// content when the extension is unknown.
func mediaTypeFor(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := fontTypes[ext]; ok {
		return t
	}
	if t := declaredMediaType(mime.TypeByExtension(ext)); t != "" {
		return t
	}
	return sniffMediaType(data)
}

// declaredMediaType strips parameters from a Content-Type value.
func declaredMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mediaType
}

func sniffMediaType(data []byte) string {
	return declaredMediaType(mimetype.Detect(data).String())
}

func encodeDataURI(mediaType string, data []byte) string {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDocument converts a byte buffer to UTF-8 text. A byte order mark or
// a <meta charset> declaration selects the encoding; valid UTF-8 is kept as is.
func DecodeDocument(b []byte) string {
	if utf8.Valid(b) {
		return strings.TrimPrefix(string(b), "\uFEFF")
	}
	enc, _, _ := charset.DetermineEncoding(b, "")
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// DecodeStylesheet converts a stylesheet to UTF-8. Valid UTF-8 is kept as
// is; otherwise a UTF-16 byte order mark, then a leading @charset rule,
// selects the encoding.
func DecodeStylesheet(b []byte) string {
	if utf8.Valid(b) {
		return strings.TrimPrefix(string(b), "\uFEFF")
	}
	enc, _, _ := charset.DetermineEncoding(b, "text/css")
	if !hasUTF16BOM(b) {
		if declared, _ := charset.Lookup(charsetRule(b)); declared != nil {
			enc = declared
		}
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return strings.TrimPrefix(string(out), "\uFEFF")
}

func hasUTF16BOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xFE, 0xFF}) || bytes.HasPrefix(b, []byte{0xFF, 0xFE})
}

// charsetRule returns the label of a leading `@charset "label";` rule.
func charsetRule(b []byte) string {
	const prefix = `@charset "`
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return ""
	}
	rest := b[len(prefix):]
	end := bytes.IndexByte(rest, '"')
	if end < 0 || !bytes.HasPrefix(rest[end:], []byte(`";`)) {
		return ""
	}
	return string(rest[:end])
}
