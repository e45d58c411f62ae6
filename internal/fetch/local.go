package fetch

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/source"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (f *Fetcher) fetchLocal(loc source.Location, mode Mode) (Content, error) {
	if err := f.checkRoot(loc.Path); err != nil {
		return Content{}, &failure.NotFoundError{Source: loc.Source, Path: loc.Path, Err: err}
	}

	data, err := f.cfg.ReadFile(loc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || isDirError(err) {
			return Content{}, &failure.NotFoundError{Source: loc.Source, Path: loc.Path, Err: err}
		}
		return Content{}, &failure.FetchError{Source: loc.Source, Err: err}
	}

	f.cfg.Logger.Debug("read local resource", "source", loc.Source, "path", loc.Path, "bytes", len(data))

	if mode == DataURI {
		mediaType := mediaTypeFor(loc.Path, data)
		return Content{Key: loc.Key(), Data: encodeDataURI(mediaType, data), MediaType: mediaType}, nil
	}
	if strings.EqualFold(filepath.Ext(loc.Path), ".css") {
		return Content{Key: loc.Key(), Data: DecodeStylesheet(data)}, nil
	}
	return Content{Key: loc.Key(), Data: string(bytes.TrimPrefix(data, utf8BOM))}, nil
}

// checkRoot rejects paths outside the configured root.
func (f *Fetcher) checkRoot(path string) error {
	if f.cfg.Root == "" {
		return nil
	}
	root, err := filepath.Abs(f.cfg.Root)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return failure.ErrOutsideRoot
	}
	return nil
}

// isDirError reports a read of a directory, which is a missing file from
// the document's point of view.
func isDirError(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && strings.Contains(pathErr.Err.Error(), "is a directory")
}
