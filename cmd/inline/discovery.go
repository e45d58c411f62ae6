package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-inliner/internal/fileutil"
)

// Sentinel errors for input discovery.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrUnsupportedInput   = errors.New("unsupported input type")
	ErrOutputRequired     = errors.New("several inputs need --output to name a directory")
	ErrStdinNotAlone      = errors.New("stdin (-) cannot be combined with other inputs")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// stdinPath names standard input on the command line.
const stdinPath = "-"

// MaxWorkers caps --workers.
const MaxWorkers = 64

// inputKind is the document type of an input.
type inputKind int

const (
	kindUnknown inputKind = iota
	kindHTML
	kindCSS
	kindMarkdown
)

func (k inputKind) String() string {
	switch k {
	case kindHTML:
		return "html"
	case kindCSS:
		return "css"
	case kindMarkdown:
		return "md"
	}
	return "unknown"
}

// parseKind reads the --type flag. Empty means "from the extension".
func parseKind(s string) (inputKind, error) {
	switch strings.ToLower(s) {
	case "":
		return kindUnknown, nil
	case "html", "htm":
		return kindHTML, nil
	case "css":
		return kindCSS, nil
	case "md", "markdown":
		return kindMarkdown, nil
	}
	return kindUnknown, fmt.Errorf("%w: --type %q (want html, css or md)", ErrUnsupportedInput, s)
}

// kindFromExt maps a file extension to an input kind.
func kindFromExt(path string) inputKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return kindHTML
	case ".css":
		return kindCSS
	case ".md", ".markdown":
		return kindMarkdown
	}
	return kindUnknown
}

// FileToProcess represents a single input to inline.
type FileToProcess struct {
	InputPath  string // stdinPath for standard input
	OutputPath string // empty writes to stdout
	Kind       inputKind

	baseDir string // directory input the file was found under
}

// discoverFiles expands inputs into the files to process. A single input
// without an output goes to stdout; several inputs or a directory need an
// output directory. forced overrides extension detection.
func discoverFiles(inputs []string, output string, forced inputKind) ([]FileToProcess, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}

	for _, in := range inputs {
		if in == stdinPath && len(inputs) > 1 {
			return nil, ErrStdinNotAlone
		}
	}
	if inputs[0] == stdinPath {
		kind := forced
		if kind == kindUnknown {
			kind = kindHTML
		}
		return []FileToProcess{{InputPath: stdinPath, OutputPath: output, Kind: kind}}, nil
	}

	var files []FileToProcess
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := walkDir(in, forced)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		kind := forced
		if kind == kindUnknown {
			kind = kindFromExt(in)
		}
		if kind == kindUnknown {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, in)
		}
		files = append(files, FileToProcess{InputPath: in, Kind: kind})
	}

	single := len(inputs) == 1 && len(files) == 1 && files[0].InputPath == inputs[0]
	if single {
		files[0].OutputPath = resolveOutputPath(files[0], output, "")
		return files, nil
	}
	if output == "" || isOutputFile(output) {
		return nil, ErrOutputRequired
	}
	for i := range files {
		files[i].OutputPath = resolveOutputPath(files[i], output, files[i].baseDir)
	}
	return files, nil
}

// walkDir finds supported documents under dir.
func walkDir(dir string, forced inputKind) ([]FileToProcess, error) {
	var files []FileToProcess
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		kind := kindFromExt(path)
		if kind == kindUnknown {
			return nil
		}
		if forced != kindUnknown {
			kind = forced
		}
		files = append(files, FileToProcess{InputPath: path, Kind: kind, baseDir: dir})
		return nil
	})
	return files, err
}

// resolveOutputPath determines where an input's result is written.
func resolveOutputPath(f FileToProcess, output, baseInputDir string) string {
	if output == "" {
		return ""
	}
	if isOutputFile(output) {
		return output
	}

	name := filepath.Base(f.InputPath)
	if f.Kind == kindMarkdown {
		name = fileutil.ReplaceExt(name, ".html")
	}

	if baseInputDir != "" {
		relPath, err := filepath.Rel(baseInputDir, f.InputPath)
		if err == nil {
			return filepath.Join(output, filepath.Dir(relPath), name)
		}
	}

	return filepath.Join(output, name)
}

// isOutputFile reports whether an --output value names a file rather than
// a directory.
func isOutputFile(output string) bool {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".html", ".htm", ".css":
		return true
	}
	return false
}

// validateWorkers checks that the worker count is within valid bounds.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, n)
	}
	if n > MaxWorkers {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, MaxWorkers)
	}
	return nil
}
