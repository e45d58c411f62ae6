package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	inliner "github.com/alnah/go-inliner"
	"github.com/alnah/go-inliner/internal/fileutil"
	"github.com/alnah/go-inliner/internal/markdown"
	"github.com/alnah/go-inliner/internal/minify"
)

// Sentinel errors for file processing.
var (
	ErrReadInput   = errors.New("failed to read input")
	ErrWriteOutput = errors.New("failed to write output")
)

// filePermissions is the mode of written outputs (rw-r--r--).
const filePermissions = 0o644

var utf8BOM = []byte("\xef\xbb\xbf")

// ProcessResult holds the outcome of a single input.
type ProcessResult struct {
	InputPath  string
	OutputPath string
	Err        error
	Duration   time.Duration
}

// processParams groups what every input of a batch shares.
type processParams struct {
	settings *settings
	markdown *markdown.Converter
	minifier *minify.Minifier
	stdin    io.Reader
	stdout   io.Writer
}

// resolveWorkers determines the worker count.
// Priority: explicit flag > GOMAXPROCS-based calculation.
func resolveWorkers(flagWorkers int) int {
	if flagWorkers > 0 {
		return flagWorkers
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs for containers)
	n := runtime.GOMAXPROCS(0)

	// Minimum 1, maximum 8
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}

// processBatch processes files concurrently with a fixed number of workers.
func processBatch(ctx context.Context, workers int, files []FileToProcess, params *processParams) []ProcessResult {
	if len(files) == 0 {
		return nil
	}

	if workers > len(files) {
		workers = len(files)
	}

	results := make([]ProcessResult, len(files))
	var wg sync.WaitGroup
	jobs := make(chan int, len(files))

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = ProcessResult{
						InputPath: files[idx].InputPath,
						Err:       ctx.Err(),
					}
					continue
				}
				results[idx] = processFile(ctx, files[idx], params)
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// processFile inlines a single input and writes the result. Nothing is
// written when inlining fails.
func processFile(ctx context.Context, f FileToProcess, params *processParams) ProcessResult {
	start := time.Now()
	result := ProcessResult{
		InputPath:  f.InputPath,
		OutputPath: f.OutputPath,
	}

	out, err := inlineFile(ctx, f, params)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	if f.OutputPath == "" {
		if _, err := io.WriteString(params.stdout, out); err != nil {
			result.Err = fmt.Errorf("%w: %v", ErrWriteOutput, err)
		}
		result.Duration = time.Since(start)
		return result
	}

	// #nosec G306 -- documents are meant to be readable
	if err := fileutil.WriteFileAtomic(f.OutputPath, []byte(out), filePermissions); err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	result.Duration = time.Since(start)
	return result
}

// inlineFile reads, converts and inlines one input.
func inlineFile(ctx context.Context, f FileToProcess, params *processParams) (string, error) {
	raw, err := readInput(f.InputPath, params.stdin)
	if err != nil {
		return "", err
	}

	relativeTo := params.settings.relativeTo
	if relativeTo == "" && f.InputPath != stdinPath {
		relativeTo = filepath.Dir(f.InputPath)
	}
	opts := append(append([]inliner.Option(nil), params.settings.options...), inliner.WithRelativeTo(relativeTo))
	in, err := inliner.NewInliner(opts...)
	if err != nil {
		return "", err
	}

	var out string
	switch f.Kind {
	case kindCSS:
		return in.CSS(ctx, inliner.DecodeCSS(raw))
	case kindMarkdown:
		title := strings.TrimSuffix(filepath.Base(f.InputPath), filepath.Ext(f.InputPath))
		doc, err := params.markdown.ToHTML(ctx, string(bytes.TrimPrefix(raw, utf8BOM)), title)
		if err != nil {
			return "", err
		}
		out, err = in.HTML(ctx, doc)
		if err != nil {
			return "", err
		}
	default:
		out, err = in.HTML(ctx, inliner.Decode(raw))
		if err != nil {
			return "", err
		}
	}

	if params.settings.minifyHTML {
		minified, err := params.minifier.HTML(out)
		if err != nil {
			return "", &inliner.TransformError{Hook: "minify", Source: f.InputPath, Err: err}
		}
		out = minified
	}
	return out, nil
}

// readInput reads a file, or stdin for stdinPath.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == stdinPath {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path) // #nosec G304 -- discovered path
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadInput, err)
	}
	return raw, nil
}

// ResultSummary holds the count of succeeded and failed inputs.
type ResultSummary struct {
	Succeeded int
	Failed    int
}

// countResults tallies succeeded and failed inputs.
func countResults(results []ProcessResult) ResultSummary {
	var summary ResultSummary
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary
}

// printResults outputs results and returns the failed count. Outputs sent to
// stdout are not announced, so the document stays the only thing there.
func printResults(results []ProcessResult, quiet, verbose bool, hint func(error) string, env *Environment) int {
	summary := countResults(results)

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(env.Stderr, "FAILED %s: %v%s\n", r.InputPath, r.Err, hint(r.Err))
			continue
		}

		if quiet || r.OutputPath == "" {
			continue
		}

		if verbose {
			fmt.Fprintf(env.Stdout, "%s -> %s (%v)\n", r.InputPath, r.OutputPath, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(env.Stdout, "Created %s\n", r.OutputPath)
		}
	}

	if !quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	}

	return summary.Failed
}
