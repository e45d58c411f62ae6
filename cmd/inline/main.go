package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/alnah/go-inliner/internal/config"
	"github.com/alnah/go-inliner/internal/markdown"
	"github.com/alnah/go-inliner/internal/minify"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	env := DefaultEnv()

	flags, inputs, err := parseFlags(os.Args[1:])
	if err != nil {
		// pflag has already printed the error and usage.
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(ExitSuccess)
		}
		os.Exit(ExitUsage)
	}

	if flags.version {
		fmt.Fprintf(env.Stdout, "inline %s\n", Version)
		return
	}

	// Configure GOMAXPROCS with conditional logging
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	if flags.common.verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(env.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, flags, inputs, env)
	stop()

	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// batchError reports failed inputs. It unwraps to the first failure so the
// exit code follows its cause.
type batchError struct {
	failed int
	total  int
	first  error
}

func (e *batchError) Error() string {
	return fmt.Sprintf("%d of %d input(s) failed", e.failed, e.total)
}

func (e *batchError) Unwrap() error { return e.first }

// run loads configuration, discovers inputs and processes them. Per-input
// failures are printed with hints as they are reported.
func run(ctx context.Context, flags *cliFlags, inputs []string, env *Environment) error {
	if err := validateWorkers(flags.io.workers); err != nil {
		return err
	}

	// Load configuration
	cfg := config.DefaultConfig()
	if flags.common.config != "" {
		loaded, err := config.LoadConfig(flags.common.config)
		if err != nil {
			return fmt.Errorf("loading config: %w%s", err, hintFor(err, false, false))
		}
		cfg = loaded
	}

	// Merge CLI flags into config (CLI wins)
	s, err := mergeSettings(flags, cfg, env.Stderr)
	if err != nil {
		return err
	}

	files, err := discoverFiles(inputs, s.output, s.kind)
	if err != nil {
		return fmt.Errorf("discovering inputs: %w%s", err, hintFor(err, false, false))
	}

	md, err := markdown.New(markdown.DefaultStyle)
	if err != nil {
		return err
	}

	workers := resolveWorkers(flags.io.workers)
	s.logger.Debug("processing inputs", "files", len(files), "workers", workers)

	results := processBatch(ctx, workers, files, &processParams{
		settings: s,
		markdown: md,
		minifier: minify.New(),
		stdin:    env.Stdin,
		stdout:   env.Stdout,
	})

	hint := func(err error) string { return hintFor(err, s.relativeTo != "", s.strict) }
	if failed := printResults(results, flags.common.quiet, flags.common.verbose, hint, env); failed > 0 {
		var first error
		for _, r := range results {
			if r.Err != nil {
				first = r.Err
				break
			}
		}
		return &batchError{failed: failed, total: len(results), first: first}
	}

	return nil
}
