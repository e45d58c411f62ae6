package main

import (
	"os"

	flag "github.com/spf13/pflag"

	inliner "github.com/alnah/go-inliner"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// ioFlags holds input and output flags.
type ioFlags struct {
	output  string
	workers int
	kind    string // forces the input kind; required to read stdin as CSS
}

// limitFlag is a pflag.Value reading an inlining limit.
type limitFlag struct {
	limit inliner.Limit
}

func (l *limitFlag) String() string { return l.limit.String() }

func (l *limitFlag) Set(s string) error {
	v, err := inliner.ParseLimit(s)
	if err != nil {
		return err
	}
	l.limit = v
	return nil
}

func (l *limitFlag) Type() string { return "limit" }

// inlineFlags holds per-type policies and markers.
type inlineFlags struct {
	images    limitFlag
	svgs      limitFlag
	scripts   limitFlag
	links     limitFlag
	imports   limitFlag
	attribute string
	strict    bool
}

// pathFlags holds path resolution flags.
type pathFlags struct {
	relativeTo       string
	rebaseRelativeTo string
	root             string
}

// minifyFlags toggles minification.
type minifyFlags struct {
	scripts bool
	styles  bool
	html    bool
}

// httpFlags holds remote fetch flags.
type httpFlags struct {
	userAgent   string
	headers     []string
	timeout     string
	rate        float64
	concurrency int
}

// cliFlags holds all flags of the inline command.
type cliFlags struct {
	common  commonFlags
	io      ioFlags
	inline  inlineFlags
	paths   pathFlags
	minify  minifyFlags
	http    httpFlags
	version bool

	changed map[string]bool // flags given on the command line
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs and timing")
}

// addIOFlags adds input and output flags to a FlagSet.
func addIOFlags(fs *flag.FlagSet, f *ioFlags) {
	fs.StringVarP(&f.output, "output", "o", "", "output file, or directory for several inputs")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")
	fs.StringVar(&f.kind, "type", "", "input type: html, css, md (default: from extension, html for stdin)")
}

// addInlineFlags adds inlining policy flags to a FlagSet.
func addInlineFlags(fs *flag.FlagSet, f *inlineFlags) {
	defaults := inliner.DefaultOptions()
	f.images.limit = defaults.Images
	f.svgs.limit = defaults.SVGs
	f.scripts.limit = defaults.Scripts
	f.links.limit = defaults.Links
	f.imports.limit = defaults.Imports

	fs.Var(&f.images, "images", "inline images: true, false or max KB")
	fs.Var(&f.svgs, "svgs", "inline SVG images and <use> references: true, false or max KB")
	fs.Var(&f.scripts, "scripts", "inline external scripts: true, false or max KB")
	fs.Var(&f.links, "links", "inline linked stylesheets: true, false or max KB")
	fs.Var(&f.imports, "imports", "inline CSS @import rules: true, false or max KB")
	fs.StringVar(&f.attribute, "inline-attribute", defaults.InlineAttribute, "marker attribute name")
	fs.BoolVar(&f.strict, "strict", false, "fail on missing resources and HTTP errors")
}

// addPathFlags adds path resolution flags to a FlagSet.
func addPathFlags(fs *flag.FlagSet, f *pathFlags) {
	fs.StringVar(&f.relativeTo, "relative-to", "", "directory or URL references resolve against (default: input's directory)")
	fs.StringVar(&f.rebaseRelativeTo, "rebase-relative-to", "", "rewrite references left external relative to this directory")
	fs.StringVar(&f.root, "root", "", "refuse local reads outside this directory")
}

// addMinifyFlags adds minification flags to a FlagSet.
func addMinifyFlags(fs *flag.FlagSet, f *minifyFlags) {
	fs.BoolVar(&f.scripts, "minify-scripts", false, "minify inlined scripts")
	fs.BoolVar(&f.styles, "minify-styles", false, "minify inlined stylesheets and CSS output")
	fs.BoolVar(&f.html, "minify-html", false, "minify HTML output")
}

// addHTTPFlags adds remote fetch flags to a FlagSet.
func addHTTPFlags(fs *flag.FlagSet, f *httpFlags) {
	fs.StringVar(&f.userAgent, "user-agent", "", "User-Agent of remote requests")
	fs.StringArrayVar(&f.headers, "header", nil, "extra request header \"Name: value\" (repeatable)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "remote request timeout (e.g., 30s, 2m)")
	fs.Float64Var(&f.rate, "rate", 0, "max remote requests per second (0 = unlimited)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "parallel fetches per document (0 = unlimited)")
}

// parseFlags parses command-line flags and returns positional args.
func parseFlags(args []string) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("inline", flag.ContinueOnError)
	f := &cliFlags{changed: make(map[string]bool)}

	addCommonFlags(fs, &f.common)
	addIOFlags(fs, &f.io)
	addInlineFlags(fs, &f.inline)
	addPathFlags(fs, &f.paths)
	addMinifyFlags(fs, &f.minify)
	addHTTPFlags(fs, &f.http)
	fs.BoolVar(&f.version, "version", false, "show version information")

	fs.Usage = func() { printUsage(os.Stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.changed[fl.Name] = true })

	return f, fs.Args(), nil
}
