package main

import (
	"fmt"
	"io"
)

// printUsage prints the usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: inline [flags] <input>...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Inline the scripts, stylesheets, images and SVG symbols an HTML or CSS")
	fmt.Fprintln(w, "document references. Use - to read stdin.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    .html, .htm, .css, .md or .markdown file, or a directory")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>            Output file, or directory for several inputs")
	fmt.Fprintln(w, "                                 (default: stdout for a single input)")
	fmt.Fprintln(w, "  -w, --workers <n>              Parallel workers (0 = auto)")
	fmt.Fprintln(w, "      --type <s>                 Input type: html, css, md")
	fmt.Fprintln(w, "  -c, --config <name>            Config file name or path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Inlining (true, false, or a size in KB):")
	fmt.Fprintln(w, "      --images <limit>           <img> and CSS url() (default: 8)")
	fmt.Fprintln(w, "      --svgs <limit>             SVG images and <use> (default: 8)")
	fmt.Fprintln(w, "      --scripts <limit>          <script src> (default: true)")
	fmt.Fprintln(w, "      --links <limit>            <link rel=stylesheet> (default: true)")
	fmt.Fprintln(w, "      --imports <limit>          CSS @import (default: false)")
	fmt.Fprintln(w, "      --inline-attribute <s>     Marker attribute (default: data-inline)")
	fmt.Fprintln(w, "      --strict                   Fail on missing resources and HTTP errors")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Paths:")
	fmt.Fprintln(w, "      --relative-to <dir|url>    Base of relative references (default: input's directory)")
	fmt.Fprintln(w, "      --rebase-relative-to <dir> Rewrite references left external for this directory")
	fmt.Fprintln(w, "      --root <dir>               Refuse local reads outside this directory")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Minification:")
	fmt.Fprintln(w, "      --minify-scripts           Minify inlined scripts")
	fmt.Fprintln(w, "      --minify-styles            Minify inlined stylesheets and CSS output")
	fmt.Fprintln(w, "      --minify-html              Minify HTML output")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Remote:")
	fmt.Fprintln(w, "      --user-agent <s>           User-Agent header")
	fmt.Fprintln(w, "      --header <\"Name: value\">   Extra request header (repeatable)")
	fmt.Fprintln(w, "  -t, --timeout <duration>       Request timeout (e.g., 30s)")
	fmt.Fprintln(w, "      --rate <n>                 Max requests per second (0 = unlimited)")
	fmt.Fprintln(w, "      --concurrency <n>          Parallel fetches per document (0 = unlimited)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -q, --quiet                    Only show errors")
	fmt.Fprintln(w, "  -v, --verbose                  Show debug logs and timing")
	fmt.Fprintln(w, "      --version                  Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes:")
	fmt.Fprintln(w, "  0 success, 1 general error, 2 usage or config, 3 file I/O, 4 remote fetch")
}
