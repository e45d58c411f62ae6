package minify

import (
	"strings"
	"testing"
)

func TestMinifier(t *testing.T) {
	t.Parallel()

	m := New()

	tests := []struct {
		name string
		fn   func(string) (string, error)
		in   string
		want string
	}{
		{
			name: "css whitespace collapsed",
			fn:   m.CSS,
			in:   "body {\n  color: red;\n}\n",
			want: "body{color:red}",
		},
		{
			name: "js whitespace collapsed",
			fn:   m.JS,
			in:   "var answer = 42;\n\nconsole.log( answer );\n",
			want: "console.log",
		},
		{
			name: "html keeps document tags",
			fn:   m.HTML,
			in:   "<html>\n  <body>\n    <p>hi</p>\n  </body>\n</html>",
			want: "<body>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.fn(tt.in)
			if err != nil {
				t.Fatalf("minify error: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want it to contain %q", got, tt.want)
			}
			if len(got) >= len(tt.in) {
				t.Errorf("output (%d bytes) not smaller than input (%d bytes)", len(got), len(tt.in))
			}
		})
	}
}
