package markup

import "testing"

func TestRenderInline(t *testing.T) {
	testCases := map[string]struct {
		input string
		want  string
	}{
		"empty":            {"", ""},
		"plain":            {"Buy milk", "Buy milk"},
		"inline_code":      {"run `go vet` first", "run <code>go vet</code> first"},
		"emphasis_dropped": {"a *very* **important** task", "a very important task"},
		"link_text_only":   {"see [the docs](https://example.com)", "see the docs"},
		"heading_text":     {"# Title", "Title"},
		"html_escaped":     {"a <b>bold</b> claim", "a &lt;b&gt;bold&lt;/b&gt; claim"},
		"code_escaped":     {"use `<nil>` checks", "use <code>&lt;nil&gt;</code> checks"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := RenderInline(tc.input); got != tc.want {
				t.Fatalf("RenderInline(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestRenderInlineJoinsSoftBreaks(t *testing.T) {
	got := RenderInline("first line\nsecond line")
	if got != "first line second line" {
		t.Fatalf("unexpected soft break handling: %q", got)
	}
}
