package render

import (
	"strings"
	"testing"
)

func TestMarkdownConvert(t *testing.T) {
	md := NewMarkdown()

	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "paragraph",
			input:    "Hello, world!",
			contains: []string{"<p>Hello, world!</p>"},
		},
		{
			name:     "bold",
			input:    "**bold**",
			contains: []string{"<strong>bold</strong>"},
		},
		{
			name:     "table",
			input:    "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "script stripped",
			input:    "hi <script>alert(1)</script>",
			excludes: []string{"<script>"},
		},
		{
			name:     "javascript link stripped",
			input:    "[x](javascript:alert(1))",
			excludes: []string{"javascript:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := md.Convert(tt.input)
			if err != nil {
				t.Fatalf("Convert err: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("expected %q in %s", want, out)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(out, unwanted) {
					t.Errorf("did not expect %q in %s", unwanted, out)
				}
			}
		})
	}
}

func TestMarkdownHighlighting(t *testing.T) {
	md := NewMarkdown(WithHighlighting("monokai"))

	out := string(md.HTML("```go\nfunc main() {}\n```"))
	if !strings.Contains(out, "<pre") || !strings.Contains(out, "main") {
		t.Fatalf("unexpected highlighted output: %s", out)
	}
}
