//go:build !nopdfium

package markitdown

import (
	"strings"
	"testing"
)

func TestLayoutMarkdown(t *testing.T) {
	spans := []textSpan{
		{text: "body text continues", left: 72, top: 680, bottom: 668, size: 12, font: "Helvetica"},
		{text: "Annual Summary", left: 72, top: 740, bottom: 716, size: 24, font: "Helvetica-Bold"},
		{text: "Run ", left: 72, top: 700, bottom: 688, size: 12, font: "Helvetica"},
		{text: "make test", left: 100, top: 700, bottom: 688, size: 12, font: "Courier"},
		{text: " and ", left: 160, top: 700, bottom: 688, size: 12, font: "Helvetica"},
		{text: "check", left: 190, top: 700, bottom: 688, size: 12, font: "Helvetica-Oblique"},
		{text: "1", left: 230, top: 705, bottom: 700, size: 6, font: "Helvetica"},
	}

	md := layoutMarkdown(spans)
	assertContains(t, md, "# Annual Summary\n", "Run `make test` and *check*", "body text continues")
	if strings.Index(md, "Annual") > strings.Index(md, "Run") {
		t.Errorf("lines out of order:\n%s", md)
	}
	assertNotContains(t, md, "check1")
}

func TestPdfHeadingLevel(t *testing.T) {
	tests := []struct {
		size, body float64
		bold       bool
		want       int
	}{
		{24, 12, false, 1},
		{18, 12, false, 2},
		{14, 12, true, 3},
		{14, 12, false, 4},
		{12, 12, true, 0},
		{12, 0, false, 0},
	}
	for _, tt := range tests {
		if got := pdfHeadingLevel(tt.size, tt.body, tt.bold); got != tt.want {
			t.Errorf("pdfHeadingLevel(%v, %v, %v) = %d, want %d", tt.size, tt.body, tt.bold, got, tt.want)
		}
	}
}
