//go:build !nopdfium

// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package markitdown

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

var (
	pdfiumPool     pdfium.Pool
	pdfiumPoolOnce sync.Once
	pdfiumPoolErr  error
)

// pdfiumInstance returns a worker from the process wide pool, waiting no
// longer than ctx allows. Callers must Close it.
func pdfiumInstance(ctx context.Context) (pdfium.Pdfium, error) {
	pdfiumPoolOnce.Do(func() {
		pdfiumPool, pdfiumPoolErr = webassembly.Init(webassembly.Config{
			MinIdle:  1,
			MaxIdle:  1,
			MaxTotal: 1,
		})
	})
	if pdfiumPoolErr != nil {
		return nil, fmt.Errorf("init pdfium: %w", pdfiumPoolErr)
	}
	instance, err := pdfiumPool.GetInstanceWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pdfium instance: %w", err)
	}
	return instance, nil
}

// extractPDF renders each page with layout hints from font metrics: larger
// lines become headings and bold, italic or monospace runs keep their emphasis.
func extractPDF(ctx context.Context, data []byte) (string, error) {
	instance, err := pdfiumInstance(ctx)
	if err != nil {
		return "", err
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document}) //nolint:errcheck

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		return "", fmt.Errorf("count pages: %w", err)
	}

	var md strings.Builder
	for i := 0; i < count.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := requests.Page{ByIndex: &requests.PageByIndex{Document: doc.Document, Index: i}}
		if text := strings.TrimSpace(pdfiumPage(instance, page)); text != "" {
			md.WriteString(text)
			md.WriteString("\n\n")
		}
	}
	return md.String(), nil
}

// pdfiumPage prefers structured rects with font information and falls back
// to the flat text of the page.
func pdfiumPage(instance pdfium.Pdfium, page requests.Page) string {
	structured, err := instance.GetPageTextStructured(&requests.GetPageTextStructured{
		Page:                   page,
		Mode:                   requests.GetPageTextStructuredModeRects,
		CollectFontInformation: true,
	})
	if err == nil && len(structured.Rects) > 0 {
		var spans []textSpan
		for _, r := range structured.Rects {
			if strings.TrimSpace(r.Text) == "" {
				continue
			}
			s := textSpan{
				text:   r.Text,
				left:   r.PointPosition.Left,
				top:    r.PointPosition.Top,
				bottom: r.PointPosition.Bottom,
			}
			if r.FontInformation != nil {
				s.size = r.FontInformation.Size
				s.font = r.FontInformation.Name
			}
			spans = append(spans, s)
		}
		if len(spans) > 0 {
			return layoutMarkdown(spans)
		}
	}

	plain, err := instance.GetPageText(&requests.GetPageText{Page: page})
	if err != nil {
		return ""
	}
	return plain.Text
}

// textSpan is a positioned run of text in PDF user space, where y grows up
// the page.
type textSpan struct {
	text        string
	left        float64
	top, bottom float64
	size        float64
	font        string
}

type spanLine struct {
	spans       []textSpan
	top, bottom float64
	size        float64
	font        string
}

func (l spanLine) text() string {
	var b strings.Builder
	for _, s := range l.spans {
		b.WriteString(s.text)
	}
	return strings.TrimSpace(b.String())
}

// layoutMarkdown groups spans into lines and writes them out top to bottom.
func layoutMarkdown(spans []textSpan) string {
	lines := groupSpans(spans)
	body := bodyFontSize(lines)

	var md strings.Builder
	afterHeading := false
	for i, line := range lines {
		raw := line.text()
		if raw == "" {
			continue
		}
		// Lone footnote markers.
		if body > 0 && line.size > 0 && line.size < body*0.6 && len(raw) <= 3 {
			continue
		}

		bold := fontBold(line.font)
		level := pdfHeadingLevel(line.size, body, bold)
		if level == 0 && bold && line.size >= body && len(raw) < 80 && allBold(line.spans) {
			level = 4
		}

		rendered := strings.TrimSpace(inlineMarkdown(line.spans, body))
		if rendered == "" {
			continue
		}

		if level > 0 {
			if md.Len() > 0 {
				md.WriteString("\n")
			}
			md.WriteString(strings.Repeat("#", level) + " " + stripEmphasis(rendered) + "\n\n")
			afterHeading = true
			continue
		}

		if i > 0 && !afterHeading {
			height := line.top - line.bottom
			if height <= 0 {
				height = body
			}
			if lines[i-1].bottom-line.top > height*1.5 {
				md.WriteString("\n")
			}
		}
		md.WriteString(rendered + "\n")
		afterHeading = false
	}
	return md.String()
}

// groupSpans merges spans whose tops lie within a few points into lines,
// sorted top to bottom with spans left to right.
func groupSpans(spans []textSpan) []spanLine {
	var lines []spanLine
	for _, s := range spans {
		idx := -1
		for i := range lines {
			if math.Abs(lines[i].top-s.top) < 3 {
				idx = i
				break
			}
		}
		if idx < 0 {
			lines = append(lines, spanLine{top: s.top, bottom: s.bottom})
			idx = len(lines) - 1
		}
		lines[idx].spans = append(lines[idx].spans, s)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].top > lines[j].top })
	for i := range lines {
		l := &lines[i]
		sort.SliceStable(l.spans, func(a, b int) bool { return l.spans[a].left < l.spans[b].left })
		l.size, l.font = dominantFont(l.spans)
	}
	return lines
}

// dominantFont returns the size and face carrying the most characters.
func dominantFont(spans []textSpan) (float64, string) {
	type face struct {
		size float64
		name string
	}
	weight := make(map[face]int)
	var best face
	for _, s := range spans {
		f := face{size: roundSize(s.size), name: s.font}
		weight[f] += len(s.text)
		if weight[f] > weight[best] {
			best = f
		}
	}
	return best.size, best.name
}

func bodyFontSize(lines []spanLine) float64 {
	weight := make(map[float64]int)
	var best float64
	for _, l := range lines {
		for _, s := range l.spans {
			size := roundSize(s.size)
			weight[size] += len(strings.TrimSpace(s.text))
			if weight[size] > weight[best] {
				best = size
			}
		}
	}
	return best
}

func roundSize(size float64) float64 {
	return math.Round(size*10) / 10
}

// pdfHeadingLevel maps a line's size relative to body text to a heading
// level, 0 for body text.
func pdfHeadingLevel(size, body float64, bold bool) int {
	if body <= 0 {
		return 0
	}
	switch ratio := size / body; {
	case ratio >= 2:
		return 1
	case ratio >= 1.5:
		return 2
	case ratio >= 1.1 && bold:
		return 3
	case ratio >= 1.1:
		return 4
	}
	return 0
}

func fontBold(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "bold") || strings.Contains(n, "medi") || strings.HasSuffix(n, "bd")
}

func fontItalic(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "ital") || strings.Contains(n, "obli") || strings.HasSuffix(n, "-it")
}

func fontMono(name string) bool {
	n := strings.ToLower(name)
	for _, hint := range []string{"mono", "courier", "consola", "typewriter"} {
		if strings.Contains(n, hint) {
			return true
		}
	}
	return strings.HasPrefix(n, "cmtt")
}

func allBold(spans []textSpan) bool {
	for _, s := range spans {
		if strings.TrimSpace(s.text) != "" && !fontBold(s.font) {
			return false
		}
	}
	return true
}

// inlineMarkdown merges neighbouring spans with the same emphasis and wraps
// each run in its markers.
func inlineMarkdown(spans []textSpan, body float64) string {
	type run struct {
		text               string
		bold, italic, mono bool
	}
	var runs []run
	for _, s := range spans {
		if body > 0 && s.size > 0 && s.size < body*0.6 && len(strings.TrimSpace(s.text)) <= 3 {
			continue
		}
		r := run{text: s.text, bold: fontBold(s.font), italic: fontItalic(s.font), mono: fontMono(s.font)}
		if n := len(runs); n > 0 && runs[n-1].bold == r.bold && runs[n-1].italic == r.italic && runs[n-1].mono == r.mono {
			runs[n-1].text += r.text
			continue
		}
		runs = append(runs, r)
	}

	var b strings.Builder
	for _, r := range runs {
		marker := ""
		switch {
		case r.mono:
			marker = "`"
		case r.bold && r.italic:
			marker = "***"
		case r.bold:
			marker = "**"
		case r.italic:
			marker = "*"
		}
		if marker == "" {
			b.WriteString(r.text)
			continue
		}
		trimmed := strings.TrimSpace(r.text)
		b.WriteString(marker + trimmed + marker)
		if strings.HasSuffix(r.text, " ") {
			b.WriteString(" ")
		}
	}
	return b.String()
}

func stripEmphasis(s string) string {
	return strings.NewReplacer("***", "", "**", "", "*", "", "`", "").Replace(s)
}
