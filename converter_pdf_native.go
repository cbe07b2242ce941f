//go:build nopdfium

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
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads the text layer with the pure Go reader.
func extractPDF(ctx context.Context, data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var md strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		if text := strings.TrimSpace(pageText(page)); text != "" {
			md.WriteString(text)
			md.WriteString("\n\n")
		}
	}
	return md.String(), nil
}

// pageText prefers the library's row grouping, where empty fragments mark word
// breaks, and falls back to positioning individual glyph runs.
func pageText(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err == nil {
		var b strings.Builder
		for _, row := range rows {
			var line strings.Builder
			gap := false
			for _, word := range row.Content {
				if word.S == "" {
					gap = true
					continue
				}
				if gap && line.Len() > 0 && !strings.HasSuffix(line.String(), " ") {
					line.WriteString(" ")
				}
				line.WriteString(word.S)
				gap = false
			}
			if text := strings.TrimSpace(line.String()); text != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
		if strings.TrimSpace(b.String()) != "" {
			return b.String()
		}
	}
	return positionedText(page.Content().Text)
}

type pdfLine struct {
	y     float64
	texts []pdf.Text
}

// positionedText groups glyph runs into lines by baseline and orders them top
// to bottom, inserting spaces where the horizontal gap looks like a word break.
func positionedText(texts []pdf.Text) string {
	var lines []*pdfLine
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		tolerance := math.Max(t.FontSize*0.3, 1)
		var target *pdfLine
		for _, l := range lines {
			if math.Abs(l.y-t.Y) < tolerance {
				target = l
				break
			}
		}
		if target == nil {
			target = &pdfLine{y: t.Y}
			lines = append(lines, target)
		}
		target.texts = append(target.texts, t)
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var b strings.Builder
	for _, l := range lines {
		sort.Slice(l.texts, func(i, j int) bool { return l.texts[i].X < l.texts[j].X })
		end := math.Inf(-1)
		for _, t := range l.texts {
			if !math.IsInf(end, -1) && t.X-end > math.Max(t.FontSize*0.2, 1) {
				b.WriteString(" ")
			}
			b.WriteString(t.S)
			end = t.X + t.W
			if t.W == 0 {
				end = t.X + float64(len([]rune(t.S)))*t.FontSize*0.55
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
