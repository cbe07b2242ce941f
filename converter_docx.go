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
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/nicholasgasior/markitdown-web/internal/docxmath"
	"github.com/nicholasgasior/markitdown-web/internal/ooxml"
)

// DocxConverter handles DOCX files by rendering the document body as HTML and
// passing it through the HTML converter.
type DocxConverter struct {
	html *HTMLConverter
}

// NewDocxConverter creates a new DocxConverter.
func NewDocxConverter(m *MarkItDown) *DocxConverter {
	return &DocxConverter{html: NewHTMLConverter(m)}
}

func (c *DocxConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".docx") ||
		info.hasMIMEPrefix("application/vnd.openxmlformats-officedocument.wordprocessingml.document")
}

func (c *DocxConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	pkg, err := ooxml.Open(reader, expansionBudget(ctx))
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	const mainPart = "word/document.xml"
	body, err := pkg.ReadPart(mainPart)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	rels, err := pkg.Relationships(mainPart)
	if err != nil {
		return nil, err
	}

	w := &docxWriter{
		rels:     rels,
		headings: docxHeadingStyles(pkg),
		comments: docxComments(pkg),
	}
	if err := w.walk(ctx, xml.NewDecoder(bytes.NewReader(body))); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	result, err := c.html.ConvertString(w.String())
	if err != nil {
		return nil, err
	}
	result.Markdown = w.substituteMath(result.Markdown)
	if title := pkg.CoreTitle(); title != "" {
		result.Title = title
	}
	return result, nil
}

var reHeadingStyle = regexp.MustCompile(`(?i)^heading\s*([1-6])$`)

// docxHeadingStyles maps style IDs to heading levels using the style names in
// styles.xml ("heading 1", "Title").
func docxHeadingStyles(pkg *ooxml.Package) map[string]int {
	levels := make(map[string]int)
	data, err := pkg.ReadPart("word/styles.xml")
	if err != nil {
		return levels
	}
	root, err := ooxml.ParseNode(data)
	if err != nil {
		return levels
	}
	for _, style := range root.Children("style") {
		id := style.Attr("styleId")
		name := ""
		if n := style.Child("name"); n != nil {
			name = n.Attr("val")
		}
		if lvl := headingLevel(name); lvl > 0 {
			levels[id] = lvl
		}
	}
	return levels
}

// headingLevel returns 1-6 for heading style names or IDs, 0 otherwise.
func headingLevel(name string) int {
	if strings.EqualFold(name, "title") {
		return 1
	}
	if m := reHeadingStyle.FindStringSubmatch(name); m != nil {
		lvl, _ := strconv.Atoi(m[1])
		return lvl
	}
	return 0
}

// docxComments returns "author: text" for each comment ID.
func docxComments(pkg *ooxml.Package) map[string]string {
	comments := make(map[string]string)
	data, err := pkg.ReadPart("word/comments.xml")
	if err != nil {
		return comments
	}
	root, err := ooxml.ParseNode(data)
	if err != nil {
		return comments
	}
	for _, cm := range root.Children("comment") {
		text := strings.TrimSpace(cm.JoinText("t"))
		if text == "" {
			continue
		}
		comments[cm.Attr("id")] = fmt.Sprintf("%s: %s", cm.Attr("author"), text)
	}
	return comments
}

type runStyle struct {
	bold, italic, strike bool
}

// docxTable collects rows while a <w:tbl> is open.
type docxTable struct {
	rows [][]string
	cell strings.Builder
}

// docxWriter streams document.xml and produces an HTML rendering of it.
type docxWriter struct {
	rels     map[string]ooxml.Relationship
	headings map[string]int
	comments map[string]string

	out      strings.Builder
	para     strings.Builder
	text     strings.Builder
	listOpen bool

	style       string
	listItem    bool
	inRun       bool
	inText      bool
	run         runStyle
	link        string
	commentRefs []string
	tables      []*docxTable

	// equations holds rendered LaTeX; the HTML carries placeholders so the
	// markdown converter leaves backslashes and underscores alone.
	equations []string
}

func (w *docxWriter) String() string {
	w.closeList()
	return "<html><body>" + w.out.String() + "</body></html>"
}

func (w *docxWriter) walk(ctx context.Context, dec *xml.Decoder) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := w.start(t, dec); err != nil {
				return err
			}
		case xml.EndElement:
			w.end(t)
		case xml.CharData:
			if w.inText {
				w.text.Write(t)
			}
		}
	}
}

func (w *docxWriter) start(t xml.StartElement, dec *xml.Decoder) error {
	switch t.Name.Local {
	case "p":
		w.para.Reset()
		w.style = ""
		w.listItem = false
		w.commentRefs = nil
	case "pStyle":
		w.style = attrValue(t, "val")
	case "numPr":
		w.listItem = true
	case "numId":
		if attrValue(t, "val") == "0" {
			w.listItem = false
		}
	case "r":
		w.inRun = true
		w.run = runStyle{}
	case "b":
		if w.inRun {
			w.run.bold = toggleOn(t)
		}
	case "i":
		if w.inRun {
			w.run.italic = toggleOn(t)
		}
	case "strike", "dstrike":
		if w.inRun {
			w.run.strike = toggleOn(t)
		}
	case "t":
		w.inText = true
		w.text.Reset()
	case "tab":
		if w.inRun {
			w.para.WriteString(" ")
		}
	case "br", "cr":
		if w.inRun {
			w.para.WriteString("<br/>")
		}
	case "hyperlink":
		for _, a := range t.Attr {
			if a.Name.Space == ooxml.NSRelDoc && a.Name.Local == "id" {
				if rel, ok := w.rels[a.Value]; ok && rel.External() {
					w.link = rel.Target
				}
			}
		}
	case "commentReference":
		w.commentRefs = append(w.commentRefs, attrValue(t, "id"))
	case "oMath", "oMathPara":
		var eq ooxml.Node
		if err := dec.DecodeElement(&eq, &t); err != nil {
			return err
		}
		w.para.WriteString(w.math(&eq))
	case "drawing", "pict":
		img, err := w.image(dec)
		if err != nil {
			return err
		}
		w.para.WriteString(img)
	case "tbl":
		w.tables = append(w.tables, &docxTable{})
	case "tr":
		if tbl := w.table(); tbl != nil {
			tbl.rows = append(tbl.rows, nil)
		}
	case "tc":
		if tbl := w.table(); tbl != nil {
			tbl.cell.Reset()
		}
	}
	return nil
}

func (w *docxWriter) end(t xml.EndElement) {
	switch t.Name.Local {
	case "t":
		if w.inText {
			w.para.WriteString(w.formatRun(html.EscapeString(w.text.String())))
			w.inText = false
		}
	case "r":
		w.inRun = false
	case "hyperlink":
		w.link = ""
	case "p":
		w.endParagraph()
	case "tc":
		if tbl := w.table(); tbl != nil && len(tbl.rows) > 0 {
			last := len(tbl.rows) - 1
			tbl.rows[last] = append(tbl.rows[last], tbl.cell.String())
		}
	case "tbl":
		if tbl := w.table(); tbl != nil {
			w.tables = w.tables[:len(w.tables)-1]
			if len(tbl.rows) > 0 {
				w.block(tableHTML(tbl.rows))
			}
		}
	}
}

func (w *docxWriter) formatRun(text string) string {
	if w.run.bold {
		text = "<b>" + text + "</b>"
	}
	if w.run.italic {
		text = "<i>" + text + "</i>"
	}
	if w.run.strike {
		text = "<s>" + text + "</s>"
	}
	if w.link != "" {
		text = `<a href="` + html.EscapeString(w.link) + `">` + text + "</a>"
	}
	return text
}

func (w *docxWriter) endParagraph() {
	text := w.para.String()
	for _, id := range w.commentRefs {
		if c, ok := w.comments[id]; ok {
			text += " [comment by " + html.EscapeString(c) + "]"
		}
	}

	if tbl := w.table(); tbl != nil {
		if tbl.cell.Len() > 0 && text != "" {
			tbl.cell.WriteString("<br/>")
		}
		tbl.cell.WriteString(text)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	level := w.headings[w.style]
	if level == 0 {
		level = headingLevel(w.style)
	}
	switch {
	case level > 0:
		w.block(fmt.Sprintf("<h%d>%s</h%d>", level, text, level))
	case w.listItem:
		if !w.listOpen {
			w.out.WriteString("<ul>\n")
			w.listOpen = true
		}
		w.out.WriteString("<li>" + text + "</li>\n")
	default:
		w.block("<p>" + text + "</p>")
	}
}

// block writes a non-list element, closing any open list first. Inside a
// table it lands in the current cell instead.
func (w *docxWriter) block(s string) {
	if tbl := w.table(); tbl != nil {
		tbl.cell.WriteString(s)
		return
	}
	w.closeList()
	w.out.WriteString(s)
	w.out.WriteString("\n")
}

func (w *docxWriter) closeList() {
	if w.listOpen {
		w.out.WriteString("</ul>\n")
		w.listOpen = false
	}
}

func (w *docxWriter) table() *docxTable {
	if len(w.tables) == 0 {
		return nil
	}
	return w.tables[len(w.tables)-1]
}

func mathPlaceholder(i int) string {
	return fmt.Sprintf("DOCXMATH%dX", i)
}

// math renders an equation as $inline$ or $$display$$ LaTeX and returns its
// placeholder.
func (w *docxWriter) math(eq *ooxml.Node) string {
	latex := docxmath.ToLaTeX(eq)
	if latex == "" {
		return ""
	}
	if eq.Name() == "oMathPara" {
		latex = "$$" + latex + "$$"
	} else {
		latex = "$" + latex + "$"
	}
	w.equations = append(w.equations, latex)
	return mathPlaceholder(len(w.equations) - 1)
}

func (w *docxWriter) substituteMath(md string) string {
	for i, latex := range w.equations {
		md = strings.Replace(md, mathPlaceholder(i), latex, 1)
	}
	return md
}

// image consumes a drawing element and renders its alt text and target as <img>.
func (w *docxWriter) image(dec *xml.Decoder) (string, error) {
	var alt, embed string
	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "docPr":
				alt = attrValue(t, "descr")
			case "blip":
				embed = attrValue(t, "embed")
			case "imagedata":
				embed = attrValue(t, "id")
			}
		case xml.EndElement:
			depth--
		}
	}

	src := ""
	if rel, ok := w.rels[embed]; ok {
		src = path.Base(rel.Target)
	}
	if alt == "" {
		alt = src
	}
	if alt == "" {
		return "", nil
	}
	return fmt.Sprintf(`<img src="%s" alt="%s"/>`, html.EscapeString(src), html.EscapeString(alt)), nil
}

func attrValue(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// toggleOn reads an OOXML on/off property such as <w:b/> or <w:b w:val="0"/>.
func toggleOn(t xml.StartElement) bool {
	switch strings.ToLower(attrValue(t, "val")) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}
