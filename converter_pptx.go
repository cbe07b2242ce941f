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
	"html"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nicholasgasior/markitdown-web/internal/ooxml"
)

// PptxConverter handles PPTX files.
type PptxConverter struct {
	html *HTMLConverter
}

// NewPptxConverter creates a new PptxConverter.
func NewPptxConverter(m *MarkItDown) *PptxConverter {
	return &PptxConverter{html: NewHTMLConverter(m)}
}

func (c *PptxConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".pptx") ||
		info.hasMIMEPrefix("application/vnd.openxmlformats-officedocument.presentationml")
}

func (c *PptxConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	pkg, err := ooxml.Open(reader, expansionBudget(ctx))
	if err != nil {
		return nil, fmt.Errorf("open PPTX: %w", err)
	}

	slides, err := pptxSlideOrder(pkg)
	if err != nil {
		return nil, err
	}

	var md strings.Builder
	for i, slidePath := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := pkg.ReadPart(slidePath)
		if err != nil {
			return nil, err
		}
		root, err := ooxml.ParseNode(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", slidePath, err)
		}

		fmt.Fprintf(&md, "\n\n<!-- Slide number: %d -->\n", i+1)
		md.WriteString(c.renderSlide(root))

		if notes := pptxNotes(pkg, slidePath); notes != "" {
			md.WriteString("\n\n### Notes:\n")
			md.WriteString(notes)
		}
	}

	return &Result{Markdown: md.String(), Title: pkg.CoreTitle()}, nil
}

// pptxSlideOrder lists slide parts in presentation order.
func pptxSlideOrder(pkg *ooxml.Package) ([]string, error) {
	const presPart = "ppt/presentation.xml"
	data, err := pkg.ReadPart(presPart)
	if err != nil {
		return nil, fmt.Errorf("read presentation: %w", err)
	}
	root, err := ooxml.ParseNode(data)
	if err != nil {
		return nil, fmt.Errorf("parse presentation: %w", err)
	}
	rels, err := pkg.Relationships(presPart)
	if err != nil {
		return nil, err
	}

	var slides []string
	if lst := root.Child("sldIdLst"); lst != nil {
		for _, id := range lst.Children("sldId") {
			if rel, ok := rels[id.AttrNS(ooxml.NSRelDoc, "id")]; ok {
				slides = append(slides, ooxml.ResolveTarget(presPart, rel.Target))
			}
		}
	}
	if len(slides) == 0 {
		for _, name := range pkg.PartNames("ppt/slides/slide") {
			if strings.HasSuffix(name, ".xml") {
				slides = append(slides, name)
			}
		}
		sort.Slice(slides, func(i, j int) bool {
			return slideNumber(slides[i]) < slideNumber(slides[j])
		})
	}
	return slides, nil
}

func slideNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
	if err != nil {
		return math.MaxInt
	}
	return n
}

type slideShape struct {
	top, left int64
	markdown  string
}

// renderSlide renders the shapes of one slide top-to-bottom, left-to-right.
func (c *PptxConverter) renderSlide(root *ooxml.Node) string {
	tree := root.Find("spTree")
	if tree == nil {
		return ""
	}

	var shapes []slideShape
	c.collectShapes(tree, &shapes)
	sort.SliceStable(shapes, func(i, j int) bool {
		if shapes[i].top != shapes[j].top {
			return shapes[i].top < shapes[j].top
		}
		return shapes[i].left < shapes[j].left
	})

	var b strings.Builder
	for _, s := range shapes {
		b.WriteString(s.markdown)
		b.WriteString("\n")
	}
	return b.String()
}

func (c *PptxConverter) collectShapes(parent *ooxml.Node, shapes *[]slideShape) {
	for i := range parent.Nodes {
		n := &parent.Nodes[i]
		var md string
		switch n.Name() {
		case "grpSp":
			c.collectShapes(n, shapes)
			continue
		case "sp":
			md = c.textShape(n)
		case "pic":
			if cNvPr := n.Path("nvPicPr", "cNvPr"); cNvPr != nil {
				if alt := cleanAltText(cNvPr.Attr("descr")); alt != "" {
					md = fmt.Sprintf("![%s](%s.jpg)", alt, strings.ReplaceAll(cNvPr.Attr("name"), " ", ""))
				}
			}
		case "graphicFrame":
			if tbl := n.Find("tbl"); tbl != nil {
				md = c.tableShape(tbl)
			}
		}
		if strings.TrimSpace(md) == "" {
			continue
		}
		top, left := shapeOffset(n)
		*shapes = append(*shapes, slideShape{top: top, left: left, markdown: md})
	}
}

func (c *PptxConverter) textShape(sp *ooxml.Node) string {
	body := sp.Child("txBody")
	if body == nil {
		return ""
	}
	text := strings.TrimSpace(paragraphText(body))
	if text == "" {
		return ""
	}
	switch placeholderType(sp) {
	case "title", "ctrTitle":
		return "# " + strings.ReplaceAll(text, "\n", " ")
	}
	return text
}

func (c *PptxConverter) tableShape(tbl *ooxml.Node) string {
	var rows [][]string
	for _, tr := range tbl.Children("tr") {
		var row []string
		for _, tc := range tr.Children("tc") {
			cell := ""
			if body := tc.Child("txBody"); body != nil {
				cell = html.EscapeString(strings.TrimSpace(paragraphText(body)))
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return ""
	}
	res, err := c.html.ConvertString("<html><body>" + tableHTML(rows) + "</body></html>")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Markdown)
}

// paragraphText joins the runs of each <a:p> and the paragraphs by newlines.
func paragraphText(body *ooxml.Node) string {
	var lines []string
	for _, p := range body.Children("p") {
		if line := p.JoinText("t"); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func placeholderType(sp *ooxml.Node) string {
	if ph := sp.Path("nvSpPr", "nvPr", "ph"); ph != nil {
		return ph.Attr("type")
	}
	return ""
}

// shapeOffset reads spPr/xfrm/off (or xfrm/off on graphic frames). Shapes
// without a position sort last.
func shapeOffset(n *ooxml.Node) (top, left int64) {
	off := n.Path("spPr", "xfrm", "off")
	if off == nil {
		off = n.Path("xfrm", "off")
	}
	if off == nil {
		return math.MaxInt64, math.MaxInt64
	}
	top, errY := strconv.ParseInt(off.Attr("y"), 10, 64)
	left, errX := strconv.ParseInt(off.Attr("x"), 10, 64)
	if errY != nil || errX != nil {
		return math.MaxInt64, math.MaxInt64
	}
	return top, left
}

// pptxNotes returns the speaker notes of a slide, skipping the slide image
// and slide number placeholders.
func pptxNotes(pkg *ooxml.Package, slidePath string) string {
	rels, err := pkg.Relationships(slidePath)
	if err != nil {
		return ""
	}
	for _, rel := range rels {
		if !strings.HasSuffix(rel.Type, "/notesSlide") {
			continue
		}
		data, err := pkg.ReadPart(ooxml.ResolveTarget(slidePath, rel.Target))
		if err != nil {
			return ""
		}
		root, err := ooxml.ParseNode(data)
		if err != nil {
			return ""
		}
		var parts []string
		for _, sp := range root.FindAll("sp") {
			switch placeholderType(sp) {
			case "sldImg", "sldNum", "hdr", "ftr", "dt":
				continue
			}
			if body := sp.Child("txBody"); body != nil {
				if text := strings.TrimSpace(paragraphText(body)); text != "" {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// cleanAltText flattens alt text so it cannot break Markdown image syntax.
func cleanAltText(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "[", " ", "]", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
