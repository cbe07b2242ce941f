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
	"io"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLConverter handles HTML files. It is also the Markdown backend for the
// OOXML and feed converters, which render their content as HTML first.
type HTMLConverter struct {
	keepDataURIs bool
	policy       *bluemonday.Policy
}

// NewHTMLConverter creates a new HTMLConverter. A nil engine gives the
// defaults: sanitized input, truncated data URIs.
func NewHTMLConverter(m *MarkItDown) *HTMLConverter {
	c := &HTMLConverter{policy: newSanitizePolicy()}
	if m != nil {
		c.keepDataURIs = m.keepDataURIs
		if !m.sanitizeHTML {
			c.policy = nil
		}
	}
	return c
}

// newSanitizePolicy allows user-generated formatting, tables and inline images
// while dropping scripts, styles, event handlers and javascript: URLs.
func newSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	p.SkipElementsContent("head", "title")
	return p
}

func (c *HTMLConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".html", ".htm") ||
		info.hasMIMEPrefix("text/html", "application/xhtml")
}

func (c *HTMLConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	text := decodeText(data, info.Charset)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty HTML document")
	}
	return c.ConvertString(text)
}

// ConvertString converts an HTML string to markdown.
func (c *HTMLConverter) ConvertString(htmlStr string) (*Result, error) {
	title := extractHTMLTitle(htmlStr)

	if c.policy != nil {
		htmlStr = c.policy.Sanitize(htmlStr)
	} else {
		htmlStr = reScript.ReplaceAllString(htmlStr, "")
		htmlStr = reStyle.ReplaceAllString(htmlStr, "")
	}

	md, err := htmlToMarkdown(htmlStr)
	if err != nil {
		return nil, fmt.Errorf("convert HTML to markdown: %w", err)
	}
	if !c.keepDataURIs {
		md = reDataURI.ReplaceAllString(md, "${1}...")
	}

	return &Result{Markdown: md, Title: title}, nil
}

// htmlToMarkdown runs html-to-markdown with ATX headings and GFM tables.
func htmlToMarkdown(htmlStr string) (string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithHeadingStyle("atx"),
			),
			table.NewTablePlugin(),
		),
	)
	return conv.ConvertString(htmlStr)
}

var (
	reScript  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	reStyle   = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	reDataURI = regexp.MustCompile(`(data:[a-zA-Z0-9/+.-]+;base64,)[A-Za-z0-9+/=]{64,}`)
)

// extractHTMLTitle returns the text of the first <title> element.
func extractHTMLTitle(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var walk func(*html.Node) string
	walk = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			if n.FirstChild != nil {
				return strings.TrimSpace(n.FirstChild.Data)
			}
			return ""
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if t := walk(child); t != "" {
				return t
			}
		}
		return ""
	}
	return walk(doc)
}

// tableHTML renders rows as an HTML table with the first row as header.
func tableHTML(rows [][]string) string {
	var b strings.Builder
	b.WriteString("<table>")
	for i, row := range rows {
		tag := "td"
		if i == 0 {
			tag = "th"
		}
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<%s>%s</%s>", tag, cell, tag)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
