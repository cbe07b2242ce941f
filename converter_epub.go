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
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/nicholasgasior/markitdown-web/internal/ooxml"
)

// EpubConverter handles EPUB books: metadata from the OPF package document
// followed by every spine item in reading order.
type EpubConverter struct {
	html *HTMLConverter
}

// NewEpubConverter creates a new EpubConverter.
func NewEpubConverter(m *MarkItDown) *EpubConverter {
	return &EpubConverter{html: NewHTMLConverter(m)}
}

func (c *EpubConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".epub") ||
		info.hasMIMEPrefix("application/epub", "application/x-epub")
}

func (c *EpubConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	pkg, err := ooxml.Open(reader, expansionBudget(ctx))
	if err != nil {
		return nil, fmt.Errorf("open EPUB: %w", err)
	}

	opfPath, err := epubRootFile(pkg)
	if err != nil {
		return nil, err
	}
	data, err := pkg.ReadPart(opfPath)
	if err != nil {
		return nil, fmt.Errorf("read package document: %w", err)
	}
	opf, err := ooxml.ParseNode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", opfPath, err)
	}

	meta := epubMetadataFrom(opf)
	var md strings.Builder
	meta.write(&md)

	for _, part := range epubSpine(opf, opfPath) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := pkg.ReadPart(part)
		if err != nil {
			if errors.Is(err, ErrExpansionLimit) {
				return nil, err
			}
			continue
		}
		result, err := c.html.ConvertString(string(content))
		if err != nil || strings.TrimSpace(result.Markdown) == "" {
			continue
		}
		md.WriteString(result.Markdown)
		md.WriteString("\n\n")
	}

	return &Result{Markdown: md.String(), Title: meta.title}, nil
}

// epubRootFile returns the package document path named by META-INF/container.xml.
func epubRootFile(pkg *ooxml.Package) (string, error) {
	data, err := pkg.ReadPart("META-INF/container.xml")
	if err != nil {
		return "", fmt.Errorf("read container: %w", err)
	}
	root, err := ooxml.ParseNode(data)
	if err != nil {
		return "", fmt.Errorf("parse container: %w", err)
	}
	for _, rf := range root.FindAll("rootfile") {
		if p := rf.Attr("full-path"); p != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("container has no rootfile")
}

type epubMetadata struct {
	title       string
	authors     []string
	language    string
	publisher   string
	date        string
	description string
}

func epubMetadataFrom(opf *ooxml.Node) epubMetadata {
	var meta epubMetadata
	md := opf.Child("metadata")
	if md == nil {
		return meta
	}
	text := func(local string) string {
		if n := md.Child(local); n != nil {
			return strings.TrimSpace(n.Text)
		}
		return ""
	}
	meta.title = text("title")
	meta.language = text("language")
	meta.publisher = text("publisher")
	meta.date = text("date")
	meta.description = text("description")
	for _, c := range md.Children("creator") {
		if s := strings.TrimSpace(c.Text); s != "" {
			meta.authors = append(meta.authors, s)
		}
	}
	return meta
}

func (m epubMetadata) write(md *strings.Builder) {
	if m.title != "" {
		fmt.Fprintf(md, "# %s\n\n", m.title)
	}
	fields := []struct{ label, value string }{
		{"Authors", strings.Join(m.authors, ", ")},
		{"Language", m.language},
		{"Publisher", m.publisher},
		{"Date", m.date},
		{"Description", m.description},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(md, "**%s:** %s\n\n", f.label, f.value)
		}
	}
}

// epubSpine resolves the spine itemrefs to HTML part names, in reading order.
func epubSpine(opf *ooxml.Node, opfPath string) []string {
	type item struct{ href, mediaType string }
	manifest := make(map[string]item)
	if m := opf.Child("manifest"); m != nil {
		for _, it := range m.Children("item") {
			manifest[it.Attr("id")] = item{href: it.Attr("href"), mediaType: it.Attr("media-type")}
		}
	}

	var parts []string
	spine := opf.Child("spine")
	if spine == nil {
		return parts
	}
	for _, ref := range spine.Children("itemref") {
		it, ok := manifest[ref.Attr("idref")]
		if !ok || it.href == "" {
			continue
		}
		ext := strings.ToLower(path.Ext(it.href))
		if !strings.Contains(it.mediaType, "html") && ext != ".html" && ext != ".htm" && ext != ".xhtml" {
			continue
		}
		href := it.href
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		parts = append(parts, ooxml.ResolveTarget(opfPath, href))
	}
	return parts
}
