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
	"strings"

	"github.com/mmcdole/gofeed"
)

// RSSConverter renders RSS and Atom feeds: the feed title as a heading and one
// section per item.
type RSSConverter struct {
	html *HTMLConverter
}

// NewRSSConverter creates a new RSSConverter.
func NewRSSConverter(m *MarkItDown) *RSSConverter {
	return &RSSConverter{html: NewHTMLConverter(m)}
}

func (c *RSSConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".rss", ".atom", ".xml") ||
		info.hasMIMEPrefix("application/rss", "application/atom", "text/xml", "application/xml")
}

func (c *RSSConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	feed, err := gofeed.NewParser().Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var b strings.Builder
	if feed.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", feed.Title)
	}
	if feed.Description != "" {
		b.WriteString(c.itemBody(feed.Description))
		b.WriteString("\n\n")
	}

	for _, item := range feed.Items {
		if item.Title != "" {
			fmt.Fprintf(&b, "## %s\n\n", item.Title)
		}
		switch {
		case item.Published != "":
			fmt.Fprintf(&b, "Published on: %s\n\n", item.Published)
		case item.Updated != "":
			fmt.Fprintf(&b, "Updated on: %s\n\n", item.Updated)
		}
		body := item.Content
		if body == "" {
			body = item.Description
		}
		if body != "" {
			b.WriteString(c.itemBody(body))
			b.WriteString("\n\n")
		}
	}

	return &Result{Markdown: b.String(), Title: feed.Title}, nil
}

// itemBody converts embedded HTML, leaving plain text untouched.
func (c *RSSConverter) itemBody(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	res, err := c.html.ConvertString(s)
	if err != nil {
		return s
	}
	return res.Markdown
}
