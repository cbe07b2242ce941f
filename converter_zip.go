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
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxZipDepth bounds how many archives may nest inside each other.
const maxZipDepth = 3

type zipDepthKey struct{}

func zipDepth(ctx context.Context) int {
	d, _ := ctx.Value(zipDepthKey{}).(int)
	return d
}

// ZipConverter converts every supported member of a ZIP archive with the owning
// engine and concatenates the results.
type ZipConverter struct {
	markitdown *MarkItDown
}

// NewZipConverter creates a new ZipConverter.
func NewZipConverter(m *MarkItDown) *ZipConverter {
	return &ZipConverter{markitdown: m}
}

func (c *ZipConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".zip") || info.hasMIMEPrefix("application/zip", "application/x-zip")
}

func (c *ZipConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	depth := zipDepth(ctx)
	if depth >= maxZipDepth {
		return nil, fmt.Errorf("zip nested deeper than %d levels", maxZipDepth)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read ZIP: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open ZIP: %w", err)
	}

	name := info.Filename
	if name == "" {
		name = "archive.zip"
	}
	var md strings.Builder
	fmt.Fprintf(&md, "Content from the zip file `%s`:\n\n", name)

	budget := expansionBudget(ctx)
	inner := context.WithValue(ctx, zipDepthKey{}, depth+1)
	inner = context.WithValue(inner, budgetKey{}, budget)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		member, err := budget.ReadFile(f)
		if errors.Is(err, ErrExpansionLimit) {
			return nil, err
		}
		if err != nil {
			c.markitdown.logger.Debug("skipping zip member", "member", f.Name, "error", err)
			continue
		}

		result, err := c.markitdown.ConvertBytes(inner, member, StreamInfo{
			Extension: strings.ToLower(path.Ext(f.Name)),
			Filename:  path.Base(f.Name),
		})
		if errors.Is(err, ErrExpansionLimit) {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		if err != nil {
			c.markitdown.logger.Debug("skipping zip member", "member", f.Name, "error", err)
			continue
		}
		if strings.TrimSpace(result.Markdown) == "" {
			continue
		}
		fmt.Fprintf(&md, "## File: %s\n\n%s\n\n", f.Name, result.Markdown)
	}

	return &Result{Markdown: md.String()}, nil
}
