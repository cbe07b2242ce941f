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

	"github.com/xuri/excelize/v2"
)

// XlsxConverter handles XLSX workbooks, one Markdown table per sheet.
type XlsxConverter struct{}

// NewXlsxConverter creates a new XlsxConverter.
func NewXlsxConverter() *XlsxConverter {
	return &XlsxConverter{}
}

func (c *XlsxConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".xlsx") ||
		info.hasMIMEPrefix("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func (c *XlsxConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	budget := expansionBudget(ctx)
	if budget.Remaining() <= 0 {
		return nil, fmt.Errorf("open XLSX: %w", ErrExpansionLimit)
	}
	f, err := excelize.OpenReader(reader, excelize.Options{
		UnzipSizeLimit:    budget.Remaining(),
		UnzipXMLSizeLimit: min(16<<20, budget.Remaining()),
	})
	if err != nil && strings.Contains(err.Error(), "unzip size exceeds") {
		return nil, fmt.Errorf("open XLSX: %v: %w", err, ErrExpansionLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	var md strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		writeSheet(&md, sheet, rows)
	}

	return &Result{Markdown: md.String()}, nil
}

// writeSheet appends a "## name" heading and the sheet's table. Empty sheets
// only get the heading.
func writeSheet(md *strings.Builder, name string, rows [][]string) {
	fmt.Fprintf(md, "## %s\n", name)
	md.WriteString(renderMarkdownTable(rows))
	md.WriteString("\n")
}
