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
	"io"
	"strings"
)

// noPDFText is emitted for PDFs that parse but carry no extractable text
// (scans without OCR).
const noPDFText = "[No readable text content found in PDF]"

// PdfConverter extracts the text layer of PDF files page by page. PDFium,
// compiled to WebAssembly, does the extraction; building with the nopdfium
// tag swaps in a pure Go reader.
type PdfConverter struct{}

// NewPdfConverter creates a new PdfConverter.
func NewPdfConverter() *PdfConverter {
	return &PdfConverter{}
}

func (c *PdfConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".pdf") || info.hasMIMEPrefix("application/pdf")
}

func (c *PdfConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\n\r "), []byte("%PDF-")) {
		return nil, fmt.Errorf("open PDF: missing %%PDF header")
	}

	md, err := extractPDF(ctx, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(md) == "" {
		return &Result{Markdown: noPDFText}, nil
	}
	return &Result{Markdown: md}, nil
}
