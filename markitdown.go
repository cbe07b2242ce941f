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

// Package markitdown converts office documents, PDFs, HTML pages and archives
// of them into Markdown.
package markitdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nicholasgasior/markitdown-web/internal/ooxml"
)

const (
	// PrioritySpecific is for format-specific converters (PDF, DOCX, etc.).
	PrioritySpecific = 0.0
	// PriorityGeneric is for fallback converters (PlainText, HTML, ZIP).
	PriorityGeneric = 10.0
)

type registeredConverter struct {
	converter DocumentConverter
	priority  float64
	name      string
}

// MarkItDown is the document-to-markdown conversion engine. It is safe for
// concurrent use once configured.
type MarkItDown struct {
	converters   []registeredConverter
	keepDataURIs bool
	sanitizeHTML bool
	httpClient   *http.Client
	logger       *slog.Logger

	maxEntrySize    int64
	maxExpandedSize int64
}

// New creates a new MarkItDown instance with the built-in converters.
func New(opts ...Option) *MarkItDown {
	m := &MarkItDown{
		sanitizeHTML: true,
		httpClient:   http.DefaultClient,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.enableBuiltins()
	return m
}

// RegisterConverter adds c to the registry. Lower priorities are tried first;
// equal priorities keep registration order.
func (m *MarkItDown) RegisterConverter(name string, c DocumentConverter, priority float64) {
	at := sort.Search(len(m.converters), func(i int) bool {
		return m.converters[i].priority > priority
	})
	m.converters = slices.Insert(m.converters, at, registeredConverter{
		converter: c,
		priority:  priority,
		name:      name,
	})
}

// ConvertFile converts a local file. The extension drives converter choice
// when the content sniffs as something generic.
func (m *MarkItDown) ConvertFile(ctx context.Context, filePath string) (*Result, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return m.ConvertReader(ctx, f, StreamInfo{
		Extension: strings.ToLower(filepath.Ext(filePath)),
		Filename:  filepath.Base(filePath),
	})
}

// ConvertURL fetches a URL and converts the response body.
func (m *MarkItDown) ConvertURL(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch URL: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	info := StreamInfo{URL: rawURL}
	if mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		info.MIMEType = mediaType
		info.Charset = params["charset"]
	}

	urlPath := resp.Request.URL.Path
	if ext := path.Ext(urlPath); ext != "" {
		info.Extension = strings.ToLower(ext)
		info.Filename = path.Base(urlPath)
	}

	return m.ConvertBytes(ctx, data, info)
}

// ConvertBytes converts an in-memory document. The MIME type is sniffed from
// content when info does not carry one.
func (m *MarkItDown) ConvertBytes(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	return m.ConvertReader(ctx, bytes.NewReader(data), info)
}

// ConvertReader converts a stream described by info.
func (m *MarkItDown) ConvertReader(ctx context.Context, r io.ReadSeeker, info StreamInfo) (*Result, error) {
	if _, ok := ctx.Value(budgetKey{}).(*ooxml.Budget); !ok {
		ctx = context.WithValue(ctx, budgetKey{}, ooxml.NewBudget(m.maxEntrySize, m.maxExpandedSize))
	}
	if info.MIMEType == "" {
		info.MIMEType = detectMIMEType(r, info.Extension)
	}
	return m.convert(ctx, r, info)
}

// ErrExpansionLimit is wrapped by conversions that inflate more than the
// configured archive limits.
var ErrExpansionLimit = ooxml.ErrLimitExceeded

type budgetKey struct{}

// expansionBudget returns the budget shared by the conversion running in ctx.
func expansionBudget(ctx context.Context) *ooxml.Budget {
	if b, ok := ctx.Value(budgetKey{}).(*ooxml.Budget); ok {
		return b
	}
	return ooxml.NewBudget(0, 0)
}

// convert walks the registry in priority order. The first converter that
// accepts the input and succeeds wins. Cancellation and an exhausted
// expansion budget stop the walk.
func (m *MarkItDown) convert(ctx context.Context, r io.ReadSeeker, info StreamInfo) (*Result, error) {
	var failed []FailedConversionAttempt

	for _, rc := range m.converters {
		if !rc.converter.Accepts(info) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind input: %w", err)
		}

		result, err := m.attempt(ctx, rc, r, info)
		if err == nil {
			result.Markdown = normalizeOutput(result.Markdown)
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		m.logger.Debug("converter failed", "converter", rc.name, "file", info.Filename, "error", err)
		failed = append(failed, FailedConversionAttempt{Converter: rc.name, Err: err})
		if errors.Is(err, ErrExpansionLimit) {
			break
		}
	}

	if len(failed) == 0 {
		return nil, &UnsupportedFormatError{
			Filename:  info.Filename,
			Extension: info.Extension,
			MIMEType:  info.MIMEType,
		}
	}
	return nil, &ConversionError{Filename: info.Filename, Attempts: failed}
}

// attempt runs one converter, turning a panic inside a format library into an error.
func (m *MarkItDown) attempt(ctx context.Context, rc registeredConverter, r io.ReadSeeker, info StreamInfo) (result *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("converter panicked: %v", p)
		}
	}()

	result, err = rc.converter.Convert(ctx, r, info)
	if err == nil && result == nil {
		err = fmt.Errorf("converter returned no result")
	}
	return result, err
}

// enableBuiltins registers all built-in converters.
func (m *MarkItDown) enableBuiltins() {
	m.RegisterConverter("csv", NewCsvConverter(), PrioritySpecific)
	m.RegisterConverter("rss", NewRSSConverter(m), PrioritySpecific)
	m.RegisterConverter("docx", NewDocxConverter(m), PrioritySpecific)
	m.RegisterConverter("xlsx", NewXlsxConverter(), PrioritySpecific)
	m.RegisterConverter("xls", NewXlsConverter(), PrioritySpecific)
	m.RegisterConverter("pptx", NewPptxConverter(m), PrioritySpecific)
	m.RegisterConverter("epub", NewEpubConverter(m), PrioritySpecific)
	m.RegisterConverter("ipynb", NewIpynbConverter(), PrioritySpecific)
	m.RegisterConverter("pdf", NewPdfConverter(), PrioritySpecific)

	m.RegisterConverter("html", NewHTMLConverter(m), PriorityGeneric)
	m.RegisterConverter("zip", NewZipConverter(m), PriorityGeneric)
	m.RegisterConverter("plaintext", NewPlainTextConverter(), PriorityGeneric)
}

// detectMIMEType sniffs the content and falls back to the extension table.
// The reader is rewound before returning.
func detectMIMEType(r io.ReadSeeker, ext string) string {
	defer r.Seek(0, io.SeekStart) //nolint:errcheck

	mtype, err := mimetype.DetectReader(r)
	if err == nil && !mtype.Is("application/octet-stream") {
		return mtype.String()
	}
	return MIMEFromExtension(ext)
}

var extensionMIMETypes = map[string]string{
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx":     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":      "application/vnd.ms-excel",
	".html":     "text/html",
	".htm":      "text/html",
	".csv":      "text/csv",
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".json":     "application/json",
	".jsonl":    "application/jsonl",
	".xml":      "text/xml",
	".rss":      "application/rss+xml",
	".atom":     "application/atom+xml",
	".zip":      "application/zip",
	".epub":     "application/epub+zip",
	".ipynb":    "application/x-ipynb+json",
}

// MIMEFromExtension returns the MIME type for a known extension (with leading
// dot, any case) or application/octet-stream.
func MIMEFromExtension(ext string) string {
	if m, ok := extensionMIMETypes[strings.ToLower(ext)]; ok {
		return m
	}
	return "application/octet-stream"
}
