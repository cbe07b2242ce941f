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

// Package batch runs an ordered list of uploads through the conversion engine,
// one file at a time, and reports one outcome per file.
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	markitdown "github.com/nicholasgasior/markitdown-web"
)

// DefaultAllowedExtensions are the formats offered by the upload form.
var DefaultAllowedExtensions = []string{".docx", ".xlsx", ".pptx", ".pdf", ".html", ".zip"}

// ErrExtensionNotAllowed is recorded for uploads outside the allow-list.
var ErrExtensionNotAllowed = errors.New("file extension not allowed")

// Converter turns one document into text. *markitdown.MarkItDown satisfies it.
type Converter interface {
	ConvertReader(ctx context.Context, r io.ReadSeeker, info markitdown.StreamInfo) (*markitdown.Result, error)
}

// Processor folds a batch of uploads into outcomes.
type Processor struct {
	conv    Converter
	allowed map[string]bool
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithAllowedExtensions replaces the allow-list. Extensions are matched case
// insensitively, with or without the leading dot. An empty list allows all.
func WithAllowedExtensions(exts ...string) Option {
	return func(p *Processor) {
		p.allowed = make(map[string]bool, len(exts))
		for _, e := range exts {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			p.allowed[e] = true
		}
	}
}

// WithTimeout bounds each file's conversion. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.timeout = d
	}
}

// WithLogger sets the logger that receives failure details.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a Processor with the default allow-list and no timeout.
func NewProcessor(conv Converter, opts ...Option) *Processor {
	p := &Processor{
		conv:   conv,
		logger: slog.New(slog.DiscardHandler),
	}
	WithAllowedExtensions(DefaultAllowedExtensions...)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extensions returns the allow-list, sorted. It is empty when everything is
// allowed.
func (p *Processor) Extensions() []string {
	exts := make([]string, 0, len(p.allowed))
	for e := range p.allowed {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

// Allowed reports whether a file name passes the extension allow-list.
func (p *Processor) Allowed(name string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	return p.allowed[strings.ToLower(path.Ext(DisplayName(name)))]
}

// Process converts uploads strictly in order. The result has exactly one
// outcome per upload, in upload order; a failing file never stops the ones
// after it.
func (p *Processor) Process(ctx context.Context, uploads []Upload) []Outcome {
	outcomes := make([]Outcome, 0, len(uploads))
	for _, u := range uploads {
		outcome := p.processOne(ctx, u)
		if outcome.Converted() {
			p.logger.Debug("file converted", "file", outcome.FileName, "bytes", len(outcome.Content))
		} else {
			p.logger.Warn("file conversion failed", "file", outcome.FileName, "error", outcome.Err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (p *Processor) processOne(ctx context.Context, u Upload) (outcome Outcome) {
	name := DisplayName(u.Name)
	outcome = Outcome{FileName: name, Status: StatusFailed}

	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{FileName: name, Status: StatusFailed, Err: fmt.Errorf("conversion panicked: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}
	if !p.Allowed(name) {
		outcome.Err = fmt.Errorf("%w: %q", ErrExtensionNotAllowed, path.Ext(name))
		return outcome
	}

	data, err := readUpload(u)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ext := strings.ToLower(path.Ext(name))
	result, err := p.conv.ConvertReader(ctx, bytes.NewReader(data), markitdown.StreamInfo{
		Extension: ext,
		MIMEType:  markitdown.MIMEFromExtension(ext),
		Filename:  name,
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if result == nil {
		outcome.Err = errors.New("converter returned no result")
		return outcome
	}

	return Outcome{
		FileName: name,
		Status:   StatusConverted,
		Content:  result.Markdown,
		Title:    result.Title,
	}
}

func readUpload(u Upload) ([]byte, error) {
	if u.Open == nil {
		return nil, errors.New("upload has no content")
	}
	rc, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}
