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
	"log/slog"
	"net/http"
)

// Option configures a MarkItDown instance.
type Option func(*MarkItDown)

// WithKeepDataURIs configures whether to keep full data URIs in output
// (default: false, which truncates them to data:mime/type;base64...).
func WithKeepDataURIs(keep bool) Option {
	return func(m *MarkItDown) {
		m.keepDataURIs = keep
	}
}

// WithSanitizeHTML toggles the bluemonday pass over HTML input (default: true).
func WithSanitizeHTML(sanitize bool) Option {
	return func(m *MarkItDown) {
		m.sanitizeHTML = sanitize
	}
}

// WithLogger sets the logger used for per-attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *MarkItDown) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHTTPClient sets the client used by ConvertURL.
func WithHTTPClient(client *http.Client) Option {
	return func(m *MarkItDown) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithArchiveLimits bounds how much a single conversion may inflate out of zip
// containers (ZIP, DOCX, PPTX, XLSX, EPUB): maxEntry per entry and maxTotal
// across every entry, nested archives included. Non-positive values keep the
// defaults of 50 MiB and 200 MiB.
func WithArchiveLimits(maxEntry, maxTotal int64) Option {
	return func(m *MarkItDown) {
		m.maxEntrySize = maxEntry
		m.maxExpandedSize = maxTotal
	}
}
