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
	"io"
	"strings"
)

// StreamInfo holds metadata about the input being converted.
type StreamInfo struct {
	MIMEType  string
	Extension string
	Charset   string
	Filename  string
	URL       string
}

// hasExtension reports whether the lower-cased extension is one of exts.
func (i StreamInfo) hasExtension(exts ...string) bool {
	ext := strings.ToLower(i.Extension)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// hasMIMEPrefix reports whether the MIME type starts with any of prefixes.
func (i StreamInfo) hasMIMEPrefix(prefixes ...string) bool {
	mime := strings.ToLower(i.MIMEType)
	if mime == "" {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(mime, p) {
			return true
		}
	}
	return false
}

// Result holds the output of a conversion.
type Result struct {
	Markdown string
	Title    string
}

// DocumentConverter is the interface all format converters implement.
type DocumentConverter interface {
	// Accepts returns true if this converter can handle the given input.
	// It must not read from the stream.
	Accepts(info StreamInfo) bool

	// Convert performs the actual document-to-markdown conversion. The reader
	// is positioned at the start of the input.
	Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error)
}
