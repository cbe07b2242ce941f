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

package batch

import (
	"path"
	"strings"
)

const (
	markdownSuffix = "_converted.md"
	textSuffix     = "_converted.txt"
)

// DisplayName returns the last path element of an uploaded file name. Some
// browsers send the client-side path, with either separator.
func DisplayName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// BaseName strips the final extension from the display name. Names that are
// only an extension (".env") or have none ("README") are returned unchanged.
func BaseName(name string) string {
	name = DisplayName(name)
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// MarkdownName is the download name of the Markdown artifact: <base>_converted.md.
func MarkdownName(name string) string {
	return BaseName(name) + markdownSuffix
}

// TextName is the download name of the plain-text artifact: <base>_converted.txt.
func TextName(name string) string {
	return BaseName(name) + textSuffix
}
