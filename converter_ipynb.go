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
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// IpynbConverter handles Jupyter notebooks. Markdown cells pass through,
// code cells become fenced blocks in the kernel language.
type IpynbConverter struct{}

// NewIpynbConverter creates a new IpynbConverter.
func NewIpynbConverter() *IpynbConverter {
	return &IpynbConverter{}
}

func (c *IpynbConverter) Accepts(info StreamInfo) bool {
	return info.hasExtension(".ipynb") || info.hasMIMEPrefix("application/x-ipynb")
}

type notebook struct {
	Metadata struct {
		Title      string `json:"title"`
		KernelSpec struct {
			Language string `json:"language"`
		} `json:"kernelspec"`
		LanguageInfo struct {
			Name string `json:"name"`
		} `json:"language_info"`
	} `json:"metadata"`
	Cells []notebookCell `json:"cells"`
}

type notebookCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
	Outputs  []struct {
		Text json.RawMessage            `json:"text"`
		Data map[string]json.RawMessage `json:"data"`
	} `json:"outputs"`
}

func (c *IpynbConverter) Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo) (*Result, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read notebook: %w", err)
	}
	var nb notebook
	if err := json.Unmarshal([]byte(decodeText(data, info.Charset)), &nb); err != nil {
		return nil, fmt.Errorf("parse notebook: %w", err)
	}
	if nb.Cells == nil {
		return nil, fmt.Errorf("parse notebook: no cells")
	}

	lang := nb.Metadata.KernelSpec.Language
	if lang == "" {
		lang = nb.Metadata.LanguageInfo.Name
	}
	if lang == "" {
		lang = "python"
	}

	title := nb.Metadata.Title
	var sections []string
	for _, cell := range nb.Cells {
		source := notebookText(cell.Source)
		switch cell.CellType {
		case "markdown":
			sections = append(sections, source)
			if title == "" {
				title = firstHeading(source)
			}
		case "code":
			if strings.TrimSpace(source) != "" {
				sections = append(sections, fmt.Sprintf("```%s\n%s\n```", lang, source))
			}
			for _, out := range cell.Outputs {
				text := notebookText(out.Text)
				if text == "" {
					text = notebookText(out.Data["text/plain"])
				}
				if text = strings.TrimRight(text, "\n"); text != "" {
					sections = append(sections, fmt.Sprintf("```\n%s\n```", text))
				}
			}
		case "raw":
			if strings.TrimSpace(source) != "" {
				sections = append(sections, fmt.Sprintf("```\n%s\n```", source))
			}
		}
	}

	return &Result{Markdown: strings.Join(sections, "\n\n"), Title: title}, nil
}

// notebookText reads a multiline string, stored either as one string or as a
// list of lines.
func notebookText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "")
	}
	return ""
}

func firstHeading(source string) string {
	for _, line := range strings.Split(source, "\n") {
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}
