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

import "fmt"

// Status is the variant tag of an Outcome.
type Status string

const (
	StatusConverted Status = "converted"
	StatusFailed    Status = "failed"
)

// Outcome is the result of one upload: either converted text or a failure.
// Err carries the failure detail for logs only.
type Outcome struct {
	FileName string `json:"file_name" msgpack:"file_name" yaml:"file_name"`
	Status   Status `json:"status" msgpack:"status" yaml:"status"`
	Content  string `json:"content,omitempty" msgpack:"content,omitempty" yaml:"-"`
	Title    string `json:"title,omitempty" msgpack:"title,omitempty" yaml:"title,omitempty"`
	Err      error  `json:"-" msgpack:"-" yaml:"-"`
}

// Converted reports whether the outcome carries text.
func (o Outcome) Converted() bool {
	return o.Status == StatusConverted
}

// Notice is the message shown to the user for a failed file.
func (o Outcome) Notice() string {
	return fmt.Sprintf("Could not read %s. Please check the format.", o.FileName)
}

// MarkdownName is the download name of the Markdown artifact.
func (o Outcome) MarkdownName() string {
	return MarkdownName(o.FileName)
}

// TextName is the download name of the plain-text artifact.
func (o Outcome) TextName() string {
	return TextName(o.FileName)
}

// Summary counts outcomes by status.
type Summary struct {
	Converted int `json:"converted" msgpack:"converted" yaml:"converted"`
	Failed    int `json:"failed" msgpack:"failed" yaml:"failed"`
}

// Summarize tallies a batch.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		if o.Converted() {
			s.Converted++
		} else {
			s.Failed++
		}
	}
	return s
}

// Total is the number of outcomes in the batch.
func (s Summary) Total() int {
	return s.Converted + s.Failed
}

// HasFailures reports whether any file in the batch failed to convert.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}
