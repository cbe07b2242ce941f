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
	"errors"
	"fmt"
	"strings"
)

// UnsupportedFormatError means no registered converter accepted the input.
type UnsupportedFormatError struct {
	Filename  string
	Extension string
	MIMEType  string
}

func (e *UnsupportedFormatError) Error() string {
	var details []string
	if e.Extension != "" {
		details = append(details, "extension "+e.Extension)
	}
	if e.MIMEType != "" {
		details = append(details, "type "+e.MIMEType)
	}
	msg := "no converter for " + describeInput(e.Filename)
	if len(details) > 0 {
		msg += " (" + strings.Join(details, ", ") + ")"
	}
	return msg
}

// FailedConversionAttempt is one converter that accepted the input and then
// returned an error or panicked.
type FailedConversionAttempt struct {
	Converter string
	Err       error
}

func (a FailedConversionAttempt) String() string {
	return a.Converter + ": " + a.Err.Error()
}

// ConversionError means every accepting converter failed. Attempts are in the
// order they were tried.
type ConversionError struct {
	Filename string
	Attempts []FailedConversionAttempt
}

func (e *ConversionError) Error() string {
	subject := "convert " + describeInput(e.Filename)
	switch len(e.Attempts) {
	case 0:
		return subject + ": failed"
	case 1:
		return subject + ": " + e.Attempts[0].String()
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s: %d converters failed: %s", subject, len(e.Attempts), strings.Join(parts, "; "))
}

func (e *ConversionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

func describeInput(filename string) string {
	if filename == "" {
		return "input"
	}
	return filename
}

// IsUnsupportedFormat reports whether err is or wraps an UnsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	var target *UnsupportedFormatError
	return errors.As(err, &target)
}

// IsConversionError reports whether err is or wraps a ConversionError.
func IsConversionError(err error) bool {
	var target *ConversionError
	return errors.As(err, &target)
}
