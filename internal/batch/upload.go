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
	"bytes"
	"io"
	"mime/multipart"
	"os"
)

// Upload is one file of a batch. Open is called once, when the file's turn
// comes.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FromBytes wraps in-memory content.
func FromBytes(name string, data []byte) Upload {
	return Upload{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromFileHeader wraps a file from a parsed multipart form.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromPath wraps a local file. The display name is the path's last element.
func FromPath(p string) Upload {
	u := Upload{
		Name: DisplayName(p),
		Open: func() (io.ReadCloser, error) {
			return os.Open(p)
		},
	}
	if fi, err := os.Stat(p); err == nil {
		u.Size = fi.Size()
	}
	return u
}
