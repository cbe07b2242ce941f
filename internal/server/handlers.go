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

package server

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nicholasgasior/markitdown-web/internal/batch"
)

const (
	formField    = "files"
	msgpackMIME  = "application/msgpack"
	pageTemplate = "index.html"
)

type pageData struct {
	Accept string
	Files  []fileResult
}

type convertResponse struct {
	Files   []fileResult  `json:"files" msgpack:"files"`
	Summary batch.Summary `json:"summary" msgpack:"summary"`
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, pageTemplate, pageData{Accept: acceptAttr(s.processor.Extensions())})
}

// handleUploadPage converts the submitted files and renders one panel per
// file. A submission without files renders the empty page.
func (s *Server) handleUploadPage(c echo.Context) error {
	data := pageData{Accept: acceptAttr(s.processor.Extensions())}

	uploads, err := formUploads(c)
	if err != nil {
		return err
	}
	if len(uploads) > 0 {
		data.Files = s.publish(s.processor.Process(c.Request().Context(), uploads))
	}
	return c.Render(http.StatusOK, pageTemplate, data)
}

// handleConvert is the API form of the upload page.
func (s *Server) handleConvert(c echo.Context) error {
	uploads, err := formUploads(c)
	if err != nil {
		return err
	}
	if len(uploads) == 0 {
		return NewValidationError(formField)
	}

	outcomes := s.processor.Process(c.Request().Context(), uploads)
	resp := convertResponse{
		Files:   s.publish(outcomes),
		Summary: batch.Summarize(outcomes),
	}

	if wantsMsgpack(c.Request()) {
		body, err := msgpack.Marshal(resp)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, msgpackMIME, body)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDownload(c echo.Context) error {
	id := c.Param("id")
	a, ok := s.store.Get(id)
	if !ok {
		return NewNotFoundError("download", id)
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, a.MIMEType, a.Data)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
	})
}

// formUploads returns the files of the multipart field, in submission order.
// Requests that are not multipart carry no files.
func formUploads(c echo.Context) ([]batch.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return nil, echo.ErrStatusRequestEntityTooLarge
		}
		return nil, NewBadRequestError("could not parse upload", err)
	}
	return uploadsFrom(form.File[formField]), nil
}

func uploadsFrom(headers []*multipart.FileHeader) []batch.Upload {
	uploads := make([]batch.Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		uploads = append(uploads, batch.FromFileHeader(fh))
	}
	return uploads
}

func wantsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get(echo.HeaderAccept), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && (mediaType == msgpackMIME || mediaType == "application/x-msgpack") {
			return true
		}
	}
	return false
}
