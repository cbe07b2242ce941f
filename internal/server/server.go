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

// Package server is the HTTP front end: the upload page, artifact downloads
// and a JSON/MessagePack conversion API.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"

	"github.com/nicholasgasior/markitdown-web/internal/artifact"
	"github.com/nicholasgasior/markitdown-web/internal/batch"
)

// Options wires the server's collaborators.
type Options struct {
	Processor   *batch.Processor
	Store       *artifact.Store
	Logger      *slog.Logger
	Version     string
	BodyLimit   string
	CORSOrigins []string
}

// Server owns the echo instance and its handlers.
type Server struct {
	echo      *echo.Echo
	processor *batch.Processor
	store     *artifact.Store
	logger    *slog.Logger
	version   string
	cors      *cors.Cors
}

// New builds the router. Processor and Store are required.
func New(opts Options) (*Server, error) {
	if opts.Processor == nil || opts.Store == nil {
		return nil, fmt.Errorf("server: processor and store are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	renderer, err := newTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = errorHandler(opts.Logger)

	s := &Server{
		echo:      e,
		processor: opts.Processor,
		store:     opts.Store,
		logger:    opts.Logger,
		version:   opts.Version,
	}
	if len(opts.CORSOrigins) > 0 {
		s.cors = cors.New(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
			ExposedHeaders: []string{"Content-Disposition", echo.HeaderXRequestID},
		})
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(opts.Logger))
	e.Use(middleware.Recover())
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.POST("/", s.handleUploadPage)
	s.echo.GET("/download/:id", s.handleDownload)

	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/convert", s.handleConvert)
}

// Handler returns the root handler, wrapped with CORS when origins are configured.
func (s *Server) Handler() http.Handler {
	if s.cors == nil {
		return s.echo
	}
	return s.cors.Handler(s.echo)
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error.Error())...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}

// acceptAttr renders the file input's accept list.
func acceptAttr(exts []string) string {
	return strings.Join(exts, ",")
}

const (
	markdownMIME = "text/markdown; charset=utf-8"
	textMIME     = "text/plain; charset=utf-8"
)

// fileResult is one file as shown on the page and returned by the API.
type fileResult struct {
	FileName     string       `json:"file_name" msgpack:"file_name"`
	Status       batch.Status `json:"status" msgpack:"status"`
	Title        string       `json:"title,omitempty" msgpack:"title,omitempty"`
	Content      string       `json:"content,omitempty" msgpack:"content,omitempty"`
	Notice       string       `json:"notice,omitempty" msgpack:"notice,omitempty"`
	MarkdownName string       `json:"markdown_name,omitempty" msgpack:"markdown_name,omitempty"`
	MarkdownURL  string       `json:"markdown_url,omitempty" msgpack:"markdown_url,omitempty"`
	TextName     string       `json:"text_name,omitempty" msgpack:"text_name,omitempty"`
	TextURL      string       `json:"text_url,omitempty" msgpack:"text_url,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty" msgpack:"expires_at,omitempty"`
}

// publish stores both artifacts of every converted outcome as one group. The
// Markdown and text artifacts carry the same bytes as the preview.
func (s *Server) publish(outcomes []batch.Outcome) []fileResult {
	results := make([]fileResult, 0, len(outcomes))
	for _, o := range outcomes {
		r := fileResult{FileName: o.FileName, Status: o.Status}
		if !o.Converted() {
			r.Notice = o.Notice()
			results = append(results, r)
			continue
		}

		data := []byte(o.Content)
		ids := s.store.PutGroup(
			artifact.File{Name: o.MarkdownName(), MIMEType: markdownMIME, Data: data},
			artifact.File{Name: o.TextName(), MIMEType: textMIME, Data: data},
		)
		mdID, txtID := ids[0], ids[1]

		r.Title = o.Title
		r.Content = o.Content
		r.MarkdownName = o.MarkdownName()
		r.MarkdownURL = "/download/" + mdID
		r.TextName = o.TextName()
		r.TextURL = "/download/" + txtID
		if a, ok := s.store.Get(mdID); ok {
			expires := a.ExpiresAt
			r.ExpiresAt = &expires
		}
		results = append(results, r)
	}
	return results
}
