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

// Package config loads markitdown-web settings from defaults, an optional
// YAML file, .env files and MARKITDOWN_WEB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "MARKITDOWN_WEB"
	FileName  = "markitdown-web"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server" json:"server"`
	Conversion ConversionConfig `mapstructure:"conversion" json:"conversion"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts" json:"artifacts"`
	Log        LogConfig        `mapstructure:"log" json:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr"`
	BodyLimit       string        `mapstructure:"body_limit" json:"body_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins" json:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

type ConversionConfig struct {
	AllowedExtensions []string      `mapstructure:"allowed_extensions" json:"allowed_extensions"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
	KeepDataURIs      bool          `mapstructure:"keep_data_uris" json:"keep_data_uris"`
	SanitizeHTML      bool          `mapstructure:"sanitize_html" json:"sanitize_html"`
	MaxEntrySize      string        `mapstructure:"max_entry_size" json:"max_entry_size"`
	MaxExpandedSize   string        `mapstructure:"max_expanded_size" json:"max_expanded_size"`
}

// ArchiveLimits parses the archive size limits into bytes.
func (c ConversionConfig) ArchiveLimits() (entry, total int64, err error) {
	if entry, err = bytes.Parse(c.MaxEntrySize); err != nil {
		return 0, 0, fmt.Errorf("max_entry_size: %w", err)
	}
	if total, err = bytes.Parse(c.MaxExpandedSize); err != nil {
		return 0, 0, fmt.Errorf("max_expanded_size: %w", err)
	}
	return entry, total, nil
}

type ArtifactsConfig struct {
	TTL           time.Duration `mapstructure:"ttl" json:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
	MaxEntries    int           `mapstructure:"max_entries" json:"max_entries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// SetDefaults registers every key so that environment overrides and Unmarshal
// see it even when no config file exists.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit", "64M")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.idle_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("conversion.allowed_extensions", []string{".docx", ".xlsx", ".pptx", ".pdf", ".html", ".zip"})
	v.SetDefault("conversion.timeout", time.Duration(0))
	v.SetDefault("conversion.keep_data_uris", false)
	v.SetDefault("conversion.sanitize_html", true)
	v.SetDefault("conversion.max_entry_size", "50M")
	v.SetDefault("conversion.max_expanded_size", "200M")

	v.SetDefault("artifacts.ttl", 30*time.Minute)
	v.SetDefault("artifacts.sweep_interval", time.Minute)
	v.SetDefault("artifacts.max_entries", 1000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	Prepare(v)
	return v
}

// Prepare applies defaults and environment binding to an existing instance.
func Prepare(v *viper.Viper) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.Conversion.AllowedExtensions = splitList(cfg.Conversion.AllowedExtensions)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// splitList trims entries and also splits entries that still contain commas,
// which is how list values arrive from a single environment variable.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var (
	reBodyLimit = regexp.MustCompile(`^[0-9]+[KMGTP]?$`)
	reExtension = regexp.MustCompile(`^\.?[A-Za-z0-9]+$`)
)

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Conversion),
		validation.Field(&c.Artifacts),
		validation.Field(&c.Log),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.BodyLimit, validation.Required, validation.Match(reBodyLimit)),
		validation.Field(&s.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.IdleTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.ShutdownTimeout, validation.Required),
	)
}

func (c ConversionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AllowedExtensions, validation.Required, validation.Each(validation.Match(reExtension))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxEntrySize, validation.Required, validation.Match(reBodyLimit)),
		validation.Field(&c.MaxExpandedSize, validation.Required, validation.Match(reBodyLimit)),
	)
}

func (a ArtifactsConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&a.SweepInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&a.MaxEntries, validation.Required, validation.Min(1)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.Required, validation.In("json", "text")),
	)
}
