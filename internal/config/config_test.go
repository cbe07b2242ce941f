package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "64M", cfg.Server.BodyLimit)
	assert.Empty(t, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{".docx", ".xlsx", ".pptx", ".pdf", ".html", ".zip"}, cfg.Conversion.AllowedExtensions)
	assert.Zero(t, cfg.Conversion.Timeout, "conversion is unbounded by default")
	assert.True(t, cfg.Conversion.SanitizeHTML)
	assert.Equal(t, 30*time.Minute, cfg.Artifacts.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MARKITDOWN_WEB_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("MARKITDOWN_WEB_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MARKITDOWN_WEB_CONVERSION_TIMEOUT", "45s")
	t.Setenv("MARKITDOWN_WEB_LOG_FORMAT", "text")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 45*time.Second, cfg.Conversion.Timeout)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7070"
conversion:
  allowed_extensions: [".pdf", ".docx"]
artifacts:
  ttl: 5m
  max_entries: 10
log:
  level: debug
`), 0o644))

	v := New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, []string{".pdf", ".docx"}, cfg.Conversion.AllowedExtensions)
	assert.Equal(t, 5*time.Minute, cfg.Artifacts.TTL)
	assert.Equal(t, 10, cfg.Artifacts.MaxEntries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		field string
	}{
		{"bad log level", "log.level", "verbose", "level"},
		{"bad log format", "log.format", "xml", "format"},
		{"bad body limit", "server.body_limit", "lots", "body_limit"},
		{"no extensions", "conversion.allowed_extensions", []string{}, "allowed_extensions"},
		{"bad extension", "conversion.allowed_extensions", []string{".pdf", "../etc"}, "allowed_extensions"},
		{"negative timeout", "conversion.timeout", -time.Second, "timeout"},
		{"tiny ttl", "artifacts.ttl", time.Millisecond, "ttl"},
		{"zero capacity", "artifacts.max_entries", 0, "max_entries"},
		{"bad entry size", "conversion.max_entry_size", "huge", "max_entry_size"},
		{"empty expanded size", "conversion.max_expanded_size", "", "max_expanded_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.field), "error %q should name %q", err, tt.field)
		})
	}
}

func TestConversionArchiveLimits(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	entry, total, err := cfg.Conversion.ArchiveLimits()
	require.NoError(t, err)
	assert.Greater(t, entry, int64(40<<20))
	assert.Greater(t, total, entry)

	v := New()
	v.Set("conversion.max_entry_size", "1K")
	v.Set("conversion.max_expanded_size", "4K")
	cfg, err = Load(v)
	require.NoError(t, err)
	entry, total, err = cfg.Conversion.ArchiveLimits()
	require.NoError(t, err)
	assert.Less(t, entry, total)
	assert.Less(t, total, int64(8<<10))
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MARKITDOWN_WEB_LOG_LEVEL=warn\n"), 0o644))

	t.Setenv("MARKITDOWN_WEB_LOG_LEVEL", "")
	os.Unsetenv("MARKITDOWN_WEB_LOG_LEVEL")

	require.NoError(t, LoadEnvFiles(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "warn", os.Getenv("MARKITDOWN_WEB_LOG_LEVEL"))

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}
