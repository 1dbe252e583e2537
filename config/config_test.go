package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadFrom_File(t *testing.T) {
	dir := writeConfig(t, `
supabase:
  url: https://abc.supabase.co
  anon_key: file-key
http:
  timeout_secs: 5
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, BackendSupabase, cfg.Backend.Type)
	assert.Equal(t, "https://abc.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "file-key", cfg.Supabase.AnonKey)
	assert.Equal(t, 5, cfg.HTTP.TimeoutSecs)
	assert.Equal(t, "chrome_120", cfg.HTTP.ClientProfile)
}

func TestLoadFrom_EnvOnly(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "env-key")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "https://env.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "env-key", cfg.Supabase.AnonKey)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSecs)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, `
supabase:
  url: https://abc.supabase.co
  anon_key: file-key
`)
	t.Setenv("SUPABASE_ANON_KEY", "env-key")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Supabase.AnonKey)
}

func TestLoadFrom_MissingSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "no url", env: map[string]string{"SUPABASE_ANON_KEY": "k"}, want: "supabase.url is required"},
		{name: "no key", env: map[string]string{"SUPABASE_URL": "https://x.supabase.co"}, want: "supabase.anon_key is required"},
		{name: "libsql without url", env: map[string]string{"BACKEND_TYPE": "libsql"}, want: "libsql.url is required"},
		{name: "unknown backend", env: map[string]string{"BACKEND_TYPE": "mongo"}, want: `backend.type must be "supabase" or "libsql", got "mongo"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"SUPABASE_URL", "SUPABASE_ANON_KEY", "BACKEND_TYPE"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFrom(t.TempDir())
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestLoadFrom_LibSQL(t *testing.T) {
	dir := writeConfig(t, `
backend:
  type: libsql
libsql:
  url: libsql://ideas-letieu.turso.io
  token: secret
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, BackendLibSQL, cfg.Backend.Type)
	assert.Equal(t, "libsql://ideas-letieu.turso.io", cfg.LibSQL.URL)
	assert.Equal(t, "secret", cfg.LibSQL.Token)
}

func TestLoadFrom_BadYAML(t *testing.T) {
	dir := writeConfig(t, "supabase: [unclosed")

	_, err := LoadFrom(dir)
	assert.ErrorContains(t, err, "error reading config file")
}
