// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	appkiterrors "github.com/tombee/appkit/pkg/errors"
	"github.com/tombee/appkit/pkg/schema"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.DefaultPath = ""
	l.EnvVar = ""
	l.Substituter = schema.MapSubstituter(env)
	return l
}

const sampleConfig = `
APP_NAME: orders
session:
  cookie:
    NAME: sid
    SECURE: true
PERMANENT_SESSION_LIFETIME: 3600
health:
  ENDPOINT_URL: /health
swagger:
  SWAGGER_UI: true
http:
  request_id:
    REQUEST_ID_HEADER: X-Correlation-ID
server:
  server-socket:
    bind:
      - "127.0.0.1:${PORT}"
  worker-processes:
    worker_class: iterating
    timeout: 10
  reload: true
`

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	values, err := testLoader(map[string]string{"PORT": "8000"}).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "orders", values.String("APP_NAME"))
	assert.Equal(t, "sid", values.String("SESSION_COOKIE_NAME"))
	assert.True(t, values.Bool("SESSION_COOKIE_SECURE"))
	assert.True(t, values.Bool("SESSION_COOKIE_HTTPONLY"))
	assert.True(t, values.Bool("SESSION_REFRESH_EACH_REQUEST"))
	assert.Equal(t, time.Hour, values.Duration("PERMANENT_SESSION_LIFETIME"))
	assert.Equal(t, "/health", values.String("health.ENDPOINT_URL"))
	assert.True(t, values.Bool("SWAGGER.swagger_ui"))
	assert.Equal(t, "/apidocs/", values.String("SWAGGER.specs_route"))
	assert.False(t, values.Has("metrics"))
	assert.Equal(t, "X-Correlation-ID", values.String("http.request_id.REQUEST_ID_HEADER"))
	assert.Equal(t, "logging.yml", values.String("logging.LOGGING_CONFIG_PATH"), "the default is not checked")

	server := values.Section("server")
	require.NotNil(t, server)
	assert.Equal(t, []string{"127.0.0.1:8000"}, server.Strings("bind"))
	assert.Equal(t, "iterating", server.String("worker_class"))
	assert.Equal(t, 10*time.Second, server.Duration("timeout"))
	assert.Equal(t, 30*time.Second, server.Duration("graceful_timeout"))
	assert.Equal(t, 1000, server.Int("worker_connections"))
	assert.True(t, server.Bool("reload"))
	assert.Equal(t, "info", server.String("loglevel"))
	assert.False(t, server.Has("pidfile"))
}

func TestLoad_Minimal(t *testing.T) {
	values, err := testLoader(nil).Load(writeConfig(t, "APP_NAME: minimal\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{":5000"}, values.Strings("server.bind"))
	assert.Equal(t, "sync", values.String("server.worker_class"))
	assert.Equal(t, 31*24*time.Hour, values.Duration("PERMANENT_SESSION_LIFETIME"))
	assert.True(t, values.Has("http"))
	assert.False(t, values.Has("http.request_id"))
	assert.False(t, values.Has("health"))
	assert.False(t, values.Has("logging"))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
		errText string
	}{
		{
			name:    "missing app name",
			content: "health: {}\n",
			wantKey: "APP_NAME",
			errText: "missing required field",
		},
		{
			name:    "invalid type",
			content: "APP_NAME: x\nserver:\n  timeout: soon\n",
			wantKey: "server.timeout",
			errText: "expected duration",
		},
		{
			name:    "several errors",
			content: "server:\n  workers-processes: {}\n  worker_connections: many\n",
			errText: "2 invalid field(s)",
		},
		{
			name:    "malformed yaml",
			content: "APP_NAME: [unterminated\n",
			errText: "parsing YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testLoader(nil).Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}

			var cfgErr *appkiterrors.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %T", err)
			}
			if cfgErr.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", cfgErr.Key, tt.wantKey)
			}
			if !strings.Contains(cfgErr.UserMessage(), tt.errText) {
				t.Errorf("message %q does not contain %q", cfgErr.UserMessage(), tt.errText)
			}
		})
	}
}

func TestLoader_Path(t *testing.T) {
	l := NewLoader()

	t.Setenv(EnvConfigFile, "")
	path, mustExist := l.Path("")
	assert.Equal(t, DefaultPath, path)
	assert.False(t, mustExist)

	t.Setenv(EnvConfigFile, "/srv/app.yml")
	path, mustExist = l.Path("")
	assert.Equal(t, "/srv/app.yml", path)
	assert.True(t, mustExist)

	path, _ = l.Path("explicit.yml")
	assert.Equal(t, "explicit.yml", path)
}

func TestLoad_MissingFiles(t *testing.T) {
	dir := t.TempDir()

	l := testLoader(nil)
	l.DefaultPath = filepath.Join(dir, "absent.yml")
	_, err := l.LoadWithOverrides("", map[string]any{"APP_NAME": "defaults-only"})
	require.NoError(t, err, "a missing default file falls back to schema defaults")

	_, err = l.Load(filepath.Join(dir, "explicit.yml"))
	var cfgErr *appkiterrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvVarPath(t *testing.T) {
	path := writeConfig(t, "APP_NAME: from-env-file\n")
	t.Setenv(EnvConfigFile, path)

	l := NewLoader()
	values, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env-file", values.String("APP_NAME"))
}

func TestLoadWithOverrides(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	values, err := testLoader(map[string]string{"PORT": "8000"}).LoadWithOverrides(path, map[string]any{
		"SESSION_COOKIE_NAME": "override",
		"server":              map[string]any{"bind": []any{":9000"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "override", values.String("SESSION_COOKIE_NAME"))
	assert.Equal(t, []string{":9000"}, values.Strings("server.bind"))
	assert.Equal(t, "iterating", values.String("server.worker_class"))

	_, err = testLoader(map[string]string{"PORT": "8000"}).LoadWithOverrides(path, map[string]any{
		"server": map[string]any{"timeout": "never"},
	})
	require.Error(t, err, "overrides are validated")
}

func TestValues_YAMLRoundTrip(t *testing.T) {
	l := testLoader(map[string]string{"PORT": "8000"})
	values, err := l.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	out, err := values.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "PERMANENT_SESSION_LIFETIME: 1h0m0s")

	raw := map[string]any{}
	require.NoError(t, yaml.Unmarshal(out, &raw))
	again, err := l.Resolve(raw)
	require.NoError(t, err)
	assert.Equal(t, values, again)
}

func TestLoadWithOverrides_SubstitutesOnce(t *testing.T) {
	l := testLoader(map[string]string{"NAME": "db${x}", "PORT": "8000"})
	path := writeConfig(t, "APP_NAME: ${NAME}\n")

	values, err := l.LoadWithOverrides(path, map[string]any{"server": map[string]any{"timeout": 5}})
	require.NoError(t, err)
	assert.Equal(t, "db${x}", values.String("APP_NAME"))
	assert.Equal(t, 5*time.Second, values.Duration("server.timeout"))

	out, err := values.YAML()
	require.NoError(t, err)
	raw := map[string]any{}
	require.NoError(t, yaml.Unmarshal(out, &raw))
	again, err := l.Resolve(raw)
	require.NoError(t, err)
	assert.Equal(t, values, again)
}

func TestLoad_LoggingConfigPath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "logging.yml")
	require.NoError(t, os.WriteFile(existing, []byte("level: debug\n"), 0o600))

	values, err := testLoader(nil).Load(writeConfig(t, "APP_NAME: svc\nlogging:\n  LOGGING_CONFIG_PATH: "+existing+"\n"))
	require.NoError(t, err)
	assert.Equal(t, existing, values.String("logging.LOGGING_CONFIG_PATH"))

	again, err := testLoader(nil).Resolve(map[string]any(values))
	require.NoError(t, err)
	assert.Equal(t, values, again)

	_, err = testLoader(nil).Load(writeConfig(t, "APP_NAME: svc\nlogging:\n  LOGGING_CONFIG_PATH: "+filepath.Join(dir, "unknown.yml")+"\n"))
	var invalid *schema.SchemaValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "logging.LOGGING_CONFIG_PATH", invalid.Field)
}

func TestValues_Accessors(t *testing.T) {
	v := Values{
		"a": map[string]any{"b": map[string]any{"c": "42"}},
		"d": []any{"x", "y"},
	}

	assert.Equal(t, 42, v.Int("a.b.c"))
	assert.Equal(t, "42", v.String("a.b.c"))
	assert.Equal(t, []string{"x", "y"}, v.Strings("d"))
	assert.Nil(t, v.Strings("missing"))
	assert.Nil(t, v.Section("d"))
	assert.False(t, v.Has("a.b.c.d"))
	assert.Equal(t, "", v.String("a.x"))

	merged := v.Merge(map[string]any{"a": map[string]any{"b": map[string]any{"e": 1}}})
	assert.Equal(t, "42", merged.String("a.b.c"))
	assert.Equal(t, 1, merged.Int("a.b.e"))
	assert.False(t, v.Has("a.b.e"), "Merge does not modify the receiver")
}
