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
	"github.com/tombee/appkit/pkg/schema"
)

// Schema returns the root configuration schema.
//
// The app section is unwrapped without prefix, so its keys (APP_NAME,
// SESSION_*, health, SWAGGER, ...) sit at the root of the file and of the
// resolved values. The other sections stay nested under their own keys.
//
// Applications declare their own settings as extra root fields:
//
//	config.Schema(schema.Int("meter", schema.Default(10)))
func Schema(extra ...*schema.Field) *schema.Node {
	fields := []*schema.Field{
		schema.Unwrap("app", AppSchema(), schema.Required()),
		schema.Nested("http", HTTPSchema(), schema.Default(map[string]any{})),
		schema.Nested("logging", LoggingSchema()),
		schema.Nested("server", ServerSchema(), schema.Default(map[string]any{})),
	}
	return schema.New("config", append(fields, extra...)...)
}

// AppSchema describes the application section.
func AppSchema() *schema.Node {
	return schema.New("app",
		schema.String("APP_NAME", schema.Required()),
		schema.Unwrap("session", SessionSchema(),
			schema.Prefix("SESSION_"),
			schema.Default(map[string]any{})),
		schema.Duration("PERMANENT_SESSION_LIFETIME", schema.Default(2678400)),
		schema.Nested("health", HealthSchema()),
		schema.Nested("swagger", SwaggerSchema(), schema.Rename("SWAGGER")),
		schema.Nested("metrics", MetricsSchema()),
	)
}

// SessionSchema describes session settings, unwrapped under SESSION_.
func SessionSchema() *schema.Node {
	return schema.New("session",
		schema.Unwrap("cookie", CookieSchema(),
			schema.Prefix("COOKIE_"),
			schema.Default(map[string]any{})),
		schema.Bool("REFRESH_EACH_REQUEST", schema.Default(true)),
	)
}

// CookieSchema describes the session cookie, unwrapped under COOKIE_.
func CookieSchema() *schema.Node {
	return schema.New("cookie",
		schema.String("NAME", schema.Default("session")),
		schema.String("DOMAIN"),
		schema.String("PATH"),
		schema.Bool("HTTPONLY", schema.Default(true)),
		schema.Bool("SECURE", schema.Default(false)),
		schema.String("SAMESITE"),
	)
}

// HealthSchema describes the health check extension.
func HealthSchema() *schema.Node {
	return schema.New("health",
		schema.String("ENDPOINT_URL", schema.Default("/healthcheck")),
	)
}

// SwaggerSpecSchema describes one published OpenAPI document.
func SwaggerSpecSchema() *schema.Node {
	return schema.New("spec",
		schema.String("ENDPOINT", schema.Default("apispec_1"), schema.Rename("endpoint")),
		schema.String("ROUTE", schema.Default("/apispec_1.json"), schema.Rename("route")),
	)
}

// SwaggerSchema describes the OpenAPI/Swagger UI extension.
func SwaggerSchema() *schema.Node {
	return schema.New("swagger",
		schema.ListOf("specs", SwaggerSpecSchema(), schema.Default([]any{map[string]any{}})),
		schema.String("STATIC_URL_PATH", schema.Default("https://unpkg.com/swagger-ui-dist@5"), schema.Rename("static_url_path")),
		schema.Bool("SWAGGER_UI", schema.Default(false), schema.Rename("swagger_ui")),
		schema.String("SPECS_ROUTE", schema.Default("/apidocs/"), schema.Rename("specs_route")),
		schema.String("TITLE", schema.Rename("title")),
		schema.String("VERSION", schema.Default("0.1.0-dev"), schema.Rename("version")),
	)
}

// MetricsSchema describes the Prometheus extension.
func MetricsSchema() *schema.Node {
	return schema.New("metrics",
		schema.String("ENDPOINT_URL", schema.Default("/metrics")),
		schema.String("NAMESPACE", schema.Default("")),
	)
}

// HTTPSchema describes HTTP middlewares.
func HTTPSchema() *schema.Node {
	return schema.New("http",
		schema.Nested("request_id", RequestIDSchema()),
	)
}

// RequestIDSchema describes the request correlation middleware.
func RequestIDSchema() *schema.Node {
	return schema.New("request_id",
		schema.String("REQUEST_ID_HEADER", schema.Default("X-Request-ID")),
	)
}

// LoggingSchema points at the logging configuration file.
func LoggingSchema() *schema.Node {
	return schema.New("logging",
		schema.Path("LOGGING_CONFIG_PATH", schema.Default("logging.yml"), schema.MustExist()),
	)
}

// ServerSchema describes the HTTP server runtime. Every group is unwrapped
// without prefix, so the groups only organize the file; the resolved keys
// are flat (server.bind, server.timeout, ...).
func ServerSchema() *schema.Node {
	group := func(name string, fields ...*schema.Field) *schema.Field {
		return schema.Unwrap(name, schema.New(name, fields...), schema.Default(map[string]any{}))
	}

	return schema.New("server",
		group("debugging",
			schema.Bool("reload", schema.Default(false)),
			schema.List("reload_extra_files", schema.KindPath, schema.Default([]any{})),
		),
		group("logging",
			schema.String("accesslog"),
			schema.String("errorlog", schema.Default("-")),
			schema.String("loglevel", schema.Default("info")),
		),
		group("process-naming",
			schema.String("proc_name"),
			schema.String("default_proc_name", schema.Default("appkit")),
		),
		group("ssl",
			schema.Path("keyfile"),
			schema.Path("certfile"),
		),
		group("security",
			schema.Int("limit_request_line", schema.Default(4094)),
			schema.Int("limit_request_fields", schema.Default(100)),
			schema.Int("limit_request_field_size", schema.Default(8190)),
		),
		group("server-mechanics",
			schema.Path("pidfile"),
			schema.Path("worker_tmp_dir"),
		),
		group("server-socket",
			schema.List("bind", schema.KindString, schema.Default([]any{":5000"})),
		),
		group("worker-processes",
			schema.String("worker_class", schema.Default("sync")),
			schema.Int("worker_connections", schema.Default(1000)),
			schema.Duration("timeout", schema.Default(30)),
			schema.Duration("graceful_timeout", schema.Default(30)),
			schema.Duration("keepalive", schema.Default(2)),
		),
	)
}
