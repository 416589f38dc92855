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

// Package schema declares configuration schemas as trees of typed fields
// and resolves raw, loosely typed mappings (usually decoded YAML) against
// them.
//
// A Node is an ordered list of fields. Scalar fields are coerced to their
// kind, missing fields take their default, and nested fields either keep
// their own sub-mapping or are unwrapped, which flattens the child's keys
// into the parent under a prefix:
//
//	session := schema.New("session",
//		schema.Bool("REFRESH_EACH_REQUEST", schema.Default(true)),
//	)
//	app := schema.New("app",
//		schema.String("APP_NAME", schema.Required()),
//		schema.Unwrap("session", session, schema.Prefix("SESSION_"), schema.Default(map[string]any{})),
//	)
//
//	out, err := schema.Resolve(app, raw)
//	// out["SESSION_REFRESH_EACH_REQUEST"] == true
//
// String values may reference environment variables as ${NAME} or
// ${NAME:-fallback}. Substitution goes through a Substituter so tests can
// supply their own environment.
package schema
