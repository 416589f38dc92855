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
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/tombee/appkit/pkg/schema"
)

// Values is a resolved configuration. Keys of nested sections are reached
// with dotted paths ("server.bind", "health.ENDPOINT_URL").
type Values map[string]any

// Get returns the value at path.
func (v Values) Get(path string) (any, bool) {
	var cur any = map[string]any(v)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether path is set.
func (v Values) Has(path string) bool {
	_, ok := v.Get(path)
	return ok
}

// String returns the value at path as a string, or "".
func (v Values) String(path string) string {
	val, _ := v.Get(path)
	return cast.ToString(val)
}

// Bool returns the value at path as a bool, or false.
func (v Values) Bool(path string) bool {
	val, _ := v.Get(path)
	return cast.ToBool(val)
}

// Int returns the value at path as an int, or 0.
func (v Values) Int(path string) int {
	val, _ := v.Get(path)
	return cast.ToInt(val)
}

// Duration returns the value at path as a duration, or 0.
func (v Values) Duration(path string) time.Duration {
	val, _ := v.Get(path)
	if d, ok := val.(time.Duration); ok {
		return d
	}
	return cast.ToDuration(val)
}

// Strings returns the value at path as a string slice, or nil.
func (v Values) Strings(path string) []string {
	val, ok := v.Get(path)
	if !ok {
		return nil
	}
	return cast.ToStringSlice(val)
}

// Section returns the mapping at path, or nil.
func (v Values) Section(path string) Values {
	val, _ := v.Get(path)
	m, ok := asMap(val)
	if !ok {
		return nil
	}
	return Values(m)
}

// Merge returns a copy of v with overrides deep-merged on top. Mappings are
// merged key by key; any other value replaces the existing one.
func (v Values) Merge(overrides map[string]any) Values {
	return Values(mergeMaps(map[string]any(v), overrides))
}

// YAML renders the values as a YAML document that loads back to the same
// values: durations are written in Go duration syntax and ${ in strings is
// escaped.
func (v Values) YAML() ([]byte, error) {
	return yaml.Marshal(printable(map[string]any(v)))
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Values:
		return m, true
	}
	return nil, false
}

func mergeMaps(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, val := range base {
		out[k] = val
	}
	for k, val := range overrides {
		if om, ok := asMap(val); ok {
			if bm, ok := asMap(out[k]); ok {
				out[k] = mergeMaps(bm, om)
				continue
			}
		}
		out[k] = val
	}
	return out
}

func printable(v any) any {
	switch t := v.(type) {
	case time.Duration:
		return t.String()
	case string:
		return schema.Escape(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = printable(item)
		}
		return out
	case Values:
		return printable(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = printable(item)
		}
		return out
	default:
		return v
	}
}
