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

package schema

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

func coerce(kind Kind, v any) (any, error) {
	switch kind {
	case KindString:
		if isComposite(v) {
			return nil, fmt.Errorf("not a scalar")
		}
		return cast.ToStringE(v)
	case KindBool:
		return cast.ToBoolE(v)
	case KindInt:
		return toInt(v)
	case KindDuration:
		return toDuration(v)
	case KindPath:
		return toPath(v)
	case KindMapping:
		m, err := toMapping(v)
		if err != nil {
			return nil, err
		}
		return copyValue(m), nil
	default:
		return nil, fmt.Errorf("kind %s is not a scalar kind", kind)
	}
}

func isComposite(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case bool:
		return 0, fmt.Errorf("boolean is not an integer")
	case float64:
		return intFromFloat(n)
	case float32:
		return intFromFloat(float64(n))
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("%d is out of range", n)
		}
	case uint:
		if uint64(n) > math.MaxInt {
			return 0, fmt.Errorf("%d is out of range", n)
		}
	case string:
		n = strings.TrimSpace(n)
		if i, err := strconv.ParseInt(n, 10, 0); err == nil {
			return int(i), nil
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return intFromFloat(f)
		}
		return cast.ToIntE(n)
	}
	return cast.ToIntE(v)
}

func intFromFloat(f float64) (int, error) {
	switch {
	case f != math.Trunc(f):
		return 0, fmt.Errorf("%v is not integral", f)
	case f < math.MinInt || f >= math.MaxInt:
		return 0, fmt.Errorf("%v is out of range", f)
	}
	return int(f), nil
}

// Durations are never negative. Numbers are seconds.
func toDuration(v any) (time.Duration, error) {
	var d time.Duration
	switch t := v.(type) {
	case time.Duration:
		d = t
	case bool:
		return 0, fmt.Errorf("boolean is not a duration")
	case string:
		s := strings.TrimSpace(t)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return seconds(secs)
		}
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	default:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, err
		}
		return seconds(secs)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s is negative", d)
	}
	return d, nil
}

func seconds(secs float64) (time.Duration, error) {
	ns := secs * float64(time.Second)
	switch {
	case math.IsNaN(ns):
		return 0, fmt.Errorf("%v is not a number", secs)
	case ns < 0:
		return 0, fmt.Errorf("%v seconds is negative", secs)
	case ns >= math.MaxInt64:
		return 0, fmt.Errorf("%v seconds is out of range", secs)
	}
	return time.Duration(ns), nil
}

func toPath(v any) (string, error) {
	if isComposite(v) {
		return "", fmt.Errorf("not a scalar")
	}
	p, err := cast.ToStringE(v)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding %s: %w", p, err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return filepath.Clean(p), nil
}

func toMapping(v any) (map[string]any, error) {
	if _, ok := v.(string); ok {
		return nil, fmt.Errorf("not a mapping")
	}
	return cast.ToStringMapE(v)
}

func toList(v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case string:
		return []any{l}, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// copyValue deep-copies mappings and lists so defaults are never shared
// between resolutions.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
