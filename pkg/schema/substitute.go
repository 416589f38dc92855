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
	"os"
	"regexp"
	"strings"
)

// Substituter looks up variables referenced from configuration strings.
type Substituter interface {
	Lookup(name string) (string, bool)
}

// EnvSubstituter reads the process environment.
type EnvSubstituter struct{}

// Lookup implements Substituter.
func (EnvSubstituter) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// MapSubstituter serves variables from a fixed map.
type MapSubstituter map[string]string

// Lookup implements Substituter.
func (m MapSubstituter) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

var varPattern = regexp.MustCompile(`\$\$\{|\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Substitute replaces ${NAME} and ${NAME:-fallback} references in s. The
// fallback applies when NAME is unset or empty. An unset NAME without
// fallback is an *UnsetVariableError. $${ stands for a literal ${.
func Substitute(s string, sub Substituter) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range varPattern.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		last = m[1]

		if m[2] < 0 {
			b.WriteString("${")
			continue
		}
		name := s[m[2]:m[3]]
		value, ok := sub.Lookup(name)
		hasFallback := m[4] >= 0
		switch {
		case hasFallback && (!ok || value == ""):
			value = s[m[4]:m[5]]
		case !ok:
			return "", &UnsetVariableError{Name: name}
		}
		b.WriteString(value)
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// Escape quotes every ${ in s so that Substitute returns s unchanged.
func Escape(s string) string {
	return strings.ReplaceAll(s, "${", "$${")
}

func substituteValue(v any, sub Substituter) (any, error) {
	switch t := v.(type) {
	case string:
		return Substitute(t, sub)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			s, err := substituteValue(item, sub)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			s, err := substituteValue(item, sub)
			if err != nil {
				return nil, err
			}
			out[k] = s
		}
		return out, nil
	default:
		return v, nil
	}
}
