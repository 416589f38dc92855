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
	"os"
	"strings"
)

// Option configures a resolution.
type Option func(*resolver)

// WithSubstituter sets where ${NAME} references are looked up. The process
// environment is used by default.
func WithSubstituter(s Substituter) Option {
	return func(r *resolver) { r.sub = s }
}

// WithoutSubstitution resolves string values as they are. Resolved
// mappings are re-resolved this way: their values were substituted once
// already.
func WithoutSubstitution() Option {
	return func(r *resolver) { r.sub = nil }
}

type resolver struct {
	sub  Substituter
	errs []error
}

// Resolve validates raw against node and returns the resolved mapping. Raw
// is never modified. On failure no partial result is returned and the
// error is a *ResolutionError listing every offending field.
func Resolve(node *Node, raw map[string]any, opts ...Option) (map[string]any, error) {
	r := &resolver{sub: EnvSubstituter{}}
	for _, opt := range opts {
		opt(r)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	out := make(map[string]any)
	r.node(node, raw, "", "", out)
	if len(r.errs) > 0 {
		return nil, &ResolutionError{Schema: node.name, Errors: r.errs}
	}
	return out, nil
}

// node resolves every field of n into out. keyPrefix is the prefix already
// stripped from raw's keys when n is read from its parent's flat form; it
// only affects error paths.
func (r *resolver) node(n *Node, raw map[string]any, path, keyPrefix string, out map[string]any) {
	for _, f := range n.fields {
		fieldPath := joinPath(path, keyPrefix+f.name)
		if f.unwrap {
			r.unwrapped(f, raw, path, keyPrefix, out)
			continue
		}

		value, ok := lookup(raw, f)
		if !ok {
			if !f.hasDefault {
				if f.required {
					r.errs = append(r.errs, &MissingRequiredFieldError{Field: fieldPath})
				}
				continue
			}
			value = copyValue(f.def)
		}

		v, valid := r.value(f, value, fieldPath)
		if !valid {
			continue
		}
		if ok && f.mustExist {
			if err := checkExists(f, v); err != nil {
				r.errs = append(r.errs, &SchemaValidationError{Field: fieldPath, Expected: f.kind.String(), Value: value, Cause: err})
				continue
			}
		}
		out[f.Key()] = v
	}
}

func checkExists(f *Field, v any) error {
	p, isPath := v.(string)
	if !isPath || f.kind != KindPath {
		return nil
	}
	if f.hasDefault {
		if def, err := toPath(f.def); err == nil && def == p {
			return nil
		}
	}
	_, err := os.Stat(p)
	return err
}

func (r *resolver) unwrapped(f *Field, raw map[string]any, path, keyPrefix string, out map[string]any) {
	child := make(map[string]any)

	if v, ok := lookup(raw, f); ok {
		fieldPath := joinPath(path, keyPrefix+f.name)
		sub, err := toMapping(v)
		if err != nil {
			r.errs = append(r.errs, &SchemaValidationError{Field: fieldPath, Expected: KindNested.String(), Value: v, Cause: err})
			return
		}
		r.node(f.child, sub, fieldPath, "", child)
	} else {
		sub := stripPrefix(raw, f.prefix)
		if len(sub) == 0 && f.prefix != "" {
			switch {
			case f.hasDefault:
				m, err := toMapping(f.def)
				if err != nil {
					panic(fmt.Sprintf("schema: default of unwrapped field %q is not a mapping", f.name))
				}
				sub = m
			case f.required:
				r.errs = append(r.errs, &MissingRequiredFieldError{Field: joinPath(path, keyPrefix+f.name)})
				return
			default:
				return
			}
		}
		r.node(f.child, sub, path, keyPrefix+f.prefix, child)
	}

	for k, v := range child {
		out[f.prefix+k] = v
	}
}

func (r *resolver) value(f *Field, v any, path string) (any, bool) {
	switch {
	case f.kind == KindNested:
		m, err := toMapping(v)
		if err != nil {
			r.errs = append(r.errs, &SchemaValidationError{Field: path, Expected: f.kind.String(), Value: v, Cause: err})
			return nil, false
		}
		out := make(map[string]any)
		r.node(f.child, m, path, "", out)
		return out, true

	case f.kind == KindList:
		items, err := toList(v)
		if err != nil {
			r.errs = append(r.errs, &SchemaValidationError{Field: path, Expected: f.kind.String(), Value: v, Cause: err})
			return nil, false
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if f.child != nil {
				m, err := toMapping(item)
				if err != nil {
					r.errs = append(r.errs, &SchemaValidationError{Field: itemPath, Expected: KindNested.String(), Value: item, Cause: err})
					continue
				}
				resolved := make(map[string]any)
				r.node(f.child, m, itemPath, "", resolved)
				out = append(out, resolved)
				continue
			}
			if c, ok := r.scalar(f.elem, item, itemPath); ok {
				out = append(out, c)
			}
		}
		return out, true

	default:
		return r.scalar(f.kind, v, path)
	}
}

func (r *resolver) scalar(kind Kind, v any, path string) (any, bool) {
	substituted := v
	var err error
	if r.sub != nil {
		substituted, err = substituteValue(v, r.sub)
	}
	if err == nil {
		var c any
		if c, err = coerce(kind, substituted); err == nil {
			return c, true
		}
	}
	r.errs = append(r.errs, &SchemaValidationError{Field: path, Expected: kind.String(), Value: v, Cause: err})
	return nil, false
}

// lookup finds a field by input name, then by output key so that resolved
// mappings can be resolved again. Null values count as absent.
func lookup(raw map[string]any, f *Field) (any, bool) {
	if v, ok := raw[f.name]; ok && v != nil {
		return v, true
	}
	if key := f.Key(); key != f.name {
		if v, ok := raw[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stripPrefix(raw map[string]any, prefix string) map[string]any {
	if prefix == "" {
		return raw
	}
	sub := make(map[string]any)
	for k, v := range raw {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			sub[rest] = v
		}
	}
	return sub
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
