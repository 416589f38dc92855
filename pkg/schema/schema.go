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
)

// Kind is the semantic type of a field.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindDuration
	KindPath
	KindMapping
	KindList
	KindNested
)

// String returns the name used in validation messages.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindDuration:
		return "duration"
	case KindPath:
		return "path"
	case KindMapping:
		return "mapping"
	case KindList:
		return "list"
	case KindNested:
		return "mapping"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is a single named entry of a Node. Fields are built with the
// constructors in this package and are immutable afterwards.
type Field struct {
	name       string
	rename     string
	kind       Kind
	elem       Kind
	child      *Node
	unwrap     bool
	prefix     string
	required   bool
	hasDefault bool
	def        any
	mustExist  bool
}

// FieldOption configures a Field at construction.
type FieldOption func(*Field)

// Default sets the value used when the field is absent. Mapping defaults of
// nested fields are resolved through the child schema.
func Default(v any) FieldOption {
	return func(f *Field) {
		f.def = v
		f.hasDefault = true
	}
}

// Required makes resolution fail when the field is absent and has no default.
func Required() FieldOption {
	return func(f *Field) { f.required = true }
}

// Rename sets the output key. The input key stays the field name.
func Rename(key string) FieldOption {
	return func(f *Field) { f.rename = key }
}

// MustExist makes a supplied path field fail validation when nothing
// exists at the path. The default is not checked, nor is a supplied value
// equal to it, so an optional file may stay absent.
func MustExist() FieldOption {
	return func(f *Field) { f.mustExist = true }
}

// Prefix sets the key prefix applied to the child keys of an unwrapped field.
func Prefix(p string) FieldOption {
	return func(f *Field) { f.prefix = p }
}

func newField(name string, kind Kind, opts []FieldOption) *Field {
	f := &Field{name: name, kind: kind}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// String declares a string field.
func String(name string, opts ...FieldOption) *Field { return newField(name, KindString, opts) }

// Bool declares a boolean field.
func Bool(name string, opts ...FieldOption) *Field { return newField(name, KindBool, opts) }

// Int declares an integer field.
func Int(name string, opts ...FieldOption) *Field { return newField(name, KindInt, opts) }

// Duration declares a duration field. Numbers are read as seconds, other
// strings use time.ParseDuration syntax.
func Duration(name string, opts ...FieldOption) *Field { return newField(name, KindDuration, opts) }

// Path declares a filesystem path field. A leading ~/ is expanded.
func Path(name string, opts ...FieldOption) *Field { return newField(name, KindPath, opts) }

// Mapping declares a free-form string-keyed mapping.
func Mapping(name string, opts ...FieldOption) *Field { return newField(name, KindMapping, opts) }

// List declares a list whose elements are coerced to elem.
func List(name string, elem Kind, opts ...FieldOption) *Field {
	if elem == KindList || elem == KindNested {
		panic(fmt.Sprintf("schema: list %q: use ListOf for structured elements", name))
	}
	f := newField(name, KindList, opts)
	f.elem = elem
	return f
}

// ListOf declares a list whose elements each resolve against child.
func ListOf(name string, child *Node, opts ...FieldOption) *Field {
	f := newField(name, KindList, opts)
	f.elem = KindNested
	f.child = child
	return f
}

// Nested declares a field whose value is a mapping resolved against child
// and kept under the field's own output key.
func Nested(name string, child *Node, opts ...FieldOption) *Field {
	f := newField(name, KindNested, opts)
	f.child = child
	return f
}

// Unwrap declares a nested field whose resolved keys are merged into the
// parent, each prefixed with the field's Prefix. The input may carry the
// child values either under the field name or flat, already prefixed.
func Unwrap(name string, child *Node, opts ...FieldOption) *Field {
	f := Nested(name, child, opts...)
	f.unwrap = true
	return f
}

// Name returns the input key.
func (f *Field) Name() string { return f.name }

// Key returns the output key.
func (f *Field) Key() string {
	if f.rename != "" {
		return f.rename
	}
	return f.name
}

// Kind returns the field kind.
func (f *Field) Kind() Kind { return f.kind }

// Node is an ordered, immutable set of fields.
type Node struct {
	name   string
	fields []*Field
}

// New builds a node. It panics when two fields share an input name or when
// two output keys collide after unwrapping, since schemas are static
// program data.
func New(name string, fields ...*Field) *Node {
	n := &Node{name: name, fields: fields}

	names := make(map[string]bool, len(fields))
	for _, f := range fields {
		if names[f.name] {
			panic(fmt.Sprintf("schema %s: duplicate field %q", name, f.name))
		}
		names[f.name] = true
	}

	keys := make(map[string]bool)
	for _, k := range n.Keys() {
		if keys[k] {
			panic(fmt.Sprintf("schema %s: output key %q declared twice", name, k))
		}
		keys[k] = true
	}
	return n
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Keys returns the output keys the node produces, in declaration order,
// with unwrapped children expanded and prefixed.
func (n *Node) Keys() []string {
	var keys []string
	for _, f := range n.fields {
		if f.unwrap {
			for _, k := range f.child.Keys() {
				keys = append(keys, f.prefix+k)
			}
			continue
		}
		keys = append(keys, f.Key())
	}
	return keys
}
