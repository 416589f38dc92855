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
	"strings"
)

// MissingRequiredFieldError reports a required field with no value and no
// default.
type MissingRequiredFieldError struct {
	// Field is the dotted path of the missing field
	Field string
}

// Error implements the error interface.
func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field", e.Field)
}

// SchemaValidationError reports a value that cannot be coerced to the
// field's kind.
type SchemaValidationError struct {
	// Field is the dotted path of the offending field
	Field string

	// Expected names the kind the field declares
	Expected string

	// Value is the raw value as found in the input
	Value any

	// Cause is the coercion or substitution failure, if any
	Cause error
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	msg := fmt.Sprintf("%s: expected %s, got %T %v", e.Field, e.Expected, e.Value, e.Value)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SchemaValidationError) Unwrap() error {
	return e.Cause
}

// UnsetVariableError reports a ${NAME} reference without fallback whose
// variable is not set.
type UnsetVariableError struct {
	Name string
}

// Error implements the error interface.
func (e *UnsetVariableError) Error() string {
	return fmt.Sprintf("variable %s is not set", e.Name)
}

// ResolutionError aggregates every field error found while resolving a
// schema. errors.As reaches each contained error.
type ResolutionError struct {
	// Schema is the name of the root node
	Schema string

	// Errors lists field errors in declaration order
	Errors []error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("schema %s: %d invalid field(s):\n  - %s", e.Schema, len(e.Errors), strings.Join(msgs, "\n  - "))
}

// Unwrap exposes the contained errors to errors.Is and errors.As.
func (e *ResolutionError) Unwrap() []error {
	return e.Errors
}

// Fields returns the paths of the offending fields.
func (e *ResolutionError) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		switch fe := err.(type) {
		case *MissingRequiredFieldError:
			fields = append(fields, fe.Field)
		case *SchemaValidationError:
			fields = append(fields, fe.Field)
		}
	}
	return fields
}
