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

package errors

import (
	"fmt"
	"strings"
)

// ValidationError reports a value that does not satisfy a constraint.
type ValidationError struct {
	// Field is the dotted path of the offending value
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ConfigError represents configuration problems: unreadable or malformed
// files, missing settings and values rejected by the schema.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g. "server.bind")
	Key string

	// Path is the configuration file involved, if any
	Path string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config error")
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " at %s", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *ConfigError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ConfigError) UserMessage() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Error(), e.Cause)
	}
	return e.Error()
}

// Suggestion implements UserVisibleError.
func (e *ConfigError) Suggestion() string {
	if e.Path != "" {
		return fmt.Sprintf("Check %s or point CONFIG_FILE at a valid configuration file", e.Path)
	}
	return "Set CONFIG_FILE or pass --config with a valid configuration file"
}
