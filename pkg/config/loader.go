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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	appkiterrors "github.com/tombee/appkit/pkg/errors"
	"github.com/tombee/appkit/pkg/schema"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is the configuration file read when no path is given.
	DefaultPath = "config.yml"

	// EnvConfigFile names the environment variable holding the
	// configuration file path.
	EnvConfigFile = "CONFIG_FILE"
)

// Loader reads a YAML file and resolves it against a schema.
type Loader struct {
	// Schema is the root schema. Default: Schema()
	Schema *schema.Node

	// DefaultPath is used when neither an explicit path nor EnvVar is set.
	// A missing default file is not an error.
	DefaultPath string

	// EnvVar names the environment variable consulted for the file path.
	EnvVar string

	// Substituter resolves ${NAME} references. Default: process environment
	Substituter schema.Substituter
}

// NewLoader returns a Loader for the default schema.
func NewLoader() *Loader {
	return &Loader{
		Schema:      Schema(),
		DefaultPath: DefaultPath,
		EnvVar:      EnvConfigFile,
		Substituter: schema.EnvSubstituter{},
	}
}

// Path returns the file Load would read for the given explicit path, and
// whether that file must exist.
func (l *Loader) Path(explicit string) (string, bool) {
	if explicit != "" {
		return expandHome(explicit), true
	}
	if l.EnvVar != "" {
		if p := os.Getenv(l.EnvVar); p != "" {
			return expandHome(p), true
		}
	}
	return l.DefaultPath, false
}

// Load reads the configuration file (see Path) and resolves it.
func (l *Loader) Load(path string) (Values, error) {
	return l.LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with programmatic overrides merged on top of
// the resolved values. Overrides use resolved key names (APP_NAME,
// SESSION_COOKIE_NAME, server.bind) and are validated like the file.
func (l *Loader) LoadWithOverrides(path string, overrides map[string]any) (Values, error) {
	file, mustExist := l.Path(path)

	raw, err := readFile(file, mustExist)
	if err != nil {
		return nil, &appkiterrors.ConfigError{
			Path:   file,
			Reason: "failed to read configuration",
			Cause:  err,
		}
	}

	values, err := l.resolve(raw, true)
	if len(overrides) > 0 {
		// Merge onto the resolved form when possible so that flat override
		// keys are not shadowed by nested sections of the file. The resolved
		// form is already substituted.
		base, substitute := values, false
		if err != nil {
			base, substitute = Values(raw), true
		}
		values, err = l.resolve(base.Merge(overrides), substitute)
	}
	if err != nil {
		return nil, validationError(file, err)
	}
	return values, nil
}

// Resolve validates an in-memory mapping against the loader's schema.
func (l *Loader) Resolve(raw map[string]any) (Values, error) {
	values, err := l.resolve(raw, true)
	if err != nil {
		return nil, validationError("", err)
	}
	return values, nil
}

func (l *Loader) resolve(raw map[string]any, substitute bool) (Values, error) {
	node := l.Schema
	if node == nil {
		node = Schema()
	}
	var opts []schema.Option
	switch {
	case !substitute:
		opts = append(opts, schema.WithoutSubstitution())
	case l.Substituter != nil:
		opts = append(opts, schema.WithSubstituter(l.Substituter))
	}
	out, err := schema.Resolve(node, raw, opts...)
	if err != nil {
		return nil, err
	}
	return Values(out), nil
}

func readFile(path string, mustExist bool) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return raw, nil
}

func validationError(path string, err error) error {
	cfgErr := &appkiterrors.ConfigError{
		Path:   path,
		Reason: "schema validation failed",
		Cause:  err,
	}
	var resErr *schema.ResolutionError
	if errors.As(err, &resErr) {
		if fields := resErr.Fields(); len(fields) == 1 {
			cfgErr.Key = fields[0]
		}
	}
	return cfgErr
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
