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

package log

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile overlays the YAML logging file at path on base. A missing file
// leaves base unchanged. Recognized keys: level, format, add_source and
// output (stderr, stdout, "-" or a file path).
func FromFile(path string, base *Config) (*Config, error) {
	cfg := *base

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading logging config %s: %w", path, err)
	}

	var file struct {
		Level     *string `yaml:"level"`
		Format    *string `yaml:"format"`
		AddSource *bool   `yaml:"add_source"`
		Output    string  `yaml:"output"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing logging config %s: %w", path, err)
	}

	if file.Level != nil {
		cfg.Level = strings.ToLower(*file.Level)
	}
	if file.AddSource != nil {
		cfg.AddSource = *file.AddSource
	}
	if file.Output != "" {
		out, err := OpenOutput(file.Output)
		if err != nil {
			return nil, err
		}
		cfg.Output = out
		cfg.Format = formatFor(out)
	}
	if file.Format != nil {
		cfg.Format = Format(strings.ToLower(*file.Format))
	}
	return &cfg, nil
}

// OpenOutput returns the writer named by target: "-" or "stderr" for
// standard error, "stdout" for standard output, anything else is a file
// opened for appending.
func OpenOutput(target string) (io.WriteCloser, error) {
	switch target {
	case "", "-", "stderr":
		return nopCloser{os.Stderr}, nil
	case "stdout":
		return nopCloser{os.Stdout}, nil
	}

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log output %s: %w", target, err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
