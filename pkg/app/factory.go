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

package app

import (
	"log/slog"

	"github.com/tombee/appkit/internal/log"
	"github.com/tombee/appkit/pkg/config"
	appkiterrors "github.com/tombee/appkit/pkg/errors"
)

// FactoryOptions configures a Factory. Nil collections mean the defaults;
// an empty, non-nil collection disables a stage.
type FactoryOptions struct {
	// Loader reads and validates configuration. Default: config.NewLoader()
	Loader *config.Loader

	// Overrides are merged on top of the loaded configuration.
	Overrides map[string]any

	// Logger replaces the logger built from configuration.
	Logger *slog.Logger

	Middlewares Collection
	Extensions  Collection
	Hooks       Collection
	Blueprints  Collection
}

// Factory builds Apps.
type Factory struct {
	opts FactoryOptions
}

// NewFactory returns a Factory for opts.
func NewFactory(opts FactoryOptions) *Factory {
	if opts.Loader == nil {
		opts.Loader = config.NewLoader()
	}
	if opts.Middlewares == nil {
		opts.Middlewares = DefaultMiddlewares()
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions()
	}
	if opts.Hooks == nil {
		opts.Hooks = DefaultHooks()
	}
	if opts.Blueprints == nil {
		opts.Blueprints = DefaultBlueprints()
	}
	return &Factory{opts: opts}
}

// Loader returns the factory's configuration loader.
func (f *Factory) Loader() *config.Loader {
	return f.opts.Loader
}

// Create loads the configuration at configPath (see config.Loader.Path),
// builds the logger and applies middlewares, extensions, hooks and
// blueprints, in that order.
func (f *Factory) Create(configPath string) (*App, error) {
	values, err := f.opts.Loader.LoadWithOverrides(configPath, f.opts.Overrides)
	if err != nil {
		return nil, err
	}

	logger := f.opts.Logger
	if logger == nil {
		logger, err = Logger(values)
		if err != nil {
			return nil, err
		}
	}

	a := New(values, logger)
	a.Logger.Info("configuring application", "app", a.Name, "env", Env())

	stages := []struct {
		kind string
		c    Collection
	}{
		{"middleware", f.opts.Middlewares},
		{"extension", f.opts.Extensions},
		{"hook", f.opts.Hooks},
		{"blueprint", f.opts.Blueprints},
	}
	for _, s := range stages {
		if err := s.c.apply(a, s.kind); err != nil {
			return nil, err
		}
	}
	for _, r := range a.Routes() {
		a.Logger.Debug("route registered", "method", r.Method, "path", r.Path, "handler", r.Handler)
	}
	return a, nil
}

// Logger builds the application logger: environment settings overlaid
// with the file named by logging.LOGGING_CONFIG_PATH, when configured.
func Logger(values config.Values) (*slog.Logger, error) {
	cfg := log.FromEnv()
	if path := values.String("logging.LOGGING_CONFIG_PATH"); path != "" {
		fileCfg, err := log.FromFile(path, cfg)
		if err != nil {
			return nil, &appkiterrors.ConfigError{
				Key:    "logging.LOGGING_CONFIG_PATH",
				Reason: "invalid logging configuration",
				Cause:  err,
			}
		}
		cfg = fileCfg
	}
	return log.New(cfg), nil
}
