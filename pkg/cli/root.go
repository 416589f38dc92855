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

// Package cli provides the command line of an appkit service: run, routes,
// config and version, all sharing a persistent --config flag.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/appkit/pkg/app"
)

// BuildInfo identifies the binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

type rootOptions struct {
	name       string
	configPath string
	factory    *app.Factory
	build      BuildInfo
}

func (o *rootOptions) createApp() (*app.App, error) {
	a, err := o.factory.Create(o.configPath)
	if err != nil {
		return nil, NewConfigError("failed to create application", err)
	}
	return a, nil
}

// NewRootCommand creates the root command for the service called name.
// Every subcommand builds its application with factory.
func NewRootCommand(name string, factory *app.Factory, build BuildInfo) *cobra.Command {
	opts := &rootOptions{name: name, factory: factory, build: build}

	cmd := &cobra.Command{
		Use:           name,
		Short:         name + " service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Application .yml configuration file (default: $CONFIG_FILE or config.yml)")

	cmd.AddCommand(
		newRunCommand(opts),
		newRoutesCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(opts),
	)
	return cmd
}
