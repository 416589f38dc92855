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

package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appkiterrors "github.com/tombee/appkit/pkg/errors"
)

func newRoutesCommand(root *rootOptions) *cobra.Command {
	var sortBy string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the routes of the application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.createApp()
			if err != nil {
				return err
			}

			routes := a.Routes()
			switch sortBy {
			case "path":
				sort.SliceStable(routes, func(i, j int) bool {
					if routes[i].Path != routes[j].Path {
						return routes[i].Path < routes[j].Path
					}
					return routes[i].Method < routes[j].Method
				})
			case "method":
				sort.SliceStable(routes, func(i, j int) bool {
					if routes[i].Method != routes[j].Method {
						return routes[i].Method < routes[j].Method
					}
					return routes[i].Path < routes[j].Path
				})
			case "handler":
				sort.SliceStable(routes, func(i, j int) bool {
					return routes[i].Handler < routes[j].Handler
				})
			case "none":
			default:
				return fmt.Errorf("unknown sort key %q (want path, method, handler or none)", sortBy)
			}

			if len(routes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No routes were registered.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tHANDLER")
			for _, r := range routes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Method, r.Path, r.Handler)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&sortBy, "sort", "s", "path", "Sort routes by path, method, handler or none")
	return cmd
}

func newConfigCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Long: `Print the configuration after defaults, environment substitution and
validation, in a form that can be loaded again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			values, err := root.factory.Loader().Load(root.configPath)
			if err != nil {
				return NewConfigError("failed to load configuration", err)
			}
			data, err := values.YAML()
			if err != nil {
				return appkiterrors.Wrap(err, "failed to render configuration")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
