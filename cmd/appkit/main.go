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

// Command appkit is a reference service: a meter advanced in the
// background between requests, readable and settable over HTTP.
//
//	appkit --config cmd/appkit/config.yml run
//	curl localhost:5000/get
//	curl localhost:5000/set/42
package main

import (
	"github.com/tombee/appkit/pkg/app"
	"github.com/tombee/appkit/pkg/cli"
	"github.com/tombee/appkit/pkg/config"
	"github.com/tombee/appkit/pkg/schema"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	m := newMeter()

	loader := config.NewLoader()
	loader.Schema = config.Schema(
		schema.Int("meter", schema.Default(10)),
	)

	factory := app.NewFactory(app.FactoryOptions{
		Loader:     loader,
		Extensions: app.DefaultExtensions().With(app.Ext("iterable", app.NewIterable(m))),
		Blueprints: app.Collection{app.Func("meter", m.register)},
	})

	cmd := cli.NewRootCommand("appkit", factory, cli.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err := cmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
