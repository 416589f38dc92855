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
	"context"

	"github.com/tombee/appkit/pkg/config"
	"github.com/tombee/appkit/pkg/worker"
)

// Configurable is implemented by iterators that read settings from the
// application configuration.
type Configurable interface {
	Configure(cfg config.Values) error
}

// Iterable attaches a background iterator to an App. Iterating workers
// advance it between requests.
type Iterable struct {
	iterator worker.Iterator
}

// NewIterable wraps it.
func NewIterable(it worker.Iterator) *Iterable {
	return &Iterable{iterator: it}
}

// Init implements Extension. Configurable iterators receive the app
// configuration first.
func (i *Iterable) Init(a *App) error {
	if c, ok := i.iterator.(Configurable); ok {
		if err := c.Configure(a.Config); err != nil {
			return err
		}
	}
	a.iterable = i
	a.SetExtension("iterable", i)
	return nil
}

// Unwrap returns the wrapped iterator.
func (i *Iterable) Unwrap() worker.Iterator {
	return i.iterator
}

// Next implements worker.Iterator.
func (i *Iterable) Next(ctx context.Context) (worker.Result, error) {
	return i.iterator.Next(ctx)
}
