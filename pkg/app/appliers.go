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
	"net/http"

	"github.com/gin-gonic/gin"

	appkiterrors "github.com/tombee/appkit/pkg/errors"
)

// Applier configures one aspect of an App.
type Applier interface {
	Apply(a *App) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(a *App) error

// Apply implements Applier.
func (f ApplierFunc) Apply(a *App) error {
	return f(a)
}

// Entry is a named applier within a Collection.
type Entry struct {
	Name    string
	Applier Applier
}

// Collection is an ordered list of named appliers.
type Collection []Entry

// With returns a copy of c in which each entry replaces the entry of the
// same name in place, or is appended when c has none.
func (c Collection) With(entries ...Entry) Collection {
	out := make(Collection, len(c), len(c)+len(entries))
	copy(out, c)
	for _, e := range entries {
		replaced := false
		for i := range out {
			if out[i].Name == e.Name {
				out[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out
}

// Without returns a copy of c with the named entries removed.
func (c Collection) Without(names ...string) Collection {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := make(Collection, 0, len(c))
	for _, e := range c {
		if !drop[e.Name] {
			out = append(out, e)
		}
	}
	return out
}

// Names lists the entry names in order.
func (c Collection) Names() []string {
	names := make([]string, len(c))
	for i, e := range c {
		names[i] = e.Name
	}
	return names
}

func (c Collection) apply(a *App, kind string) error {
	for _, e := range c {
		if e.Applier == nil {
			continue
		}
		a.Logger.Debug("applying "+kind, "name", e.Name)
		if err := e.Applier.Apply(a); err != nil {
			return appkiterrors.Wrapf(err, "applying %s %q", kind, e.Name)
		}
	}
	return nil
}

// Func names an applier function. It fits any collection.
func Func(name string, fn func(a *App) error) Entry {
	return Entry{Name: name, Applier: ApplierFunc(fn)}
}

// Middleware names an http.Handler wrapper.
func Middleware(name string, mw func(http.Handler) http.Handler) Entry {
	return Func(name, func(a *App) error {
		a.Use(mw)
		return nil
	})
}

// Extension is an object initialized against an App, typically adding
// routes and hooks and recording itself with SetExtension.
type Extension interface {
	Init(a *App) error
}

// Ext names an Extension.
func Ext(name string, ext Extension) Entry {
	return Func(name, ext.Init)
}

// ExtFunc names an extension constructor. Every app gets the extension
// returned by a fresh call to newExt.
func ExtFunc(name string, newExt func() Extension) Entry {
	return Func(name, func(a *App) error {
		return newExt().Init(a)
	})
}

// Before names a hook run before every request.
func Before(name string, h gin.HandlerFunc) Entry {
	return Func(name, func(a *App) error {
		a.Before(h)
		return nil
	})
}

// After names a hook run after every request.
func After(name string, h gin.HandlerFunc) Entry {
	return Func(name, func(a *App) error {
		a.After(h)
		return nil
	})
}

// Routes names a blueprint: a route group under prefix populated by
// register.
func Routes(name, prefix string, register func(r gin.IRouter)) Entry {
	return Func(name, func(a *App) error {
		register(a.Engine.Group(prefix))
		return nil
	})
}

// DefaultMiddlewares returns the standard middlewares: request ID
// propagation when http.request_id is configured.
func DefaultMiddlewares() Collection {
	return Collection{
		Func("request_id", applyRequestIDMiddleware),
	}
}

// DefaultExtensions returns the standard extensions. Each one is inert
// unless its configuration section is present.
func DefaultExtensions() Collection {
	return Collection{
		ExtFunc("health", func() Extension { return NewHealth() }),
		ExtFunc("swagger", func() Extension { return NewSwagger() }),
		ExtFunc("metrics", func() Extension { return NewMetrics() }),
	}
}

// DefaultHooks returns the standard request hooks.
func DefaultHooks() Collection {
	return Collection{
		Func("request_id", setRequestIDHook),
		Func("access_log", setAccessLogHook),
	}
}

// DefaultBlueprints returns no blueprints.
func DefaultBlueprints() Collection {
	return nil
}
