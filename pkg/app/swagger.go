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
	"html/template"
	"maps"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tombee/appkit/pkg/config"
)

// DefaultOpenAPIVersion is the openapi field of generated documents.
const DefaultOpenAPIVersion = "3.0.3"

// Swagger publishes OpenAPI documents and, optionally, a Swagger UI page.
//
// Documents start from Template. Missing openapi, info and tags fields are
// filled from the SWAGGER configuration, and operations are generated for
// every registered route that the template does not already describe.
type Swagger struct {
	// Template is the base document. It is not modified.
	Template map[string]any

	// Tags is used when Template has no tags.
	Tags []any

	cfg      config.Values
	appName  string
	internal map[string]bool
	engine   *gin.Engine
}

// NewSwagger returns a Swagger with an empty template.
func NewSwagger() *Swagger {
	return &Swagger{}
}

// Init implements Extension. It does nothing unless the SWAGGER section is
// configured. The app gets its own copy of s; see SwaggerOf.
func (s *Swagger) Init(a *App) error {
	cfg := a.Config.Section("SWAGGER")
	if cfg == nil {
		return nil
	}
	s = &Swagger{
		Template: s.Template,
		Tags:     s.Tags,
		cfg:      cfg,
		appName:  a.Name,
		engine:   a.Engine,
		internal: make(map[string]bool),
	}

	for _, spec := range s.specs() {
		route := spec["route"].(string)
		s.internal[route] = true
		a.Engine.GET(route, s.serveSpec)
	}
	if cfg.Bool("swagger_ui") {
		route := cfg.String("specs_route")
		s.internal[route] = true
		a.Engine.GET(route, s.serveUI)
	}

	a.SetExtension("swagger", s)
	return nil
}

func (s *Swagger) specs() []map[string]any {
	raw, _ := s.cfg.Get("specs")
	list, _ := raw.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Document builds the OpenAPI document from the template and the routes
// registered so far.
func (s *Swagger) Document() map[string]any {
	doc := maps.Clone(s.Template)
	if doc == nil {
		doc = map[string]any{}
	}

	if _, ok := doc["openapi"]; !ok {
		doc["openapi"] = DefaultOpenAPIVersion
	}
	if _, ok := doc["info"]; !ok {
		title := s.title()
		doc["info"] = map[string]any{
			"title":       title,
			"version":     s.cfg.String("version"),
			"description": title + " API",
		}
	}
	if _, ok := doc["tags"]; !ok {
		tags := s.Tags
		if tags == nil {
			tags = []any{}
		}
		doc["tags"] = tags
	}

	paths := map[string]any{}
	if given, ok := doc["paths"].(map[string]any); ok {
		maps.Copy(paths, given)
	}
	for _, r := range s.engine.Routes() {
		if s.internal[r.Path] {
			continue
		}
		p := openAPIPath(r.Path)
		item, _ := paths[p].(map[string]any)
		if item == nil {
			item = map[string]any{}
		} else {
			item = maps.Clone(item)
		}
		method := strings.ToLower(r.Method)
		if _, ok := item[method]; ok {
			continue
		}
		op := map[string]any{
			"operationId": strings.ToLower(r.Method) + strings.ReplaceAll(r.Path, "/", "_"),
			"responses": map[string]any{
				"200": map[string]any{"description": "OK"},
			},
		}
		if params := pathParams(r.Path); len(params) > 0 {
			op["parameters"] = params
		}
		item[method] = op
		paths[p] = item
	}
	doc["paths"] = paths
	return doc
}

func (s *Swagger) title() string {
	if t := s.cfg.String("title"); t != "" {
		return t
	}
	if s.appName != "" {
		return s.appName
	}
	return "Base App"
}

func (s *Swagger) serveSpec(c *gin.Context) {
	c.JSON(http.StatusOK, s.Document())
}

var swaggerUI = template.Must(template.New("swagger-ui").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="{{.Static}}/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="{{.Static}}/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      urls: [{{range .Specs}}{url: "{{.URL}}", name: "{{.Name}}"},{{end}}],
      dom_id: "#swagger-ui",
      deepLinking: true
    });
  </script>
</body>
</html>
`))

type uiSpec struct {
	URL  string
	Name string
}

func (s *Swagger) serveUI(c *gin.Context) {
	var specs []uiSpec
	for _, spec := range s.specs() {
		specs = append(specs, uiSpec{URL: spec["route"].(string), Name: spec["endpoint"].(string)})
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	err := swaggerUI.Execute(c.Writer, map[string]any{
		"Title":  s.title(),
		"Static": strings.TrimRight(s.cfg.String("static_url_path"), "/"),
		"Specs":  specs,
	})
	if err != nil {
		_ = c.Error(err)
	}
}

var ginParam = regexp.MustCompile(`[:*]([A-Za-z0-9_]+)`)

func openAPIPath(path string) string {
	return ginParam.ReplaceAllString(path, "{$1}")
}

func pathParams(path string) []any {
	matches := ginParam.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	sort.Strings(names)
	params := make([]any, 0, len(names))
	for _, n := range names {
		params = append(params, map[string]any{
			"name":     n,
			"in":       "path",
			"required": true,
			"schema":   map[string]any{"type": "string"},
		})
	}
	return params
}

// SwaggerOf returns the app's swagger extension, or nil.
func SwaggerOf(a *App) *Swagger {
	ext, _ := a.Extension("swagger")
	sw, _ := ext.(*Swagger)
	return sw
}
