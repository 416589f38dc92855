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
	"github.com/google/uuid"

	"github.com/tombee/appkit/internal/log"
)

// requestIDKey holds the request ID in the gin context.
const requestIDKey = "appkit.request_id"

// RequestIDMiddleware propagates a correlation ID. An incoming header value
// is kept, otherwise a UUID is generated and written back onto the request.
// The ID is echoed in the response and carried on the request context so
// that log records include it.
func RequestIDMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(header, id)
			}
			w.Header().Set(header, id)
			next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), id)))
		})
	}
}

// RequestID returns the request ID recorded by the request_id hook, or "-".
func RequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return log.NoRequestID
}

func requestIDHeader(a *App) (string, bool) {
	if !a.Config.Has("http.request_id") {
		return "", false
	}
	return a.Config.String("http.request_id.REQUEST_ID_HEADER"), true
}

func applyRequestIDMiddleware(a *App) error {
	header, ok := requestIDHeader(a)
	if !ok {
		return nil
	}
	a.Use(RequestIDMiddleware(header))
	return nil
}

func setRequestIDHook(a *App) error {
	header, ok := requestIDHeader(a)
	if !ok {
		return nil
	}
	a.Before(func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = log.NoRequestID
		}
		c.Set(requestIDKey, id)
		if log.RequestIDFromContext(c.Request.Context()) != id {
			c.Request = c.Request.WithContext(log.ContextWithRequestID(c.Request.Context(), id))
		}
	})
	return nil
}
