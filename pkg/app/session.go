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
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookie builds the session cookie described by the SESSION_COOKIE_*
// settings, carrying value and expiring after PERMANENT_SESSION_LIFETIME.
func (a *App) SessionCookie(value string) *http.Cookie {
	lifetime := a.Config.Duration("PERMANENT_SESSION_LIFETIME")
	path := a.Config.String("SESSION_COOKIE_PATH")
	if path == "" {
		path = "/"
	}

	cookie := &http.Cookie{
		Name:     a.Config.String("SESSION_COOKIE_NAME"),
		Value:    value,
		Domain:   a.Config.String("SESSION_COOKIE_DOMAIN"),
		Path:     path,
		HttpOnly: a.Config.Bool("SESSION_COOKIE_HTTPONLY"),
		Secure:   a.Config.Bool("SESSION_COOKIE_SECURE"),
		SameSite: parseSameSite(a.Config.String("SESSION_COOKIE_SAMESITE")),
	}
	if lifetime > 0 {
		cookie.MaxAge = int(lifetime / time.Second)
		cookie.Expires = time.Now().Add(lifetime).UTC()
	}
	return cookie
}

// SetSession writes the session cookie on the response.
func (a *App) SetSession(c *gin.Context, value string) {
	http.SetCookie(c.Writer, a.SessionCookie(value))
}

// Session returns the session cookie value of the request. With
// SESSION_REFRESH_EACH_REQUEST the cookie is re-issued so that its
// expiry slides.
func (a *App) Session(c *gin.Context) (string, bool) {
	cookie, err := c.Request.Cookie(a.Config.String("SESSION_COOKIE_NAME"))
	if err != nil {
		return "", false
	}
	if a.Config.Bool("SESSION_REFRESH_EACH_REQUEST") {
		a.SetSession(c, cookie.Value)
	}
	return cookie.Value, true
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
