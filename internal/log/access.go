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
	"context"
	"log/slog"
	"time"
)

// HTTPRequest describes a served request for access logging.
type HTTPRequest struct {
	// Method is the HTTP method.
	Method string

	// Path is the request path, without query.
	Path string

	// Proto is the protocol version, e.g. "HTTP/1.1".
	Proto string

	// RemoteAddr is the remote address of the client.
	RemoteAddr string

	// UserAgent is the User-Agent header, if any.
	UserAgent string
}

// HTTPResponse describes the outcome of a served request.
type HTTPResponse struct {
	// Status is the response status code.
	Status int

	// Bytes is the size of the response body.
	Bytes int

	// Duration is the time spent serving the request.
	Duration time.Duration
}

// LogHTTPRequest writes one access log record. Server errors log at error
// level, client errors at warn, everything else at info. The request ID is
// taken from ctx by the logger's handler.
func LogHTTPRequest(ctx context.Context, logger *slog.Logger, req *HTTPRequest, resp *HTTPResponse) {
	attrs := []slog.Attr{
		slog.String(EventKey, "http_request"),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.Status),
		slog.Int("bytes", resp.Bytes),
		slog.Int64(DurationKey, resp.Duration.Milliseconds()),
		slog.String("remote", req.RemoteAddr),
	}
	if req.Proto != "" {
		attrs = append(attrs, slog.String("proto", req.Proto))
	}
	if req.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", req.UserAgent))
	}

	level := slog.LevelInfo
	switch {
	case resp.Status >= 500:
		level = slog.LevelError
	case resp.Status >= 400:
		level = slog.LevelWarn
	}

	logger.LogAttrs(ctx, level, "request served", attrs...)
}
