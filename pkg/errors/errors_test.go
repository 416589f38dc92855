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

package errors_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	appkiterrors "github.com/tombee/appkit/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *appkiterrors.ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     &appkiterrors.ValidationError{Field: "server.worker_class", Message: "unknown worker class \"gevent\""},
			wantMsg: "validation failed on server.worker_class: unknown worker class \"gevent\"",
		},
		{
			name:    "without field",
			err:     &appkiterrors.ValidationError{Message: "no bind address"},
			wantMsg: "validation failed: no bind address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *appkiterrors.ConfigError
		wantMsg string
	}{
		{
			name:    "reason only",
			err:     &appkiterrors.ConfigError{Reason: "schema validation failed"},
			wantMsg: "config error: schema validation failed",
		},
		{
			name:    "path and key",
			err:     &appkiterrors.ConfigError{Path: "config.yml", Key: "APP_NAME", Reason: "missing"},
			wantMsg: "config error in config.yml at APP_NAME: missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConfigError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	err := &appkiterrors.ConfigError{Path: "config.yml", Reason: "cannot read file", Cause: fs.ErrPermission}

	if !errors.Is(err, fs.ErrPermission) {
		t.Error("expected errors.Is to find the cause")
	}

	uv := appkiterrors.FindUserVisible(fmt.Errorf("loading: %w", err))
	if uv == nil {
		t.Fatal("expected a user visible error in the chain")
	}
	if uv.Suggestion() == "" {
		t.Error("expected a suggestion")
	}
}

func TestWrap(t *testing.T) {
	if appkiterrors.Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if appkiterrors.Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	base := errors.New("boom")
	wrapped := appkiterrors.Wrapf(base, "step %d", 3)
	if wrapped.Error() != "step 3: boom" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
	if !appkiterrors.Is(wrapped, base) {
		t.Error("expected wrapped error to match base")
	}
}

func TestFindUserVisible_None(t *testing.T) {
	if appkiterrors.FindUserVisible(errors.New("plain")) != nil {
		t.Error("plain errors are not user visible")
	}
}
