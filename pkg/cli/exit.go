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
	"io"
	"os"

	appkiterrors "github.com/tombee/appkit/pkg/errors"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates an error for unusable configuration.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Cause: cause}
}

// HandleExitError reports err on stderr and exits with its code. It
// returns when err is nil.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(report(os.Stderr, err))
}

func report(w io.Writer, err error) int {
	code := ExitFailure
	var exitErr *ExitError
	if appkiterrors.As(err, &exitErr) {
		code = exitErr.Code
	}

	fmt.Fprintln(w, "Error:", err.Error())
	var suggestion string
	var invalid *appkiterrors.ValidationError
	if uv := appkiterrors.FindUserVisible(err); uv != nil {
		suggestion = uv.Suggestion()
	} else if appkiterrors.As(err, &invalid) {
		suggestion = invalid.Suggestion
	}
	if suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
	return code
}
