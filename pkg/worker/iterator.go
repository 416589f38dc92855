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

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrIterationExhausted is returned by Worker.Run when the iterator has no
// more work. Callers usually treat it as a clean shutdown.
var ErrIterationExhausted = errors.New("worker: iteration exhausted")

type resultKind int

const (
	resultAdvanced resultKind = iota
	resultPause
	resultExhausted
)

// Result is the outcome of one iteration step.
type Result struct {
	kind  resultKind
	pause time.Duration
}

var (
	// Advanced reports that the step did work; the loop continues at once.
	Advanced = Result{kind: resultAdvanced}

	// Exhausted reports that the iterator is done; the loop terminates.
	Exhausted = Result{kind: resultExhausted}
)

// Pause reports that no work is available. The worker waits d before the
// next pass; a zero d falls back to the worker's default timeout.
func Pause(d time.Duration) Result {
	return Result{kind: resultPause, pause: d}
}

// IsPause reports whether r asks for a pause, and for how long.
func (r Result) IsPause() (time.Duration, bool) {
	return r.pause, r.kind == resultPause
}

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r.kind {
	case resultAdvanced:
		return "advanced"
	case resultExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("pause(%s)", r.pause)
	}
}

// Iterator is a unit of background work advanced one step at a time. Next
// must not block for long: while it runs no request is served.
type Iterator interface {
	Next(ctx context.Context) (Result, error)
}

// IteratorFunc adapts a function to Iterator.
type IteratorFunc func(ctx context.Context) (Result, error)

// Next implements Iterator.
func (f IteratorFunc) Next(ctx context.Context) (Result, error) {
	return f(ctx)
}

// IterationError wraps an error returned by an iterator step. It is fatal
// to the worker.
type IterationError struct {
	Err error
}

// Error implements the error interface.
func (e *IterationError) Error() string {
	return fmt.Sprintf("worker: iteration failed: %v", e.Err)
}

// Unwrap returns the iterator's error.
func (e *IterationError) Unwrap() error {
	return e.Err
}
