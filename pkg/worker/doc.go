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

// Package worker runs an HTTP handler and a step-wise background task on a
// single goroutine.
//
// Each pass of the loop first tries to accept one pending connection
// without blocking and serves exactly one request on it. When nothing is
// pending the iterator advances by one step. A step may ask for a pause, in
// which case the worker waits for the pause timeout, or less when a
// connection arrives, before the next pass. Because request handling and
// iteration never overlap, handlers may read and modify iterator state
// without locking.
//
// The loop is built from small collaborators (Acceptor, Iterator,
// Supervisor, Waiter) so that it can be driven by mocks in tests and by a
// real listener and process in production.
package worker
