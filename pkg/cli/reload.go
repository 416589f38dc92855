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
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	appkiterrors "github.com/tombee/appkit/pkg/errors"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 200 * time.Millisecond

// Reloader reports changes to a set of files and glob patterns.
//
// Directories are watched rather than files so that editors replacing a
// file on save are noticed. Patterns use doublestar syntax; directories
// created after the Reloader starts are not watched.
type Reloader struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	patterns []string
	debounce time.Duration
	logger   *slog.Logger

	changes chan string

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// NewReloader watches paths, each a file or a glob pattern.
func NewReloader(paths []string, debounce time.Duration, logger *slog.Logger) (*Reloader, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, appkiterrors.Wrap(err, "failed to create file watcher")
	}

	r := &Reloader{
		watcher:  watcher,
		files:    make(map[string]bool),
		debounce: debounce,
		logger:   logger,
		changes:  make(chan string, 1),
		done:     make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, appkiterrors.Wrapf(err, "failed to resolve path %s", p)
		}

		if !isPattern(abs) {
			r.files[abs] = true
			dirs[filepath.Dir(abs)] = true
			continue
		}

		pattern := filepath.ToSlash(abs)
		if !doublestar.ValidatePattern(pattern) {
			watcher.Close()
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
		r.patterns = append(r.patterns, pattern)

		base, _ := doublestar.SplitPattern(pattern)
		dirs[filepath.FromSlash(base)] = true
		matches, err := doublestar.FilepathGlob(abs)
		if err != nil {
			watcher.Close()
			return nil, appkiterrors.Wrapf(err, "invalid pattern %q", p)
		}
		for _, m := range matches {
			dirs[filepath.Dir(m)] = true
		}
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("cannot watch directory", "dir", dir, "error", err)
			continue
		}
		logger.Debug("watching for changes", "dir", dir)
	}

	r.wg.Add(1)
	go r.processEvents()
	return r, nil
}

// Changes delivers the path of a changed file after the debounce delay.
func (r *Reloader) Changes() <-chan string {
	return r.changes
}

// Close stops watching.
func (r *Reloader) Close() error {
	close(r.done)
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
	err := r.watcher.Close()
	r.wg.Wait()
	return err
}

func (r *Reloader) processEvents() {
	defer r.wg.Done()

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if r.matches(event.Name) {
				r.schedule(event.Name)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("file watcher error", "error", err)

		case <-r.done:
			return
		}
	}
}

func (r *Reloader) matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if r.files[abs] {
		return true
	}
	for _, pattern := range r.patterns {
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(abs)); ok {
			return true
		}
	}
	return false
}

func (r *Reloader) schedule(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		r.logger.Info("file changed", "file", path)
		select {
		case r.changes <- path:
		default:
		}
	})
}

func isPattern(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}
