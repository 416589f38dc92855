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
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Supervisor is the worker's view of whatever supervises its process.
type Supervisor interface {
	// Notify signals that the worker is alive.
	Notify()

	// ParentAlive reports whether the supervising parent still runs.
	ParentAlive() bool
}

// ProcessSupervisor supervises through the operating system: heartbeats
// update the modification time of a temporary file a process manager can
// watch, and the parent is alive as long as the parent PID is unchanged.
type ProcessSupervisor struct {
	ppid      int
	heartbeat *os.File
	logger    *slog.Logger
}

// NewProcessSupervisor records the current parent PID. When heartbeatDir is
// not empty a heartbeat file is created in it.
func NewProcessSupervisor(heartbeatDir string, logger *slog.Logger) (*ProcessSupervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProcessSupervisor{ppid: os.Getppid(), logger: logger}

	if heartbeatDir != "" {
		f, err := os.CreateTemp(heartbeatDir, "appkit-worker-")
		if err != nil {
			return nil, fmt.Errorf("creating heartbeat file: %w", err)
		}
		s.heartbeat = f
	}
	return s, nil
}

// Notify implements Supervisor.
func (s *ProcessSupervisor) Notify() {
	if s.heartbeat == nil {
		return
	}
	now := time.Now()
	if err := os.Chtimes(s.heartbeat.Name(), now, now); err != nil {
		s.logger.Debug("heartbeat failed", "file", s.heartbeat.Name(), "error", err)
	}
}

// ParentAlive implements Supervisor.
func (s *ProcessSupervisor) ParentAlive() bool {
	if os.Getppid() != s.ppid {
		s.logger.Info("parent changed, shutting down", "ppid", s.ppid)
		return false
	}
	return true
}

// HeartbeatFile returns the heartbeat file path, or "".
func (s *ProcessSupervisor) HeartbeatFile() string {
	if s.heartbeat == nil {
		return ""
	}
	return s.heartbeat.Name()
}

// Close removes the heartbeat file.
func (s *ProcessSupervisor) Close() error {
	if s.heartbeat == nil {
		return nil
	}
	name := s.heartbeat.Name()
	_ = s.heartbeat.Close()
	return os.Remove(name)
}
