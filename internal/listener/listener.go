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

// Package listener turns bind strings into listening sockets.
package listener

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPort is used for binds that name a host without a port.
const DefaultPort = "8000"

// Address is a parsed bind string.
type Address struct {
	// Network is "tcp" or "unix".
	Network string

	// Addr is host:port for TCP, the socket path for Unix.
	Addr string
}

// String returns the address in bind syntax.
func (a Address) String() string {
	if a.Network == "unix" {
		return "unix:" + a.Addr
	}
	return a.Addr
}

// IsRemote reports whether a TCP address accepts connections from other
// hosts.
func (a Address) IsRemote() bool {
	if a.Network != "tcp" {
		return false
	}
	host, _, err := net.SplitHostPort(a.Addr)
	if err != nil {
		return true
	}

	switch host {
	case "", "0.0.0.0", "::":
		return true
	case "localhost", "127.0.0.1", "::1":
		return false
	}
	return true
}

// ParseBind parses one bind string. Supported forms:
//   - unix:/path/to/socket and unix:///path/to/socket
//   - tcp://host:port
//   - host:port, :port, [::1]:port
//   - host (port defaults to DefaultPort)
func ParseBind(bind string) (Address, error) {
	bind = strings.TrimSpace(bind)
	switch {
	case bind == "":
		return Address{}, errors.New("empty bind address")

	case strings.HasPrefix(bind, "unix:"):
		path := strings.TrimPrefix(strings.TrimPrefix(bind, "unix:"), "//")
		if path == "" {
			return Address{}, fmt.Errorf("invalid bind %q: missing socket path", bind)
		}
		return Address{Network: "unix", Addr: path}, nil

	case strings.HasPrefix(bind, "fd://"):
		return Address{}, fmt.Errorf("invalid bind %q: file descriptor binds are not supported", bind)

	case strings.Contains(bind, "://") && !strings.HasPrefix(bind, "tcp://"):
		return Address{}, fmt.Errorf("invalid bind %q: must be unix:PATH, tcp://HOST:PORT or HOST:PORT", bind)
	}

	addr := strings.TrimPrefix(bind, "tcp://")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		// A bare host or an unbracketed IPv6 address.
		addr = net.JoinHostPort(strings.Trim(addr, "[]"), DefaultPort)
	}
	return Address{Network: "tcp", Addr: addr}, nil
}

// Listen opens a listener for addr. Unix sockets replace a stale socket
// file and are restricted to the owner.
func Listen(addr Address) (net.Listener, error) {
	switch addr.Network {
	case "unix":
		return listenUnix(addr.Addr)
	case "tcp":
		ln, err := net.Listen("tcp", addr.Addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		return ln, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", addr.Network)
	}
}

func listenUnix(socketPath string) (net.Listener, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on Unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return ln, nil
}

// ListenAll parses and opens every bind. On failure the listeners opened so
// far are closed.
func ListenAll(binds []string) ([]net.Listener, error) {
	if len(binds) == 0 {
		return nil, errors.New("no bind address configured")
	}

	listeners := make([]net.Listener, 0, len(binds))
	for _, bind := range binds {
		addr, err := ParseBind(bind)
		if err == nil {
			var ln net.Listener
			if ln, err = Listen(addr); err == nil {
				listeners = append(listeners, ln)
				continue
			}
		}
		for _, ln := range listeners {
			ln.Close()
		}
		return nil, err
	}
	return listeners, nil
}

// TLSConfig loads a server certificate. It returns nil when neither file is
// set, and an error when only one is.
func TLSConfig(certFile, keyFile string) (*tls.Config, error) {
	switch {
	case certFile == "" && keyFile == "":
		return nil, nil
	case certFile == "" || keyFile == "":
		return nil, errors.New("both certfile and keyfile are required for TLS")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
