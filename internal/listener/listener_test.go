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

package listener

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestParseBind(t *testing.T) {
	tests := []struct {
		bind       string
		want       Address
		wantRemote bool
		wantErr    bool
	}{
		{bind: ":5000", want: Address{"tcp", ":5000"}, wantRemote: true},
		{bind: "127.0.0.1:8080", want: Address{"tcp", "127.0.0.1:8080"}},
		{bind: "tcp://0.0.0.0:80", want: Address{"tcp", "0.0.0.0:80"}, wantRemote: true},
		{bind: "localhost", want: Address{"tcp", "localhost:8000"}},
		{bind: "[::1]:9000", want: Address{"tcp", "[::1]:9000"}},
		{bind: "10.0.0.5:9000", want: Address{"tcp", "10.0.0.5:9000"}, wantRemote: true},
		{bind: "unix:/run/app.sock", want: Address{"unix", "/run/app.sock"}},
		{bind: "unix:///run/app.sock", want: Address{"unix", "/run/app.sock"}},
		{bind: "", wantErr: true},
		{bind: "unix:", wantErr: true},
		{bind: "fd://3", wantErr: true},
		{bind: "https://example.com:443", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.bind, func(t *testing.T) {
			got, err := ParseBind(tt.bind)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseBind(%q) expected error, got %+v", tt.bind, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBind(%q) unexpected error: %v", tt.bind, err)
			}
			if got != tt.want {
				t.Errorf("ParseBind(%q) = %+v, want %+v", tt.bind, got, tt.want)
			}
			if got.IsRemote() != tt.wantRemote {
				t.Errorf("IsRemote(%q) = %v, want %v", tt.bind, got.IsRemote(), tt.wantRemote)
			}
		})
	}
}

func TestListenAll(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "run", "app.sock")
	// A stale socket file is replaced.
	if err := os.MkdirAll(filepath.Dir(sock), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sock, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	listeners, err := ListenAll([]string{"127.0.0.1:0", "unix:" + sock})
	if err != nil {
		t.Fatalf("ListenAll: %v", err)
	}
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	if len(listeners) != 2 {
		t.Fatalf("expected 2 listeners, got %d", len(listeners))
	}

	info, err := os.Stat(sock)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("socket mode = %v, want 0600", info.Mode().Perm())
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial unix socket: %v", err)
	}
	conn.Close()
}

func TestListenAll_ClosesOnFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if _, err := ListenAll([]string{"127.0.0.1:0", ln.Addr().String()}); err == nil {
		t.Fatal("expected error binding an address in use")
	}
	if _, err := ListenAll(nil); err == nil {
		t.Fatal("expected error without binds")
	}
}

func TestTLSConfig(t *testing.T) {
	cfg, err := TLSConfig("", "")
	if err != nil || cfg != nil {
		t.Errorf("TLSConfig without files = %v, %v; want nil, nil", cfg, err)
	}

	if _, err := TLSConfig("cert.pem", ""); err == nil {
		t.Error("expected error when key is missing")
	}

	dir := t.TempDir()
	if _, err := TLSConfig(filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")); err == nil {
		t.Error("expected error for unreadable certificate")
	}
}
