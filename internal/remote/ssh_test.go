/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION & AFFILIATES. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// testSSHServer answers exec requests with canned output and exit codes.
type testSSHServer struct {
	listener net.Listener
	signer   ssh.Signer
	config   *ssh.ServerConfig
	handler  func(command string) (string, uint32)
}

func newTestSSHServer(t *testing.T, clientKey ssh.PublicKey, handler func(string) (string, uint32)) *testSSHServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), clientKey.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &testSSHServer{listener: listener, signer: hostSigner, config: config, handler: handler}
	t.Cleanup(func() { listener.Close() })
	go s.serve()
	return s
}

func (s *testSSHServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testSSHServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *testSSHServer) handleConn(conn net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range requests {
				if req.Type != "exec" {
					req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
					req.Reply(false, nil)
					continue
				}
				req.Reply(true, nil)
				out, status := s.handler(payload.Command)
				channel.Write([]byte(out))
				channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
				channel.Close()
			}
		}()
	}
}

func writeClientKey(t *testing.T) (string, ssh.PublicKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "test")
	if err != nil {
		t.Fatalf("marshal client key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write client key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("client signer: %v", err)
	}
	return path, signer.PublicKey()
}

func TestSSHTransportRun(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	keyFile, clientPub := writeClientKey(t)
	server := newTestSSHServer(t, clientPub, func(command string) (string, uint32) {
		switch command {
		case "killall ib_write_bw":
			return "", 1
		default:
			return "echo:" + command, 0
		}
	})

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(server.port()))
	line := knownhosts.Line([]string{knownhosts.Normalize(addr)}, server.signer.PublicKey())
	if err := os.WriteFile(knownHosts, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}

	transport, err := NewSSHTransport(SSHConfig{
		Port:           server.port(),
		KeyFile:        keyFile,
		KnownHostsFile: knownHosts,
		DialTimeout:    5 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewSSHTransport failed: %v", err)
	}
	defer transport.Close()

	host := Host{User: "alice", Addr: "127.0.0.1"}
	ctx := context.Background()

	out, err := transport.Run(ctx, host, "hostname")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(out) != "echo:hostname" {
		t.Errorf("unexpected output %q", out)
	}

	_, err = transport.Run(ctx, host, "killall ib_write_bw")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Status != 1 {
		t.Fatalf("expected ExitError status 1, got %v", err)
	}

	if len(transport.clients) != 1 {
		t.Errorf("expected one cached client, got %d", len(transport.clients))
	}

	executor := NewExecutor(transport, testLogger(), nil)
	if err := executor.Terminate(ctx, host); err != nil {
		t.Errorf("Terminate over ssh failed: %v", err)
	}
}

func TestSSHTransportRejectsUnknownHostKey(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	keyFile, clientPub := writeClientKey(t)
	server := newTestSSHServer(t, clientPub, func(string) (string, uint32) { return "", 0 })

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(knownHosts, nil, 0o600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}

	transport, err := NewSSHTransport(SSHConfig{
		Port:           server.port(),
		KeyFile:        keyFile,
		KnownHostsFile: knownHosts,
		DialTimeout:    2 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewSSHTransport failed: %v", err)
	}
	defer transport.Close()

	executor := NewExecutor(transport, testLogger(), nil)
	_, err = executor.Run(context.Background(), Host{User: "alice", Addr: "127.0.0.1"}, "true")
	if !errors.Is(err, ErrRemoteExecution) {
		t.Fatalf("expected ErrRemoteExecution, got %v", err)
	}
}

func TestNewSSHTransportMissingKey(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	_, err := NewSSHTransport(SSHConfig{KeyFile: filepath.Join(t.TempDir(), "nope")}, testLogger())
	if err == nil {
		t.Fatal("expected error for missing key file")
	}
}
