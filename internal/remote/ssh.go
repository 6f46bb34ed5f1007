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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conduitio/bwlimit"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/host-bench/rdma-bench/utils"
)

const (
	dialBackoffBase = 200 * time.Millisecond
	dialBackoffMax  = 5 * time.Second
)

// SSHConfig configures the SSH transport.
type SSHConfig struct {
	Port int
	// KeyFile is a private key used for public key auth. When empty the
	// default keys under ~/.ssh are tried.
	KeyFile string
	// KnownHostsFile enables host key verification. When empty host keys are
	// not verified.
	KnownHostsFile string
	DialTimeout    time.Duration
	DialRetries    int
	// BandwidthLimit caps each management connection in bytes per second in
	// both directions. Zero disables the cap.
	BandwidthLimit int64
}

// SSHTransport runs commands over SSH, keeping one client per host for the
// lifetime of the transport.
type SSHTransport struct {
	config          SSHConfig
	auth            []ssh.AuthMethod
	hostKeyCallback ssh.HostKeyCallback
	logger          *slog.Logger

	mu      sync.Mutex
	clients map[Host]*ssh.Client
}

var defaultKeyFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// NewSSHTransport loads credentials and host keys for config.
func NewSSHTransport(config SSHConfig, logger *slog.Logger) (*SSHTransport, error) {
	if config.Port == 0 {
		config.Port = 22
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}

	auth, err := authMethods(config.KeyFile)
	if err != nil {
		return nil, err
	}

	var callback ssh.HostKeyCallback
	if config.KnownHostsFile != "" {
		callback, err = knownhosts.New(config.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", config.KnownHostsFile, err)
		}
	} else {
		logger.Warn("ssh host keys are not verified; set a known hosts file to enable verification")
		callback = ssh.InsecureIgnoreHostKey()
	}

	return &SSHTransport{
		config:          config,
		auth:            auth,
		hostKeyCallback: callback,
		logger:          logger,
		clients:         make(map[Host]*ssh.Client),
	}, nil
}

func authMethods(keyFile string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if keyFile != "" {
		signer, err := loadSigner(keyFile)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	} else if home, err := os.UserHomeDir(); err == nil {
		var signers []ssh.Signer
		for _, name := range defaultKeyFiles {
			signer, err := loadSigner(filepath.Join(home, ".ssh", name))
			if err == nil {
				signers = append(signers, signer)
			}
		}
		if len(signers) > 0 {
			methods = append(methods, ssh.PublicKeys(signers...))
		}
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if len(methods) == 0 {
		return nil, errors.New("no ssh credentials found: configure a key file or run an ssh agent")
	}
	return methods, nil
}

func loadSigner(keyFile string) (ssh.Signer, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key %s: %w", keyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", keyFile, err)
	}
	return signer, nil
}

// Run executes command on host and returns its stdout.
func (t *SSHTransport) Run(ctx context.Context, host Host, command string) ([]byte, error) {
	client, err := t.client(ctx, host)
	if err != nil {
		return nil, err
	}
	session, err := client.NewSession()
	if err != nil {
		t.drop(host, client)
		return nil, fmt.Errorf("failed to open session on %s: %w", host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return nil, ctx.Err()
	case err := <-done:
		if err == nil {
			return stdout.Bytes(), nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &ExitError{
				Host:    host,
				Command: command,
				Status:  exitErr.ExitStatus(),
				Stderr:  strings.TrimSpace(stderr.String()),
			}
		}
		var missing *ssh.ExitMissingError
		if !errors.As(err, &missing) {
			t.drop(host, client)
		}
		return stdout.Bytes(), err
	}
}

// Upload writes content to remotePath on host with the given mode. The file
// is written next to its destination and renamed into place.
func (t *SSHTransport) Upload(ctx context.Context, host Host, content io.Reader, remotePath string, mode os.FileMode) error {
	client, err := t.client(ctx, host)
	if err != nil {
		return err
	}
	sc, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("failed to start sftp on %s: %w", host, err)
	}
	defer sc.Close()

	if err := sc.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("failed to create %s: %w", path.Dir(remotePath), err)
	}

	tmpPath := remotePath + ".tmp"
	f, err := sc.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	if _, err := f.ReadFrom(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := sc.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := sc.PosixRename(tmpPath, remotePath); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}

// Close closes every cached client.
func (t *SSHTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for host, client := range t.clients {
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close %s: %w", host, err))
		}
		delete(t.clients, host)
	}
	return errors.Join(errs...)
}

func (t *SSHTransport) client(ctx context.Context, host Host) (*ssh.Client, error) {
	t.mu.Lock()
	if client, ok := t.clients[host]; ok {
		t.mu.Unlock()
		return client, nil
	}
	t.mu.Unlock()

	var (
		client *ssh.Client
		err    error
	)
	for attempt := 0; attempt <= t.config.DialRetries; attempt++ {
		if attempt > 0 {
			backoff := utils.CalculateBackoff(attempt, dialBackoffBase, dialBackoffMax)
			t.logger.Debug("retrying ssh dial",
				slog.String("host", host.String()),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()))
			if sleepErr := utils.Sleep(ctx, backoff); sleepErr != nil {
				return nil, sleepErr
			}
		}
		client, err = t.dial(ctx, host)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.clients[host]; ok {
		client.Close()
		return existing, nil
	}
	t.clients[host] = client
	return client, nil
}

func (t *SSHTransport) dial(ctx context.Context, host Host) (*ssh.Client, error) {
	addr := net.JoinHostPort(host.Addr, strconv.Itoa(t.config.Port))
	dialer := &net.Dialer{Timeout: t.config.DialTimeout, KeepAlive: 30 * time.Second}

	var (
		conn net.Conn
		err  error
	)
	if t.config.BandwidthLimit > 0 {
		limit := bwlimit.Byte(t.config.BandwidthLimit)
		conn, err = bwlimit.NewDialer(dialer, limit, limit).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            host.User,
		Auth:            t.auth,
		HostKeyCallback: t.hostKeyCallback,
		Timeout:         t.config.DialTimeout,
	}

	// The handshake itself does not honour config.Timeout.
	_ = conn.SetDeadline(time.Now().Add(t.config.DialTimeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func (t *SSHTransport) drop(host Host, client *ssh.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clients[host] == client {
		delete(t.clients, host)
		client.Close()
	}
}
