package fsdelete

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig describes the remote host whose filesystem holds the roots.
type SFTPConfig struct {
	Target     string // user@host
	Port       int
	KeyFile    string
	KnownHosts string
	Timeout    time.Duration
}

type remoteFS interface {
	Lstat(p string) (os.FileInfo, error)
	Remove(p string) error
}

type dialFunc func(ctx context.Context) (remoteFS, func() error, error)

// SFTP deletes files on a remote host over the SFTP subsystem. One SSH
// connection is shared by all requests; when it is lost the next request
// dials a new one.
type SFTP struct {
	mu     sync.Mutex
	client remoteFS
	close  func() error
	dial   dialFunc
}

var dialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

func DialSFTP(ctx context.Context, cfg SFTPConfig) (*SFTP, error) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, errors.New("ssh port must be between 1 and 65535")
	}
	user, host, err := parseTarget(cfg.Target)
	if err != nil {
		return nil, err
	}
	hostCB, err := hostKeyCallback(cfg.KnownHosts)
	if err != nil {
		return nil, err
	}
	auth, err := authMethods(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	sshCfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostCB,
		Timeout:         timeout,
	}
	dial := func(ctx context.Context) (remoteFS, func() error, error) {
		return connect(ctx, addr, sshCfg, timeout)
	}

	client, closeFn, err := dial(ctx)
	if err != nil {
		return nil, err
	}
	return &SFTP{client: client, close: closeFn, dial: dial}, nil
}

func connect(ctx context.Context, addr string, sshCfg *ssh.ClientConfig, timeout time.Duration) (remoteFS, func() error, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("SSH connection failed: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, fmt.Errorf("cannot start SFTP subsystem: %w", err)
	}
	return client, func() error {
		err := client.Close()
		if cerr := sshClient.Close(); cerr != nil && err == nil {
			err = cerr
		}
		return err
	}, nil
}

// Delete removes a remote regular file or symlink. sftp's Remove would also
// drop an empty directory, so the target is checked first.
func (s *SFTP) Delete(ctx context.Context, p string) error {
	return s.do(ctx, func(c remoteFS) error {
		fi, err := c.Lstat(p)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return &fs.PathError{Op: "unlink", Path: p, Err: syscall.EISDIR}
		}
		return c.Remove(p)
	})
}

func (s *SFTP) Inspect(ctx context.Context, p string) (fs.FileInfo, error) {
	var fi fs.FileInfo
	err := s.do(ctx, func(c remoteFS) error {
		var err error
		fi, err = c.Lstat(p)
		return err
	})
	return fi, err
}

func (s *SFTP) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.close == nil {
		return nil
	}
	err := s.close()
	s.close = nil
	return err
}

// do runs fn on the shared client. If the connection turns out to be gone,
// fn runs once more on a freshly dialed one.
func (s *SFTP) do(ctx context.Context, fn func(remoteFS) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()

	err := fn(c)
	if !connectionLost(err) || s.dial == nil {
		return err
	}
	c, rerr := s.redial(ctx, c)
	if rerr != nil {
		return fmt.Errorf("%w (redial: %v)", err, rerr)
	}
	return fn(c)
}

func (s *SFTP) redial(ctx context.Context, stale remoteFS) (remoteFS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != stale {
		// Another request already replaced the connection.
		return s.client, nil
	}
	client, closeFn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	if s.close != nil {
		_ = s.close()
	}
	s.client, s.close = client, closeFn
	return client, nil
}

func connectionLost(err error) bool {
	return errors.Is(err, sftp.ErrSSHFxConnectionLost) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}

func parseTarget(target string) (string, string, error) {
	if strings.TrimSpace(target) == "" {
		return "", "", errors.New("sftp target is required")
	}
	user, host, ok := strings.Cut(target, "@")
	if !ok || user == "" || host == "" {
		return "", "", fmt.Errorf("invalid sftp target %q: expected user@host", target)
	}
	return user, host, nil
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory for known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load known_hosts: %w", err)
	}
	return cb, nil
}

func authMethods(keyFile string) ([]ssh.AuthMethod, error) {
	methods := make([]ssh.AuthMethod, 0, 2)
	if keyFile != "" {
		pem, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		methods = append(methods, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				return nil, err
			}
			return agent.NewClient(conn).Signers()
		}))
	}
	if len(methods) == 0 {
		return nil, errors.New("no ssh credentials: set a key file or SSH_AUTH_SOCK")
	}
	return methods, nil
}
