package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpClient is the subset of *sftp.Client a walk needs.
type sftpClient interface {
	ReadDir(string) ([]os.FileInfo, error)
	Stat(string) (os.FileInfo, error)
	ReadLink(string) (string, error)
	RealPath(string) (string, error)
}

type dialFunc func(context.Context, Config) (sftpClient, io.Closer, error)

var dialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

var sshNewClientConn = ssh.NewClientConn

// dialSFTP opens an SSH connection and starts the SFTP subsystem on it.
func dialSFTP(ctx context.Context, cfg Config) (sftpClient, io.Closer, error) {
	ep, err := parseEndpoint(cfg)
	if err != nil {
		return nil, nil, err
	}

	hosts, err := openKnownHosts()
	if err != nil {
		return nil, nil, err
	}
	auth, err := authMethods(ep, cfg.BatchMode)
	if err != nil {
		return nil, nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := connectSSH(ctx, ep.addr(), &ssh.ClientConfig{
		User:            ep.user,
		Auth:            auth,
		HostKeyCallback: hosts.callback(ep, cfg.BatchMode),
		Timeout:         timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ssh connection to %s failed: %w", ep.addr(), err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("cannot start SFTP subsystem: %w", err)
	}
	return client, &session{conn: conn, client: client}, nil
}

// connectSSH dials addr and runs the SSH handshake. Canceling ctx aborts
// both the dial and a handshake in progress.
func connectSSH(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := dialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	c, chans, reqs, err := sshNewClientConn(conn, addr, config)
	if !stop() {
		// ctx fired during the handshake and already closed conn.
		if err == nil {
			_ = c.Close()
		}
		return nil, errors.Join(ctx.Err(), err)
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// session closes the SFTP client before its SSH connection.
type session struct {
	conn   *ssh.Client
	client *sftp.Client
}

func (s *session) Close() error {
	return errors.Join(s.client.Close(), s.conn.Close())
}
