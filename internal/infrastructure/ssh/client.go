// Package ssh connects to hosts being provisioned. It runs commands on a
// pseudo-terminal, reacts to prompts in their output and uploads files via SFTP.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/nickalie/wingship/internal/core/host"
	"github.com/nickalie/wingship/internal/core/provision"
	"github.com/nickalie/wingship/internal/core/trigger"
	"github.com/nickalie/wingship/internal/infrastructure/fs"
)

const defaultDialTimeout = 10 * time.Second

// Connector implements provision.Connector using SSH
type Connector struct {
	credential  host.Credential
	fileSystem  fs.FileSystem
	table       trigger.Table
	dialTimeout time.Duration
	log         logr.Logger
}

// ConnectorOption defines functional options for Connector
type ConnectorOption func(*Connector)

// WithFileSystem sets the file system used to read keys and uploads.
func WithFileSystem(fileSystem fs.FileSystem) ConnectorOption {
	return func(c *Connector) {
		c.fileSystem = fileSystem
	}
}

// WithTriggers replaces the default prompt table.
func WithTriggers(table trigger.Table) ConnectorOption {
	return func(c *Connector) {
		c.table = table
	}
}

// WithDialTimeout bounds the TCP dial and SSH handshake.
func WithDialTimeout(d time.Duration) ConnectorOption {
	return func(c *Connector) {
		c.dialTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) ConnectorOption {
	return func(c *Connector) {
		c.log = log
	}
}

// NewConnector creates a connector that authenticates every host with cred.
func NewConnector(cred host.Credential, opts ...ConnectorOption) *Connector {
	c := &Connector{
		credential:  cred,
		fileSystem:  fs.NewFileSystem(),
		table:       trigger.DefaultTable(),
		dialTimeout: defaultDialTimeout,
		log:         logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect implements provision.Connector.
func (c *Connector) Connect(ctx context.Context, h *host.Host) (provision.Session, error) {
	auth, err := c.authMethods()
	if err != nil {
		return nil, &provision.ConnectionError{Target: h.Name, Cause: err}
	}

	config := &ssh.ClientConfig{
		User:            c.credential.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.dialTimeout,
	}

	addr := net.JoinHostPort(h.Address, strconv.Itoa(c.credential.GetPort()))
	client, err := c.dial(ctx, addr, config)
	if err != nil {
		return nil, &provision.ConnectionError{Target: h.Name, Cause: err}
	}

	log := c.log.WithValues("host", h.Name)
	return &Session{
		client: NewSSHAdapter(client),
		newSFTP: func() (SFTPClientInterface, error) {
			sc, err := sftp.NewClient(client)
			if err != nil {
				return nil, err
			}
			return NewSFTPAdapter(sc), nil
		},
		fileSystem: c.fileSystem,
		secret:     c.credential.Secret(),
		table:      c.table,
		log:        log,
	}, nil
}

func (c *Connector) dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.dialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, err
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (c *Connector) authMethods() ([]ssh.AuthMethod, error) {
	if c.credential.UsesKey() {
		key, err := c.fileSystem.ReadFile(c.credential.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) && c.credential.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(c.credential.Password))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}

		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	if c.credential.Password == "" {
		return nil, errors.New("no password or private key configured")
	}

	password := c.credential.Password
	return []ssh.AuthMethod{
		ssh.Password(password),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}),
	}, nil
}
