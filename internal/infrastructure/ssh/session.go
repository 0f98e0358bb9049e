package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/nickalie/wingship/internal/core/provision"
	"github.com/nickalie/wingship/internal/core/trigger"
	"github.com/nickalie/wingship/internal/infrastructure/fs"
)

// SSHSession represents one SSH channel running a single command
type SSHSession interface {
	RequestPty(term string, height, width int, modes ssh.TerminalModes) error
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	StderrPipe() (io.Reader, error)
	Start(cmd string) error
	Wait() error
	Close() error
}

// SSHClientInterface represents SSH client functionality
type SSHClientInterface interface {
	NewSession() (SSHSession, error)
	Close() error
}

// SFTPClientInterface represents SFTP client functionality
type SFTPClientInterface interface {
	fs.SFTPClient
	Close() error
}

// SSHAdapter adapts ssh.Client to our SSHClientInterface
type SSHAdapter struct {
	*ssh.Client
}

// NewSSHAdapter creates a new SSHAdapter instance
func NewSSHAdapter(client *ssh.Client) SSHClientInterface {
	return &SSHAdapter{Client: client}
}

// NewSession implements SSHClientInterface by adapting the underlying ssh.Client's NewSession method
func (a *SSHAdapter) NewSession() (SSHSession, error) {
	return a.Client.NewSession()
}

// SFTPAdapter adapts sftp.Client to our SFTPClientInterface
type SFTPAdapter struct {
	*sftp.Client
}

// NewSFTPAdapter creates a new SFTPAdapter instance wrapping the provided sftp.Client
func NewSFTPAdapter(client *sftp.Client) SFTPClientInterface {
	return &SFTPAdapter{Client: client}
}

// Create implements SFTPClientInterface
func (a *SFTPAdapter) Create(path string) (io.WriteCloser, error) {
	return a.Client.Create(path)
}

// MkdirAll implements SFTPClientInterface
func (a *SFTPAdapter) MkdirAll(path string) error {
	return a.Client.MkdirAll(path)
}

// Chmod implements SFTPClientInterface
func (a *SFTPAdapter) Chmod(path string, mode os.FileMode) error {
	return a.Client.Chmod(path, mode)
}

// Session is one authenticated connection to a host. Commands run one at a
// time, each on its own channel with a pseudo-terminal attached.
type Session struct {
	client     SSHClientInterface
	newSFTP    func() (SFTPClientInterface, error)
	fileSystem fs.FileSystem
	secret     string
	table      trigger.Table
	log        logr.Logger

	mu        sync.Mutex
	sftp      SFTPClientInterface
	sftpMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Run implements provision.Session.
func (s *Session) Run(ctx context.Context, command string, untilReady bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, err := s.client.NewSession()
	if err != nil {
		return &provision.CommandError{Command: command, Cause: fmt.Errorf("failed to create SSH session: %w", err)}
	}
	defer channel.Close()

	err = runCommand(ctx, channel, command, execOptions{
		secret:     s.secret,
		table:      s.table,
		untilReady: untilReady,
		log:        s.log,
	})
	if err == nil && untilReady {
		// the daemon keeps the channel open forever, so the connection is ended here
		s.log.V(1).Info("Closing session after readiness")
		_ = s.Close()
	}
	return err
}

// Upload implements provision.Session by copying a local file over SFTP.
func (s *Session) Upload(ctx context.Context, local, remote string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.sftpClient()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- fs.NewCopier(s.fileSystem, client).CopyFile(local, remote)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &provision.CommandError{Command: "upload " + local, Cause: err}
		}
		return nil
	case <-ctx.Done():
		s.closeSFTP()
		<-done
		return &provision.CommandError{Command: "upload " + local, Cause: ctx.Err()}
	}
}

func (s *Session) sftpClient() (SFTPClientInterface, error) {
	s.sftpMu.Lock()
	defer s.sftpMu.Unlock()

	if s.sftp == nil {
		client, err := s.newSFTP()
		if err != nil {
			return nil, fmt.Errorf("SFTP connection failed: %w", err)
		}
		s.sftp = client
	}
	return s.sftp, nil
}

func (s *Session) closeSFTP() {
	s.sftpMu.Lock()
	defer s.sftpMu.Unlock()

	if s.sftp != nil {
		_ = s.sftp.Close()
		s.sftp = nil
	}
}

// Close implements provision.Session. Only the first call closes the connection.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeSFTP()
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
