package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"

	"github.com/nickalie/wingship/internal/core/provision"
	"github.com/nickalie/wingship/internal/core/trigger"
)

const (
	outputTailSize = 4096
	readBufferSize = 32 * 1024
)

var terminalModes = ssh.TerminalModes{
	ssh.ECHO:          0,
	ssh.TTY_OP_ISPEED: 14400,
	ssh.TTY_OP_OSPEED: 14400,
}

type execOptions struct {
	secret     string
	table      trigger.Table
	untilReady bool
	log        logr.Logger
}

// runCommand runs command on a terminal-attached channel and blocks until the
// channel closes, the readiness marker is seen (untilReady only), or ctx ends.
// Output is matched against the trigger table as it arrives.
func runCommand(ctx context.Context, channel SSHSession, command string, opts execOptions) error {
	if err := channel.RequestPty("xterm", 40, 200, terminalModes); err != nil {
		return &provision.CommandError{Command: command, Cause: fmt.Errorf("failed to request pty: %w", err)}
	}

	stdin, err := channel.StdinPipe()
	if err != nil {
		return &provision.CommandError{Command: command, Cause: fmt.Errorf("failed to get stdin pipe: %w", err)}
	}
	stdout, err := channel.StdoutPipe()
	if err != nil {
		return &provision.CommandError{Command: command, Cause: fmt.Errorf("failed to get stdout pipe: %w", err)}
	}
	stderr, err := channel.StderrPipe()
	if err != nil {
		return &provision.CommandError{Command: command, Cause: fmt.Errorf("failed to get stderr pipe: %w", err)}
	}

	if err := channel.Start(command); err != nil {
		return &provision.CommandError{Command: command, Cause: fmt.Errorf("failed to start command: %w", err)}
	}

	output := newTailBuffer(outputTailSize)
	diagnostics := newTailBuffer(outputTailSize)

	var ready chan struct{}
	if opts.untilReady {
		ready = make(chan struct{})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watchOutput(stdout, stdin, output, ready, opts)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(diagnostics, stderr)
	}()

	exited := make(chan error, 1)
	go func() {
		err := channel.Wait()
		wg.Wait()
		exited <- err
	}()

	select {
	case err := <-exited:
		if opts.untilReady {
			if closed(ready) {
				return nil
			}
			if err == nil {
				err = errors.New("command exited before becoming ready")
			}
		}
		if err == nil {
			return nil
		}
		return exitError(command, err, output, diagnostics)
	case <-ready:
		opts.log.V(1).Info("Readiness marker seen")
		_ = channel.Close()
		return nil
	case <-ctx.Done():
		_ = channel.Close()
		return &provision.CommandError{Command: command, Output: tail(output, diagnostics), Cause: ctx.Err()}
	}
}

// watchOutput feeds stdout through the trigger table until the stream ends.
func watchOutput(stdout io.Reader, stdin io.Writer, output io.Writer, ready chan struct{}, opts execOptions) {
	watcher := trigger.NewWatcher(opts.table)
	buf := make([]byte, readBufferSize)

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			_, _ = output.Write(chunk)

			for _, t := range watcher.Feed(chunk) {
				switch t.Reaction {
				case trigger.RespondSecret:
					opts.log.V(1).Info("Answering password prompt")
					if _, werr := io.WriteString(stdin, opts.secret+"\n"); werr != nil {
						opts.log.V(1).Info("Writing password failed", "err", werr)
					}
				case trigger.SignalReady:
					if ready != nil && !closed(ready) {
						close(ready)
					}
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func closed(ch chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func exitError(command string, err error, output, diagnostics *tailBuffer) error {
	status := -1
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		status = exitErr.ExitStatus()
	}

	return &provision.CommandError{
		Command:    command,
		Output:     tail(output, diagnostics),
		ExitStatus: status,
		Cause:      err,
	}
}

// tail prefers the error stream; with a pty attached it is usually merged into stdout.
func tail(output, diagnostics *tailBuffer) string {
	if s := strings.TrimSpace(diagnostics.String()); s != "" {
		return s
	}
	return strings.TrimSpace(output.String())
}

// tailBuffer keeps the last size bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	size int
	buf  []byte
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.size; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
