package provision

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/nickalie/wingship/internal/core/host"
)

// fakeSession records every command and upload it receives.
type fakeSession struct {
	mu       sync.Mutex
	commands []string
	ready    []bool
	uploads  [][2]string
	closes   int

	failOn  string
	failErr error
	block   bool
}

func (s *fakeSession) Run(ctx context.Context, command string, untilReady bool) error {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.ready = append(s.ready, untilReady)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return &CommandError{Command: command, Cause: ctx.Err()}
	}
	if s.failOn != "" && strings.Contains(command, s.failOn) {
		return s.failErr
	}
	return nil
}

func (s *fakeSession) Upload(_ context.Context, local, remote string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, [2]string{local, remote})
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *fakeSession) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// MockConnector mocks the Connector interface for testing
type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) Connect(ctx context.Context, h *host.Host) (Session, error) {
	args := m.Called(ctx, h)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Session), args.Error(1)
}

// MockRegistrar mocks the Registrar interface for testing
type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) RegisterNode(ctx context.Context, req *NodeRequest) (*Registration, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Registration), args.Error(1)
}

func forHost(name string) interface{} {
	return mock.MatchedBy(func(h *host.Host) bool { return h.Name == name })
}

func forNode(name string) interface{} {
	return mock.MatchedBy(func(r *NodeRequest) bool { return r.Name == name })
}
