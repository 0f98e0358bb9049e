package provision

import (
	"context"

	"github.com/nickalie/wingship/internal/core/host"
)

// Session is an authenticated connection to one host.
type Session interface {
	// Run executes a command to completion. With untilReady the command is
	// considered complete as soon as it reports readiness, and the session
	// is closed because the remote process never exits on its own.
	Run(ctx context.Context, command string, untilReady bool) error
	// Upload copies a local file to the host.
	Upload(ctx context.Context, local, remote string) error
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Connector opens sessions to hosts.
type Connector interface {
	Connect(ctx context.Context, h *host.Host) (Session, error)
}

// Registrar creates nodes on the control plane.
type Registrar interface {
	RegisterNode(ctx context.Context, req *NodeRequest) (*Registration, error)
}

// Runner provisions a single host.
type Runner interface {
	Run(ctx context.Context, h *host.Host) *Outcome
}
