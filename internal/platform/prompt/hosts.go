// Package prompt handles operator interaction: collecting hosts when the
// settings list none, and rendering the banner and per-host report.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-playground/validator/v10"

	"github.com/nickalie/wingship/internal/config"
	"github.com/nickalie/wingship/internal/core/host"
)

const maxHosts = 100

var validate = validator.New()

// HostCollector asks the operator which hosts to provision.
type HostCollector interface {
	CollectHosts(ctx context.Context) ([]*host.Host, error)
}

// HostForm implements HostCollector with terminal forms.
type HostForm struct {
	accessible bool
}

// HostFormOption defines functional options for HostForm
type HostFormOption func(*HostForm)

// WithAccessible switches to line-by-line prompts for screen readers and dumb terminals.
func WithAccessible(accessible bool) HostFormOption {
	return func(f *HostForm) {
		f.accessible = accessible
	}
}

// NewHostForm creates a host form.
func NewHostForm(opts ...HostFormOption) *HostForm {
	f := &HostForm{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CollectHosts asks for the number of servers, then address, node name and
// DNS hostname of each one.
func (f *HostForm) CollectHosts(ctx context.Context) ([]*host.Host, error) {
	var countText string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("How many servers would you like to deploy?").
				Placeholder("1").
				Value(&countText).
				Validate(validateCount),
		),
	).WithAccessible(f.accessible).RunWithContext(ctx)
	if err != nil {
		return nil, err
	}

	count, err := parseCount(countText)
	if err != nil {
		return nil, err
	}

	hosts := make([]*host.Host, count)
	groups := make([]*huh.Group, count)
	for i := range hosts {
		h := &host.Host{}
		hosts[i] = h
		groups[i] = huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Address of server %d", i+1)).
				Description("IPv4 address or hostname reachable over SSH").
				Value(&h.Address).
				Validate(validateAddress),
			huh.NewInput().
				Title(fmt.Sprintf("Node name of server %d", i+1)).
				Description("Name the node is registered with on the panel").
				Value(&h.Name).
				Validate(uniqueName(hosts[:i])),
			huh.NewInput().
				Title(fmt.Sprintf("DNS record of server %d", i+1)).
				Description("Fully qualified hostname the certificate is issued for").
				Placeholder("node1.example.com").
				Value(&h.Hostname).
				Validate(validateHostname),
		).Title(fmt.Sprintf("Server %d", i+1))
	}

	if err := huh.NewForm(groups...).WithAccessible(f.accessible).RunWithContext(ctx); err != nil {
		return nil, err
	}

	for _, h := range hosts {
		h.Address = strings.TrimSpace(h.Address)
		h.Name = strings.TrimSpace(h.Name)
		h.Hostname = strings.TrimSpace(h.Hostname)
	}
	if err := config.ValidateHosts(hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

func parseCount(text string) (int, error) {
	count, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a number", text)
	}
	if count < 1 || count > maxHosts {
		return 0, fmt.Errorf("server count must be between 1 and %d", maxHosts)
	}
	return count, nil
}

func validateCount(text string) error {
	_, err := parseCount(text)
	return err
}

func validateAddress(text string) error {
	if validate.Var(strings.TrimSpace(text), "required,ip|hostname") != nil {
		return errors.New("enter an IP address or hostname")
	}
	return nil
}

func validateHostname(text string) error {
	if validate.Var(strings.TrimSpace(text), "required,fqdn") != nil {
		return errors.New("enter a fully qualified domain name")
	}
	return nil
}

// uniqueName rejects blank names and names already given to an earlier server.
func uniqueName(previous []*host.Host) func(string) error {
	return func(text string) error {
		name := strings.TrimSpace(text)
		if name == "" {
			return errors.New("node name is required")
		}
		for _, h := range previous {
			if strings.TrimSpace(h.Name) == name {
				return fmt.Errorf("node name '%s' is already used", name)
			}
		}
		return nil
	}
}
