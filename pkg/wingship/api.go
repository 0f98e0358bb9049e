// Package wingship provides a public API for provisioning Pterodactyl Wings
// nodes. It lets other programs load settings and deploy a set of hosts
// without going through the command line.
package wingship

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/nickalie/wingship/internal/config"
	"github.com/nickalie/wingship/internal/core/host"
	"github.com/nickalie/wingship/internal/core/provision"
	"github.com/nickalie/wingship/internal/platform/cli"
)

// Host represents a machine to provision
type Host = host.Host

// Settings represents a deployment configuration
type Settings = config.Settings

// Outcome is the final state of one host
type Outcome = provision.Outcome

// Summary counts succeeded and failed hosts
type Summary = provision.Summary

// Options are the inputs of a command line run
type Options = cli.Options

// Run performs a deployment exactly as the wingship command does.
func Run(ctx context.Context, opts Options) error {
	return cli.NewApp().Run(ctx, opts)
}

// LoadSettings loads a settings file. vaultPassword is only used for .vault files.
func LoadSettings(path, vaultPassword string) (*Settings, error) {
	return config.NewLoader(config.WithVaultPassword(vaultPassword)).Load(path)
}

// Deploy provisions hosts with settings, starting them 15 seconds apart by
// default. Unset fields of settings are filled with their defaults in place.
// It blocks until every host has settled and returns one outcome per host in
// input order.
func Deploy(ctx context.Context, settings *Settings, hosts []*Host, log logr.Logger) ([]*Outcome, error) {
	if err := config.Prepare(settings); err != nil {
		return nil, err
	}
	if err := config.ValidateHosts(hosts); err != nil {
		return nil, err
	}

	scheduler, err := cli.NewScheduler(settings, log)
	if err != nil {
		return nil, fmt.Errorf("deployment setup failed: %w", err)
	}
	return scheduler.Deploy(ctx, hosts), nil
}

// Summarize counts the outcomes of a deployment.
func Summarize(outcomes []*Outcome) Summary {
	return provision.Summarize(outcomes)
}
