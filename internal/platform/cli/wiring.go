package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/nickalie/wingship/internal/config"
	"github.com/nickalie/wingship/internal/core/provision"
	"github.com/nickalie/wingship/internal/infrastructure/panel"
	"github.com/nickalie/wingship/internal/infrastructure/ssh"
)

// NewLogger returns a logger writing one line per entry to out. Verbose
// enables per-command entries.
func NewLogger(out io.Writer, verbose bool) logr.Logger {
	verbosity := 0
	if verbose {
		verbosity = 1
	}

	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(out, prefix, args)
			return
		}
		fmt.Fprintln(out, args)
	}, funcr.Options{
		LogTimestamp:    true,
		TimestampFormat: time.RFC3339,
		Verbosity:       verbosity,
	})
}

// NewScheduler wires the SSH transport, the panel client and the provisioner
// described by settings into a scheduler. Unset settings fields are filled
// with their defaults first.
func NewScheduler(settings *config.Settings, log logr.Logger, opts ...provision.SchedulerOption) (*provision.Scheduler, error) {
	if err := config.Prepare(settings); err != nil {
		return nil, err
	}

	connector := ssh.NewConnector(settings.Credential(), ssh.WithLogger(log))
	registrar := panel.NewClient(settings.PanelURL(), settings.Pterodactyl.Key, panel.WithLogger(log))

	provisioner, err := provision.NewProvisioner(connector, registrar,
		provision.WithSteps(provision.DefaultPlan(settings.PlanOptions())),
		provision.WithValues(settings.TemplateValues()),
		provision.WithNodeTemplate(settings.NodeTemplate()),
		provision.WithCommandTimeout(settings.Deploy.CommandTimeout.Std()),
		provision.WithRegisterTimeout(settings.Deploy.RegisterTimeout.Std()),
		provision.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	opts = append([]provision.SchedulerOption{
		provision.WithStagger(settings.Deploy.Stagger.Std()),
		provision.WithSchedulerLogger(log),
	}, opts...)
	return provision.NewScheduler(provisioner, opts...), nil
}
