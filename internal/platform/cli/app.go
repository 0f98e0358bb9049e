// Package cli ties the settings, the operator prompt and the scheduler
// together into one deployment run.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/nickalie/wingship/internal/config"
	"github.com/nickalie/wingship/internal/core/host"
	"github.com/nickalie/wingship/internal/core/provision"
	"github.com/nickalie/wingship/internal/infrastructure/env"
	"github.com/nickalie/wingship/internal/infrastructure/metrics"
	"github.com/nickalie/wingship/internal/platform/prompt"
)

// ErrDeploymentFailed is returned when at least one host did not come online.
var ErrDeploymentFailed = errors.New("deployment failed")

// EnvLoader defines the interface for loading environment variables
type EnvLoader interface {
	Load(vaultPassword string, paths ...string) error
	ResolveVaultPassword(password string) (string, error)
}

// SettingsLoaderFactory returns a settings loader using vaultPassword for encrypted files.
type SettingsLoaderFactory func(vaultPassword string) config.Loader

// Deployer provisions a set of hosts.
type Deployer interface {
	Deploy(ctx context.Context, hosts []*host.Host) []*provision.Outcome
}

// DeployerFactory builds the deployer for a run. onOutcome must be passed on
// so results are reported as each host settles.
type DeployerFactory func(settings *config.Settings, log logr.Logger, onOutcome func(*provision.Outcome)) (Deployer, error)

// Options are the per-run inputs taken from the command line.
type Options struct {
	ConfigPath    string
	EnvPaths      []string
	VaultPassword string
	MetricsFile   string
	SkipBanner    bool
	Version       string
}

// App represents the main application structure that handles settings
// loading and host provisioning.
type App struct {
	envLoader      EnvLoader
	settingsLoader SettingsLoaderFactory
	hostCollector  prompt.HostCollector
	newDeployer    DeployerFactory
	out            io.Writer
	log            logr.Logger
	clock          clock.Clock
}

// AppOption is a function that modifies an App
type AppOption func(*App)

// WithEnvLoader replaces the environment loader.
func WithEnvLoader(loader EnvLoader) AppOption {
	return func(a *App) {
		a.envLoader = loader
	}
}

// WithSettingsLoader replaces the settings loader.
func WithSettingsLoader(factory SettingsLoaderFactory) AppOption {
	return func(a *App) {
		a.settingsLoader = factory
	}
}

// WithHostCollector replaces the interactive host prompt.
func WithHostCollector(collector prompt.HostCollector) AppOption {
	return func(a *App) {
		a.hostCollector = collector
	}
}

// WithDeployer replaces the SSH based deployer.
func WithDeployer(factory DeployerFactory) AppOption {
	return func(a *App) {
		a.newDeployer = factory
	}
}

// WithOutput sets where the banner and report are written.
func WithOutput(out io.Writer) AppOption {
	return func(a *App) {
		a.out = out
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) AppOption {
	return func(a *App) {
		a.log = log
	}
}

// WithClock sets the clock used to stamp the run.
func WithClock(c clock.Clock) AppOption {
	return func(a *App) {
		a.clock = c
	}
}

// NewApp creates an App with default implementations for all dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		envLoader: env.NewLoader(),
		settingsLoader: func(vaultPassword string) config.Loader {
			return config.NewLoader(config.WithVaultPassword(vaultPassword))
		},
		hostCollector: prompt.NewHostForm(prompt.WithAccessible(os.Getenv("ACCESSIBLE") != "")),
		newDeployer:   defaultDeployer,
		out:           os.Stdout,
		log:           logr.Discard(),
		clock:         clock.WallClock,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultDeployer(settings *config.Settings, log logr.Logger, onOutcome func(*provision.Outcome)) (Deployer, error) {
	scheduler, err := NewScheduler(settings, log, provision.WithOutcomeHandler(onOutcome))
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}

// Run performs one deployment. It returns ErrDeploymentFailed when any host failed.
func (a *App) Run(ctx context.Context, opts Options) error {
	password, err := a.vaultPassword(opts)
	if err != nil {
		return err
	}

	if err := a.envLoader.Load(password, opts.EnvPaths...); err != nil {
		return fmt.Errorf("environment loading failed: %w", err)
	}

	settings, err := a.settingsLoader(password).Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("settings loading failed: %w", err)
	}

	if !opts.SkipBanner {
		fmt.Fprintln(a.out, prompt.Banner(opts.Version))
	}

	hosts := settings.Hosts
	if len(hosts) == 0 {
		hosts, err = a.hostCollector.CollectHosts(ctx)
		if err != nil {
			return fmt.Errorf("host selection failed: %w", err)
		}
	}

	runID := uuid.New().String()
	log := a.log.WithValues("run", runID)
	log.Info("Starting deployment", "hosts", len(hosts))

	recorder := metrics.NewRecorder()
	var mu sync.Mutex
	onOutcome := func(o *provision.Outcome) {
		recorder.Observe(o)
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(a.out, prompt.FormatOutcome(o))
	}

	deployer, err := a.newDeployer(settings, log, onOutcome)
	if err != nil {
		return fmt.Errorf("deployment setup failed: %w", err)
	}

	outcomes := deployer.Deploy(ctx, hosts)
	summary := provision.Summarize(outcomes)
	fmt.Fprintln(a.out, prompt.FormatSummary(summary))
	log.Info("Deployment finished", "succeeded", summary.Succeeded, "failed", summary.Failed)

	recorder.Finish(a.clock.Now())
	if opts.MetricsFile != "" {
		if err := recorder.WriteTextfile(opts.MetricsFile); err != nil {
			log.Error(err, "Writing metrics file failed", "path", opts.MetricsFile)
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d hosts failed", ErrDeploymentFailed, summary.Failed, len(outcomes))
	}
	return nil
}

// vaultPassword resolves the password once, and only when an encrypted file is used.
func (a *App) vaultPassword(opts Options) (string, error) {
	needed := strings.HasSuffix(opts.ConfigPath, ".vault")
	for _, path := range opts.EnvPaths {
		needed = needed || strings.HasSuffix(path, ".vault")
	}
	if !needed {
		return opts.VaultPassword, nil
	}

	password, err := a.envLoader.ResolveVaultPassword(opts.VaultPassword)
	if err != nil {
		return "", fmt.Errorf("vault password: %w", err)
	}
	return password, nil
}
