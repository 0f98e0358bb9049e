package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickalie/wingship/internal/config"
	"github.com/nickalie/wingship/internal/core/host"
	"github.com/nickalie/wingship/internal/core/provision"
	"github.com/nickalie/wingship/internal/platform/cli"
)

const settingsJSON = `{
  "ssh_auth": {"type": "password", "user": "root", "password": "hunter2"},
  "pterodactyl": {"url": "https://panel.example.com", "key": "ptla_secret",
                  "node": {"locationId": 1, "memory": 8192, "disk": 50000}},
  "certbot_email": "ops@example.com",
  "hosts": [{"address": "10.0.0.1", "name": "node1", "hostname": "node1.example.com"}]
}`

type stubDeployer struct {
	onOutcome func(*provision.Outcome)
	fail      bool
}

func (d *stubDeployer) Deploy(_ context.Context, hosts []*host.Host) []*provision.Outcome {
	outcomes := make([]*provision.Outcome, 0, len(hosts))
	for _, h := range hosts {
		o := &provision.Outcome{Host: h, Stage: provision.StageSucceeded}
		if d.fail {
			o.Stage = provision.StageConnecting
			o.Err = &provision.StepError{Host: h.Name, Stage: provision.StageConnecting, Cause: assert.AnError}
		}
		d.onOutcome(o)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func stubApp(t *testing.T, fail bool) {
	t.Helper()
	original := newApp
	t.Cleanup(func() { newApp = original })

	newApp = func(opts ...cli.AppOption) *cli.App {
		opts = append(opts, cli.WithDeployer(func(_ *config.Settings, _ logr.Logger, onOutcome func(*provision.Outcome)) (cli.Deployer, error) {
			return &stubDeployer{onOutcome: onOutcome, fail: fail}, nil
		}))
		return cli.NewApp(opts...)
	}
}

func writeSettings(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(settingsJSON), 0600))
	return path
}

func TestRoot(t *testing.T) {
	cmd := Root()

	assert.Equal(t, "wingship", cmd.Use)
	for _, name := range []string{"config", "env", "vault-password", "verbose", "metrics-file", "yes"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "settings.json", cmd.Flags().Lookup("config").DefValue)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "version")
}

func TestRoot_Deploy(t *testing.T) {
	stubApp(t, false)
	metricsFile := filepath.Join(t.TempDir(), "wingship.prom")

	var out bytes.Buffer
	cmd := Root()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", writeSettings(t), "--yes", "--metrics-file", metricsFile})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "node1 (10.0.0.1) is online")
	assert.FileExists(t, metricsFile)
}

func TestRoot_DeployFailure(t *testing.T) {
	stubApp(t, true)

	var out bytes.Buffer
	cmd := Root()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-c", writeSettings(t), "-y"})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, cli.ErrDeploymentFailed)
	assert.Contains(t, out.String(), "node1 (10.0.0.1) failed during Connecting")
}

func TestRoot_RejectsArguments(t *testing.T) {
	cmd := Root()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"node1"})

	assert.Error(t, cmd.Execute())
}

func TestVersion(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer SetVersionInfo(origVersion, origCommit, origDate)

	SetVersionInfo("1.2.3", "abc123", "2026-10-15")

	var out bytes.Buffer
	cmd := Root()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "wingship 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
}
