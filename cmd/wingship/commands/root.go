// Package commands defines the CLI command structure and flag bindings.
// Execution is delegated to the cli package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/nickalie/wingship/internal/platform/cli"
)

// newApp builds the application for a run; replaced in tests.
var newApp = cli.NewApp

type rootFlags struct {
	configPath    string
	envPaths      []string
	vaultPassword string
	verbose       bool
	metricsFile   string
	yes           bool
}

// Root returns the root command for the wingship CLI. Running it without a
// subcommand performs a deployment.
func Root() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "wingship",
		Short: "Install Pterodactyl Wings on many hosts and register them with the panel",
		Long: "wingship connects to every host over SSH, installs Docker and Wings, registers\n" +
			"the host as a node on the Pterodactyl panel, issues a certificate and starts\n" +
			"Wings. Hosts are started 15 seconds apart and run independently.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeploy(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "settings.json", "Path to the settings file (.json, .yaml, .toml, optionally .vault encrypted)")
	f.StringSliceVar(&flags.envPaths, "env", nil, "Environment files to load before reading settings (repeatable, .vault files are decrypted)")
	f.StringVar(&flags.vaultPassword, "vault-password", "", "Password for Ansible Vault encrypted files (defaults to $VAULT_PASSWORD or a prompt)")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Log every command")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics for the run to this file")
	f.BoolVarP(&flags.yes, "yes", "y", false, "Skip the banner")

	cmd.AddCommand(Version())

	return cmd
}

func runDeploy(cmd *cobra.Command, flags *rootFlags) error {
	app := newApp(
		cli.WithOutput(cmd.OutOrStdout()),
		cli.WithLogger(cli.NewLogger(cmd.ErrOrStderr(), flags.verbose)),
	)

	return app.Run(cmd.Context(), cli.Options{
		ConfigPath:    flags.configPath,
		EnvPaths:      flags.envPaths,
		VaultPassword: flags.vaultPassword,
		MetricsFile:   flags.metricsFile,
		SkipBanner:    flags.yes,
		Version:       version,
	})
}
