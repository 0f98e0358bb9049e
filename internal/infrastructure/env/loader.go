// Package env loads environment variables from .env files and Ansible Vault
// encrypted env files, so that settings can reference secrets as ${NAME}.
package env

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/nickalie/wingship/internal/config"
)

const vaultPasswordEnv = "VAULT_PASSWORD"

// PasswordPrompt asks the operator for the vault password.
type PasswordPrompt func() (string, error)

// Loader defines the interface for loading environment variables.
type Loader interface {
	Load(vaultPassword string, paths ...string) error
	ResolveVaultPassword(password string) (string, error)
}

// DefaultLoader implements the Loader interface using godotenv.
type DefaultLoader struct {
	vaultDecrypter config.VaultDecrypter
	prompt         PasswordPrompt
}

// LoaderOption defines functional options for DefaultLoader
type LoaderOption func(*DefaultLoader)

// WithVaultDecrypter replaces the Ansible Vault decrypter.
func WithVaultDecrypter(decrypter config.VaultDecrypter) LoaderOption {
	return func(l *DefaultLoader) {
		l.vaultDecrypter = decrypter
	}
}

// WithPasswordPrompt replaces the terminal password prompt.
func WithPasswordPrompt(prompt PasswordPrompt) LoaderOption {
	return func(l *DefaultLoader) {
		l.prompt = prompt
	}
}

// NewLoader creates a new environment loader with default implementations.
func NewLoader(opts ...LoaderOption) Loader {
	l := &DefaultLoader{
		vaultDecrypter: config.NewVaultDecrypter(),
		prompt:         terminalPrompt(os.Stdin, os.Stderr),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads each file in order. Variables already set in the process
// environment are not overridden by plain .env files. The vault password is
// resolved at most once, and only if a .vault file is present.
func (l *DefaultLoader) Load(vaultPassword string, paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}

		if !strings.HasSuffix(path, ".vault") {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", path, err)
			}
			continue
		}

		password, err := l.ResolveVaultPassword(vaultPassword)
		if err != nil {
			return err
		}
		vaultPassword = password

		if err := l.loadVaultFile(path, password); err != nil {
			return err
		}
	}
	return nil
}

// loadVaultFile loads environment variables from an Ansible Vault encrypted file.
func (l *DefaultLoader) loadVaultFile(path, password string) error {
	decrypted, err := config.LoadVaultFile(path, password, l.vaultDecrypter)
	if err != nil {
		return err
	}
	return setEnvironmentVariables(decrypted)
}

// ResolveVaultPassword picks the password given directly, then VAULT_PASSWORD,
// then asks the operator.
func (l *DefaultLoader) ResolveVaultPassword(password string) (string, error) {
	if password != "" {
		return password, nil
	}

	if envPwd := os.Getenv(vaultPasswordEnv); envPwd != "" {
		return envPwd, nil
	}

	promptedPwd, err := l.prompt()
	if err != nil {
		return "", fmt.Errorf("failed to get vault password: %w", err)
	}
	return promptedPwd, nil
}

// setEnvironmentVariables parses and sets environment variables from decrypted content
func setEnvironmentVariables(decrypted string) error {
	envMap, err := godotenv.Unmarshal(decrypted)
	if err != nil {
		return fmt.Errorf("environment unmarshaling failed: %w", err)
	}

	for k, v := range envMap {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to set environment variable %s: %w", k, err)
		}
	}

	return nil
}

// terminalPrompt reads the password without echo when in is a terminal and
// falls back to reading a line otherwise.
func terminalPrompt(in *os.File, out io.Writer) PasswordPrompt {
	return func() (string, error) {
		fmt.Fprint(out, "Enter vault password: ")

		if fd := int(in.Fd()); term.IsTerminal(fd) {
			password, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return string(password), nil
		}

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}
}
