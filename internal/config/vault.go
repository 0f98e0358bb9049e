package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sosedoff/ansible-vault-go"
)

// ErrVaultPasswordRequired is returned when an encrypted file is read without a password.
var ErrVaultPasswordRequired = errors.New("vault password is required")

// VaultDecrypter defines the interface for decrypting Ansible Vault
// encrypted content.
type VaultDecrypter interface {
	Decrypt(content, password string) (string, error)
}

// DefaultVaultDecrypter implements VaultDecrypter using ansible-vault-go.
type DefaultVaultDecrypter struct{}

// NewVaultDecrypter creates a new instance of the default vault decrypter.
func NewVaultDecrypter() VaultDecrypter {
	return &DefaultVaultDecrypter{}
}

// Decrypt decrypts content encrypted with Ansible Vault.
func (d *DefaultVaultDecrypter) Decrypt(content, password string) (string, error) {
	return vault.Decrypt(content, password)
}

// LoadVaultFile reads and decrypts an Ansible Vault file. Both env files and
// settings files may be stored this way.
func LoadVaultFile(path, password string, decrypter VaultDecrypter) (string, error) {
	if password == "" {
		return "", ErrVaultPasswordRequired
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read vault file %s: %w", path, err)
	}

	decrypted, err := decrypter.Decrypt(string(data), password)
	if err != nil {
		return "", fmt.Errorf("vault decryption of %s failed: %w", path, err)
	}

	return decrypted, nil
}
