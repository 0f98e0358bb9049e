package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sosedoff/ansible-vault-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockVaultDecrypter implements the VaultDecrypter interface for testing
type MockVaultDecrypter struct {
	decryptFunc func(content, password string) (string, error)
}

// Decrypt calls the mock function
func (m *MockVaultDecrypter) Decrypt(content, password string) (string, error) {
	return m.decryptFunc(content, password)
}

func TestDefaultVaultDecrypter_RoundTrip(t *testing.T) {
	encrypted, err := vault.Encrypt("PANEL_KEY=ptla_secret\n", "vault-pass")
	require.NoError(t, err)

	decrypted, err := NewVaultDecrypter().Decrypt(encrypted, "vault-pass")
	require.NoError(t, err)
	assert.Equal(t, "PANEL_KEY=ptla_secret\n", decrypted)

	_, err = NewVaultDecrypter().Decrypt(encrypted, "wrong")
	assert.Error(t, err)
}

func TestLoadVaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.vault")
	require.NoError(t, os.WriteFile(path, []byte("encrypted content"), 0600))

	decrypter := &MockVaultDecrypter{
		decryptFunc: func(content, password string) (string, error) {
			assert.Equal(t, "encrypted content", content)
			if password != "correct" {
				return "", errors.New("decryption failed")
			}
			return "decrypted content", nil
		},
	}

	result, err := LoadVaultFile(path, "correct", decrypter)
	require.NoError(t, err)
	assert.Equal(t, "decrypted content", result)

	_, err = LoadVaultFile(path, "wrong", decrypter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestLoadVaultFile_Errors(t *testing.T) {
	decrypter := &MockVaultDecrypter{
		decryptFunc: func(string, string) (string, error) {
			t.Error("Decrypt should not be called")
			return "", nil
		},
	}

	_, err := LoadVaultFile("secrets.vault", "", decrypter)
	assert.ErrorIs(t, err, ErrVaultPasswordRequired)

	_, err = LoadVaultFile(filepath.Join(t.TempDir(), "missing.vault"), "password", decrypter)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
