package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"

	"github.com/nickalie/wingship/internal/core/host"
)

const vaultExt = ".vault"

var envPattern = regexp.MustCompile(`\${(\w+)}`)

// Loader defines the interface for loading settings.
type Loader interface {
	Load(path string) (*Settings, error)
}

// DefaultLoader reads JSON, YAML and TOML settings files. A file ending in
// .vault is decrypted first and parsed by the extension before it.
type DefaultLoader struct {
	validator      *validator.Validate
	parsers        map[string]func([]byte, *Settings) error
	vaultDecrypter VaultDecrypter
	vaultPassword  string
}

// LoaderOption defines functional options for DefaultLoader
type LoaderOption func(*DefaultLoader)

// WithVaultPassword sets the password used for encrypted settings files.
func WithVaultPassword(password string) LoaderOption {
	return func(l *DefaultLoader) {
		l.vaultPassword = password
	}
}

// WithVaultDecrypter replaces the Ansible Vault decrypter.
func WithVaultDecrypter(decrypter VaultDecrypter) LoaderOption {
	return func(l *DefaultLoader) {
		l.vaultDecrypter = decrypter
	}
}

// NewLoader creates a new settings loader with default implementations.
func NewLoader(opts ...LoaderOption) Loader {
	loader := &DefaultLoader{
		validator:      validator.New(),
		parsers:        make(map[string]func([]byte, *Settings) error),
		vaultDecrypter: NewVaultDecrypter(),
	}

	loader.parsers[".json"] = parseJSON
	loader.parsers[".yaml"] = parseYAML
	loader.parsers[".yml"] = parseYAML
	loader.parsers[".toml"] = parseTOML

	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

// Load reads, fills in defaults and validates the settings at path.
func (l *DefaultLoader) Load(path string) (*Settings, error) {
	data, ext, err := l.read(path)
	if err != nil {
		return nil, err
	}

	parse, ok := l.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported settings file extension: %s", ext)
	}

	var settings Settings
	if err := parse([]byte(replaceEnvVariables(string(data))), &settings); err != nil {
		return nil, err
	}

	if err := prepare(l.validator, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Prepare fills unset fields of settings with their defaults and validates
// the result. Settings built in code must pass through it before use; Load
// already does.
func Prepare(settings *Settings) error {
	if settings == nil {
		return errors.New("settings are required")
	}
	return prepare(validator.New(), settings)
}

func prepare(validate *validator.Validate, settings *Settings) error {
	settings.applyDefaults()
	return validateSettings(validate, settings)
}

func (l *DefaultLoader) read(path string) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != vaultExt {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read settings file: %w", err)
		}
		return data, ext, nil
	}

	decrypted, err := LoadVaultFile(path, l.vaultPassword, l.vaultDecrypter)
	if err != nil {
		return nil, "", err
	}
	inner := strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	return []byte(decrypted), inner, nil
}

func validateSettings(validate *validator.Validate, settings *Settings) error {
	if err := validate.Struct(settings); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("settings validation failed: %s", formatValidationErrors(validationErrors))
		}
		return fmt.Errorf("settings validation failed: %w", err)
	}

	if settings.Deploy.Stagger < 0 || settings.Deploy.CommandTimeout < 0 || settings.Deploy.RegisterTimeout < 0 {
		return errors.New("settings validation failed: deploy durations must not be negative")
	}

	if len(settings.Hosts) > 0 {
		return ValidateHosts(settings.Hosts)
	}
	return nil
}

// ValidateHosts checks every host and rejects duplicate node names, which the
// panel would otherwise register twice.
func ValidateHosts(hosts []*host.Host) error {
	validate := validator.New()
	seen := make(map[string]bool, len(hosts))

	for i, h := range hosts {
		if h == nil {
			return fmt.Errorf("host %d is empty", i+1)
		}
		if err := validate.Struct(h); err != nil {
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				return fmt.Errorf("host %d is invalid: %s", i+1, formatValidationErrors(validationErrors))
			}
			return fmt.Errorf("host %d is invalid: %w", i+1, err)
		}
		if seen[h.Name] {
			return fmt.Errorf("host %d: node name '%s' is used more than once", i+1, h.Name)
		}
		seen[h.Name] = true
	}
	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(errs validator.ValidationErrors) string {
	errMsgs := make([]string, 0, len(errs))
	for _, err := range errs {
		errMsgs = append(errMsgs, fmt.Sprintf(
			"Field '%s' failed validation: %s (condition: %s)",
			err.Namespace(),
			err.Tag(),
			err.Param(),
		))
	}
	return strings.Join(errMsgs, "\n")
}

func parseJSON(data []byte, settings *Settings) error {
	if err := json.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

func parseYAML(data []byte, settings *Settings) error {
	if err := yaml.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func parseTOML(data []byte, settings *Settings) error {
	if err := toml.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}
	return nil
}

// replaceEnvVariables replaces ${NAME} references with environment values.
func replaceEnvVariables(content string) string {
	return envPattern.ReplaceAllStringFunc(content, func(s string) string {
		return os.Getenv(envPattern.FindStringSubmatch(s)[1])
	})
}
