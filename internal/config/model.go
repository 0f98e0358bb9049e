// Package config loads the settings document describing the panel, the SSH
// login and how wings is installed on every host.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nickalie/wingship/internal/core/host"
	"github.com/nickalie/wingship/internal/core/provision"
)

// SSH authentication types
const (
	AuthSSHKey   = "sshkey"
	AuthPassword = "password"
)

const (
	defaultMemoryOverallocate = 10000
	defaultDiskOverallocate   = 1000
	defaultUploadSize         = 500

	defaultBinaryURL  = "https://github.com/pterodactyl/wings/releases/latest/download/wings_linux_amd64"
	defaultBinaryPath = "/usr/local/bin/wings"
	defaultConfigDir  = "/etc/pterodactyl"

	defaultCommandTimeout  = 30 * time.Minute
	defaultRegisterTimeout = 30 * time.Second
)

// Settings is the whole settings document.
type Settings struct {
	SSHAuth      SSHAuth      `yaml:"ssh_auth" json:"ssh_auth" toml:"ssh_auth"`
	Pterodactyl  Pterodactyl  `yaml:"pterodactyl" json:"pterodactyl" toml:"pterodactyl"`
	CertbotEmail string       `yaml:"certbot_email" json:"certbot_email" toml:"certbot_email" validate:"required,email"`
	Wings        Wings        `yaml:"wings" json:"wings" toml:"wings"`
	Deploy       Deploy       `yaml:"deploy" json:"deploy" toml:"deploy"`
	Hosts        []*host.Host `yaml:"hosts" json:"hosts" toml:"hosts" validate:"omitempty,dive"`
}

// SSHAuth is the login shared by every host.
type SSHAuth struct {
	Type       string `yaml:"type" json:"type" toml:"type" validate:"required,oneof=sshkey password"`
	User       string `yaml:"user" json:"user" toml:"user" validate:"required"`
	Port       int    `yaml:"port" json:"port" toml:"port" validate:"omitempty,min=1,max=65535"`
	SSHKeyPath string `yaml:"sshkey_path" json:"sshkey_path" toml:"sshkey_path" validate:"required_if=Type sshkey"`
	Password   string `yaml:"password" json:"password" toml:"password" validate:"required_if=Type password"`
}

// Pterodactyl points at the panel nodes are registered with.
type Pterodactyl struct {
	URL  string `yaml:"url" json:"url" toml:"url" validate:"required,url"`
	Key  string `yaml:"key" json:"key" toml:"key" validate:"required"`
	Node Node   `yaml:"node" json:"node" toml:"node"`
}

// Node holds the resources every registered node is created with.
type Node struct {
	LocationID         int `yaml:"locationId" json:"locationId" toml:"locationId" validate:"required,min=1"`
	Memory             int `yaml:"memory" json:"memory" toml:"memory" validate:"required,min=1"`
	Disk               int `yaml:"disk" json:"disk" toml:"disk" validate:"required,min=1"`
	MemoryOverallocate int `yaml:"memory_overallocate" json:"memory_overallocate" toml:"memory_overallocate"`
	DiskOverallocate   int `yaml:"disk_overallocate" json:"disk_overallocate" toml:"disk_overallocate"`
	UploadSize         int `yaml:"upload_size" json:"upload_size" toml:"upload_size" validate:"min=0"`
}

// Wings describes where the daemon binary comes from and where it is installed.
// When LocalBinary is set the file is uploaded instead of downloaded on the host.
type Wings struct {
	BinaryURL   string `yaml:"binary_url" json:"binary_url" toml:"binary_url" validate:"omitempty,url"`
	BinaryPath  string `yaml:"binary_path" json:"binary_path" toml:"binary_path"`
	LocalBinary string `yaml:"local_binary" json:"local_binary" toml:"local_binary"`
	ConfigDir   string `yaml:"config_dir" json:"config_dir" toml:"config_dir"`
}

// Deploy tunes scheduling and time limits.
type Deploy struct {
	Stagger         Duration `yaml:"stagger" json:"stagger" toml:"stagger"`
	CommandTimeout  Duration `yaml:"command_timeout" json:"command_timeout" toml:"command_timeout"`
	RegisterTimeout Duration `yaml:"register_timeout" json:"register_timeout" toml:"register_timeout"`
}

// Duration is a time.Duration written as a string such as "15s" or "30m".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(text))
}

// applyDefaults fills every optional field left empty.
func (s *Settings) applyDefaults() {
	node := &s.Pterodactyl.Node
	if node.MemoryOverallocate == 0 {
		node.MemoryOverallocate = defaultMemoryOverallocate
	}
	if node.DiskOverallocate == 0 {
		node.DiskOverallocate = defaultDiskOverallocate
	}
	if node.UploadSize == 0 {
		node.UploadSize = defaultUploadSize
	}

	if s.Wings.BinaryURL == "" {
		s.Wings.BinaryURL = defaultBinaryURL
	}
	if s.Wings.BinaryPath == "" {
		s.Wings.BinaryPath = defaultBinaryPath
	}
	if s.Wings.ConfigDir == "" {
		s.Wings.ConfigDir = defaultConfigDir
	}

	if s.Deploy.Stagger == 0 {
		s.Deploy.Stagger = Duration(provision.DefaultStagger)
	}
	if s.Deploy.CommandTimeout == 0 {
		s.Deploy.CommandTimeout = Duration(defaultCommandTimeout)
	}
	if s.Deploy.RegisterTimeout == 0 {
		s.Deploy.RegisterTimeout = Duration(defaultRegisterTimeout)
	}
}

// Credential returns the SSH login. The password doubles as the sudo
// password and as the passphrase of an encrypted key.
func (s *Settings) Credential() host.Credential {
	cred := host.Credential{
		User:     s.SSHAuth.User,
		Port:     s.SSHAuth.Port,
		Password: s.SSHAuth.Password,
	}
	if s.SSHAuth.Type == AuthSSHKey {
		cred.PrivateKey = s.SSHAuth.SSHKeyPath
	}
	return cred
}

// NodeTemplate returns the registration fields shared by every host.
func (s *Settings) NodeTemplate() provision.NodeRequest {
	node := s.Pterodactyl.Node
	return provision.NodeRequest{
		LocationID:         node.LocationID,
		Memory:             node.Memory,
		MemoryOverallocate: node.MemoryOverallocate,
		Disk:               node.Disk,
		DiskOverallocate:   node.DiskOverallocate,
		UploadSize:         node.UploadSize,
	}
}

// PanelURL returns the panel base URL without a trailing slash.
func (s *Settings) PanelURL() string {
	return strings.TrimRight(s.Pterodactyl.URL, "/")
}

// TemplateValues returns the values the provisioning commands are rendered with.
func (s *Settings) TemplateValues() map[string]string {
	values := map[string]string{
		provision.KeyPanelURL:   s.PanelURL(),
		provision.KeyAPIKey:     s.Pterodactyl.Key,
		provision.KeyEmail:      s.CertbotEmail,
		provision.KeyConfigDir:  s.Wings.ConfigDir,
		provision.KeyBinaryURL:  s.Wings.BinaryURL,
		provision.KeyBinaryPath: s.Wings.BinaryPath,
	}
	if s.Wings.LocalBinary != "" {
		values[provision.KeyLocalBinary] = s.Wings.LocalBinary
	}
	return values
}

// PlanOptions returns the sequence variant selected by the settings.
func (s *Settings) PlanOptions() provision.PlanOptions {
	return provision.PlanOptions{UploadBinary: s.Wings.LocalBinary != ""}
}
