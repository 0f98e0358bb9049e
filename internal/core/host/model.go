// Package host defines the machines being provisioned and the credential used to reach them.
package host

import "fmt"

// Host describes one target machine. It is supplied by the operator before
// provisioning starts and is never modified afterwards.
type Host struct {
	Address  string `yaml:"address" json:"address" toml:"address" validate:"required,ip|hostname"`
	Name     string `yaml:"name" json:"name" toml:"name" validate:"required"`
	Hostname string `yaml:"hostname" json:"hostname" toml:"hostname" validate:"required,fqdn"`
}

// String renders the host as "name (address)".
func (h *Host) String() string {
	return fmt.Sprintf("%s (%s)", h.Name, h.Address)
}

// Credential holds the SSH login shared by every host of a run.
type Credential struct {
	User       string
	Port       int
	Password   string
	PrivateKey string
}

// GetPort returns the SSH port to use, defaulting to 22 if not specified.
func (c *Credential) GetPort() int {
	if c.Port == 0 {
		return 22
	}
	return c.Port
}

// UsesKey reports whether the credential authenticates with a private key file.
func (c *Credential) UsesKey() bool {
	return c.PrivateKey != ""
}

// Secret returns the value written back when a remote command asks for a sudo password.
func (c *Credential) Secret() string {
	return c.Password
}
