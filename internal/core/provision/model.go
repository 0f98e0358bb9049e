package provision

import (
	"time"

	"github.com/nickalie/wingship/internal/core/host"
)

// Stage is a state of the per-host provisioning sequence.
type Stage int

const (
	// StagePending is a host whose sequence never started.
	StagePending Stage = iota
	// StageConnecting authenticates the SSH session.
	StageConnecting
	// StageInstalling installs docker and the wings binary.
	StageInstalling
	// StageAwaitingRegistration creates the node on the panel.
	StageAwaitingRegistration
	// StageConfiguring writes the wings configuration and installs certbot.
	StageConfiguring
	// StageSecuringTLS requests the TLS certificate.
	StageSecuringTLS
	// StageLaunching starts wings and waits for it to become ready.
	StageLaunching
	// StageSucceeded is the terminal success state.
	StageSucceeded
)

var stageNames = map[Stage]string{
	StagePending:              "Pending",
	StageConnecting:           "Connecting",
	StageInstalling:           "Installing",
	StageAwaitingRegistration: "AwaitingRegistration",
	StageConfiguring:          "Configuring",
	StageSecuringTLS:          "SecuringTLS",
	StageLaunching:            "Launching",
	StageSucceeded:            "Succeeded",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "Unknown"
}

// StepType represents the type of provisioning step.
type StepType int

const (
	// RunStep executes a remote command.
	RunStep StepType = iota
	// UploadStepType copies a local file to the host.
	UploadStepType
	// RegisterStepType creates the node on the control plane.
	RegisterStepType
)

// Step is a single unit of the provisioning sequence. Run and Upload paths
// are text/template strings rendered against the values captured so far.
type Step struct {
	Stage      Stage
	Name       string
	Run        string
	Upload     *UploadStep
	Register   bool
	Capture    string
	Requires   []string
	UntilReady bool
}

// UploadStep defines a local file copied to the host over SFTP.
type UploadStep struct {
	Local  string
	Remote string
}

// GetType returns the type of step.
func (s *Step) GetType() StepType {
	switch {
	case s.Register:
		return RegisterStepType
	case s.Upload != nil:
		return UploadStepType
	default:
		return RunStep
	}
}

// NodeRequest carries the node definition sent to the control plane.
// Transport constants (scheme, daemon ports) are owned by the panel client.
type NodeRequest struct {
	Name               string
	LocationID         int
	FQDN               string
	Memory             int
	MemoryOverallocate int
	Disk               int
	DiskOverallocate   int
	UploadSize         int
}

// Registration is the node created on the control plane.
type Registration struct {
	ID int
}

// Outcome is the final result of one host's sequence.
type Outcome struct {
	Host     *host.Host
	Stage    Stage
	Err      error
	Started  time.Time
	Finished time.Time
}

// Succeeded reports whether the host reached the terminal success state.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil && o.Stage == StageSucceeded
}

// Duration returns how long the sequence ran.
func (o *Outcome) Duration() time.Duration {
	if o.Started.IsZero() || o.Finished.IsZero() {
		return 0
	}
	return o.Finished.Sub(o.Started)
}
