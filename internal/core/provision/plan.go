package provision

import (
	"fmt"
	"strings"
	"text/template"
)

// Template keys available to every step. Values captured by register steps
// are added under their Capture name.
const (
	KeyAddress     = "Address"
	KeyName        = "Name"
	KeyHostname    = "Hostname"
	KeyPanelURL    = "PanelURL"
	KeyAPIKey      = "APIKey"
	KeyEmail       = "Email"
	KeyConfigDir   = "ConfigDir"
	KeyBinaryURL   = "BinaryURL"
	KeyBinaryPath  = "BinaryPath"
	KeyLocalBinary = "LocalBinary"
	KeyNodeID      = "NodeID"
)

// Plan builds an ordered provisioning sequence using a fluent interface.
type Plan struct {
	steps []*Step
	stage Stage
}

// NewPlan creates an empty plan whose steps start in the Installing stage.
func NewPlan() *Plan {
	return &Plan{stage: StageInstalling}
}

// In sets the stage of the steps added after it.
func (p *Plan) In(stage Stage) *Plan {
	p.stage = stage
	return p
}

// AddStep appends a step as-is.
func (p *Plan) AddStep(step *Step) *Plan {
	p.steps = append(p.steps, step)
	return p
}

// Run adds a command step. requires names the captured values the command references.
func (p *Plan) Run(name, command string, requires ...string) *Plan {
	return p.AddStep(&Step{Stage: p.stage, Name: name, Run: command, Requires: requires})
}

// RunUntilReady adds a foreground command that completes on the readiness marker.
func (p *Plan) RunUntilReady(name, command string) *Plan {
	return p.AddStep(&Step{Stage: p.stage, Name: name, Run: command, UntilReady: true})
}

// Upload adds a local file copy.
func (p *Plan) Upload(name, local, remote string) *Plan {
	return p.AddStep(&Step{Stage: p.stage, Name: name, Upload: &UploadStep{Local: local, Remote: remote}})
}

// Register adds the control plane call, storing the node id under capture.
func (p *Plan) Register(capture string) *Plan {
	return p.AddStep(&Step{Stage: StageAwaitingRegistration, Name: "register node", Register: true, Capture: capture})
}

// Steps returns the built sequence.
func (p *Plan) Steps() []*Step {
	return p.steps
}

// PlanOptions selects variations of the default sequence.
type PlanOptions struct {
	// UploadBinary copies a locally built wings binary instead of downloading a release.
	UploadBinary bool
}

const uploadStaging = "/tmp/wings"

// DefaultPlan returns the wings installation sequence.
func DefaultPlan(opts PlanOptions) []*Step {
	p := NewPlan().In(StageInstalling).
		Run("install docker", "sudo curl -sSL https://get.docker.com/ | CHANNEL=stable bash").
		Run("enable docker", "sudo systemctl enable --now docker").
		Run("create config directory", "sudo mkdir -p {{quote .ConfigDir}}")

	if opts.UploadBinary {
		p.Upload("upload wings", "{{.LocalBinary}}", uploadStaging).
			Run("install wings", "sudo mv "+uploadStaging+" {{quote .BinaryPath}}")
	} else {
		p.Run("download wings", "sudo curl -L -o {{quote .BinaryPath}} {{quote .BinaryURL}}")
	}

	p.Run("make wings executable", "sudo chmod u+x {{quote .BinaryPath}}").
		Register(KeyNodeID).
		In(StageConfiguring).
		Run("configure wings",
			"cd {{quote .ConfigDir}} && sudo {{quote .BinaryPath}} configure --panel-url {{quote .PanelURL}} --token {{quote .APIKey}} --node {{.NodeID}}",
			KeyNodeID).
		Run("install certbot", "sudo apt install certbot -y").
		In(StageSecuringTLS).
		Run("issue certificate",
			"sudo certbot certonly --agree-tos --non-interactive --email {{quote .Email}} --standalone -d {{quote .Hostname}}").
		In(StageLaunching).
		RunUntilReady("start wings", "cd {{quote .ConfigDir}} && sudo {{quote .BinaryPath}}")

	return p.Steps()
}

// ValidatePlan checks that every required value is captured by an earlier step.
func ValidatePlan(steps []*Step) error {
	captured := map[string]bool{}
	for i, step := range steps {
		for _, key := range step.Requires {
			if !captured[key] {
				return fmt.Errorf("step %d (%s) requires '%s' before it is captured", i+1, step.Name, key)
			}
		}
		if step.Register {
			if step.Capture == "" {
				return fmt.Errorf("step %d (%s) registers a node without a capture name", i+1, step.Name)
			}
			captured[step.Capture] = true
		}
	}
	return nil
}

var templateFuncs = template.FuncMap{
	"quote": ShellQuote,
}

// render expands a step template. Unknown keys are an error.
func render(name, text string, values map[string]string) (string, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, values); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return sb.String(), nil
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
