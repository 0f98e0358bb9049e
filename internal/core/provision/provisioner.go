package provision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/juju/clock"

	"github.com/nickalie/wingship/internal/core/host"
)

// Provisioner runs the ordered provisioning sequence for one host at a time.
// It holds only read-only configuration and may be shared by concurrent runs.
type Provisioner struct {
	connector       Connector
	registrar       Registrar
	steps           []*Step
	values          map[string]string
	node            NodeRequest
	commandTimeout  time.Duration
	registerTimeout time.Duration
	clock           clock.Clock
	log             logr.Logger
}

// ProvisionerOption defines functional options for Provisioner
type ProvisionerOption func(*Provisioner)

// WithSteps replaces the default sequence.
func WithSteps(steps []*Step) ProvisionerOption {
	return func(p *Provisioner) {
		p.steps = steps
	}
}

// WithValues sets template values shared by every host, such as the panel URL and API key.
func WithValues(values map[string]string) ProvisionerOption {
	return func(p *Provisioner) {
		for k, v := range values {
			p.values[k] = v
		}
	}
}

// WithNodeTemplate sets the resource and location fields of every registration.
func WithNodeTemplate(node NodeRequest) ProvisionerOption {
	return func(p *Provisioner) {
		p.node = node
	}
}

// WithCommandTimeout bounds each remote command and upload. Zero disables the limit.
func WithCommandTimeout(d time.Duration) ProvisionerOption {
	return func(p *Provisioner) {
		p.commandTimeout = d
	}
}

// WithRegisterTimeout bounds the control plane call. Zero disables the limit.
func WithRegisterTimeout(d time.Duration) ProvisionerOption {
	return func(p *Provisioner) {
		p.registerTimeout = d
	}
}

// WithClock sets the clock used to timestamp outcomes.
func WithClock(c clock.Clock) ProvisionerOption {
	return func(p *Provisioner) {
		p.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) ProvisionerOption {
	return func(p *Provisioner) {
		p.log = log
	}
}

// NewProvisioner creates a provisioner. The sequence is validated up front so
// that no host runs a step referencing a value that is never captured.
func NewProvisioner(connector Connector, registrar Registrar, opts ...ProvisionerOption) (*Provisioner, error) {
	p := &Provisioner{
		connector: connector,
		registrar: registrar,
		steps:     DefaultPlan(PlanOptions{}),
		values:    map[string]string{},
		clock:     clock.WallClock,
		log:       logr.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := ValidatePlan(p.steps); err != nil {
		return nil, fmt.Errorf("invalid provisioning plan: %w", err)
	}

	return p, nil
}

// Run provisions h and returns its outcome. The session is closed on every path.
func (p *Provisioner) Run(ctx context.Context, h *host.Host) *Outcome {
	log := p.log.WithValues("host", h.Name, "address", h.Address)
	outcome := &Outcome{Host: h, Stage: StageConnecting, Started: p.clock.Now()}
	defer func() { outcome.Finished = p.clock.Now() }()

	log.Info("Connecting")
	session, err := p.connector.Connect(ctx, h)
	if err != nil {
		outcome.Err = &StepError{Host: h.Name, Stage: StageConnecting, Cause: err}
		log.Error(err, "Connection failed")
		return outcome
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.V(1).Info("Closing session", "err", err)
		}
	}()
	log.Info("Connected")

	values := p.hostValues(h)
	for i, step := range p.steps {
		if step.Stage != outcome.Stage {
			log.Info("Entering stage", "stage", step.Stage.String())
		}
		outcome.Stage = step.Stage

		log.V(1).Info("Running step", "step", i+1, "total", len(p.steps), "name", step.Name)
		if err := p.executeStep(ctx, session, h, step, values, log); err != nil {
			outcome.Err = &StepError{
				Host:     h.Name,
				Stage:    step.Stage,
				StepNum:  i + 1,
				TotalNum: len(p.steps),
				Step:     step.Name,
				Cause:    err,
			}
			log.Error(err, "Provisioning failed", "stage", step.Stage.String(), "step", step.Name)
			return outcome
		}
	}

	outcome.Stage = StageSucceeded
	log.Info("Wings is set up and online")
	return outcome
}

func (p *Provisioner) hostValues(h *host.Host) map[string]string {
	values := make(map[string]string, len(p.values)+3)
	for k, v := range p.values {
		values[k] = v
	}
	values[KeyAddress] = h.Address
	values[KeyName] = h.Name
	values[KeyHostname] = h.Hostname
	return values
}

func (p *Provisioner) executeStep(ctx context.Context, session Session, h *host.Host, step *Step, values map[string]string, log logr.Logger) error {
	for _, key := range step.Requires {
		if _, ok := values[key]; !ok {
			return fmt.Errorf("required value '%s' has not been captured", key)
		}
	}

	switch step.GetType() {
	case RegisterStepType:
		return p.register(ctx, h, step, values, log)
	case UploadStepType:
		return p.upload(ctx, session, step, values)
	default:
		command, err := render(step.Name, step.Run, values)
		if err != nil {
			return err
		}
		err = withTimeout(ctx, p.commandTimeout, step.Name, func(ctx context.Context) error {
			return session.Run(ctx, command, step.UntilReady)
		})

		// rendered commands may carry the API key; report the template instead
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			cmdErr.Command = step.Run
		}
		return err
	}
}

func (p *Provisioner) upload(ctx context.Context, session Session, step *Step, values map[string]string) error {
	local, err := render(step.Name, step.Upload.Local, values)
	if err != nil {
		return err
	}
	remote, err := render(step.Name, step.Upload.Remote, values)
	if err != nil {
		return err
	}
	return withTimeout(ctx, p.commandTimeout, step.Name, func(ctx context.Context) error {
		return session.Upload(ctx, local, remote)
	})
}

func (p *Provisioner) register(ctx context.Context, h *host.Host, step *Step, values map[string]string, log logr.Logger) error {
	if _, exists := values[step.Capture]; exists {
		return fmt.Errorf("value '%s' is already captured", step.Capture)
	}

	req := p.node
	req.Name = h.Name
	req.FQDN = h.Hostname

	log.Info("Creating node on panel")
	var reg *Registration
	err := withTimeout(ctx, p.registerTimeout, step.Name, func(ctx context.Context) error {
		var err error
		reg, err = p.registrar.RegisterNode(ctx, &req)
		return err
	})
	if err != nil {
		return err
	}
	if reg == nil {
		return errors.New("panel returned no registration")
	}

	values[step.Capture] = strconv.Itoa(reg.ID)
	log.Info("Node created on panel", "node", reg.ID)
	return nil
}

// withTimeout runs fn under limit and reports an expired limit as a TimeoutError.
func withTimeout(ctx context.Context, limit time.Duration, operation string, fn func(context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := fn(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Operation: operation, Limit: limit, Cause: err}
	}
	return err
}
