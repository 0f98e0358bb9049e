package provision

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/juju/clock"

	"github.com/nickalie/wingship/internal/core/host"
)

// DefaultStagger is the delay between successive host starts.
const DefaultStagger = 15 * time.Second

// Scheduler starts one provisioning run per host, each offset from the
// scheduler's start by its index times the stagger interval. A host's start
// depends only on elapsed time, never on another host's progress.
type Scheduler struct {
	runner    Runner
	clock     clock.Clock
	stagger   time.Duration
	onOutcome func(*Outcome)
	log       logr.Logger
}

// SchedulerOption defines functional options for Scheduler
type SchedulerOption func(*Scheduler)

// WithStagger sets the delay between host starts.
func WithStagger(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.stagger = d
	}
}

// WithSchedulerClock sets the clock used for start delays.
func WithSchedulerClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithOutcomeHandler registers fn to receive each outcome as soon as it
// settles. fn is called from the host's goroutine and must be safe for concurrent use.
func WithOutcomeHandler(fn func(*Outcome)) SchedulerOption {
	return func(s *Scheduler) {
		s.onOutcome = fn
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(log logr.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = log
	}
}

// NewScheduler creates a scheduler running hosts through runner.
func NewScheduler(runner Runner, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:  runner,
		clock:   clock.WallClock,
		stagger: DefaultStagger,
		log:     logr.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Deploy provisions every host and returns their outcomes in input order once all have settled.
func (s *Scheduler) Deploy(ctx context.Context, hosts []*host.Host) []*Outcome {
	outcomes := make([]*Outcome, len(hosts))

	var wg sync.WaitGroup
	for i, h := range hosts {
		var timer clock.Timer
		if delay := time.Duration(i) * s.stagger; delay > 0 {
			timer = s.clock.NewTimer(delay)
		}

		wg.Add(1)
		go func(i int, h *host.Host, timer clock.Timer) {
			defer wg.Done()
			outcomes[i] = s.start(ctx, i, h, timer)
			if s.onOutcome != nil {
				s.onOutcome(outcomes[i])
			}
		}(i, h, timer)
	}

	wg.Wait()
	return outcomes
}

func (s *Scheduler) start(ctx context.Context, index int, h *host.Host, timer clock.Timer) *Outcome {
	if timer != nil {
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
		}
	}

	if err := ctx.Err(); err != nil {
		s.log.Info("Deployment cancelled before start", "host", h.Name)
		return &Outcome{
			Host:  h,
			Stage: StagePending,
			Err:   &StepError{Host: h.Name, Stage: StagePending, Cause: err},
		}
	}

	s.log.V(1).Info("Starting host", "host", h.Name, "index", index)
	return s.runner.Run(ctx, h)
}

// Summary counts the outcomes of a deployment.
type Summary struct {
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures.
func Summarize(outcomes []*Outcome) Summary {
	var sum Summary
	for _, o := range outcomes {
		if o != nil && o.Succeeded() {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum
}
