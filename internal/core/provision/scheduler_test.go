package provision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nickalie/wingship/internal/core/host"
)

// recordingRunner records when each host started and can hold a host until released.
type recordingRunner struct {
	clock   clock.Clock
	mu      sync.Mutex
	started map[string]time.Time
	hold    map[string]chan struct{}
}

func newRecordingRunner(c clock.Clock) *recordingRunner {
	return &recordingRunner{clock: c, started: map[string]time.Time{}, hold: map[string]chan struct{}{}}
}

func (r *recordingRunner) Run(_ context.Context, h *host.Host) *Outcome {
	r.mu.Lock()
	r.started[h.Name] = r.clock.Now()
	wait := r.hold[h.Name]
	r.mu.Unlock()

	if wait != nil {
		<-wait
	}
	return &Outcome{Host: h, Stage: StageSucceeded}
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func (r *recordingRunner) startedAt(name string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started[name]
}

func testHosts(names ...string) []*host.Host {
	hosts := make([]*host.Host, 0, len(names))
	for i, name := range names {
		hosts = append(hosts, &host.Host{
			Address:  "10.0.0." + string(rune('1'+i)),
			Name:     name,
			Hostname: name + ".example.com",
		})
	}
	return hosts
}

func TestScheduler_StaggersStarts(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(epoch)
	runner := newRecordingRunner(clk)

	// the first host stays busy for the whole test; later hosts must start anyway
	release := make(chan struct{})
	runner.hold["a"] = release

	s := NewScheduler(runner, WithSchedulerClock(clk), WithStagger(15*time.Second))
	hosts := testHosts("a", "b", "c")

	done := make(chan []*Outcome, 1)
	go func() { done <- s.Deploy(context.Background(), hosts) }()

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, epoch, runner.startedAt("a"))

	require.NoError(t, clk.WaitAdvance(15*time.Second, time.Second, 2))
	require.Eventually(t, func() bool { return runner.count() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, epoch.Add(15*time.Second), runner.startedAt("b"))

	require.NoError(t, clk.WaitAdvance(15*time.Second, time.Second, 1))
	require.Eventually(t, func() bool { return runner.count() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, epoch.Add(30*time.Second), runner.startedAt("c"))

	close(release)

	select {
	case outcomes := <-done:
		require.Len(t, outcomes, 3)
		for i, o := range outcomes {
			assert.Same(t, hosts[i], o.Host)
			assert.True(t, o.Succeeded())
		}
	case <-time.After(time.Second):
		t.Fatal("deploy did not return")
	}
}

func TestScheduler_NoHosts(t *testing.T) {
	s := NewScheduler(newRecordingRunner(clock.WallClock))
	assert.Empty(t, s.Deploy(context.Background(), nil))
}

func TestScheduler_CancelledBeforeStart(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	runner := newRecordingRunner(clk)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(runner, WithSchedulerClock(clk))

	done := make(chan []*Outcome, 1)
	go func() { done <- s.Deploy(ctx, testHosts("a", "b", "c")) }()

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, time.Millisecond)
	cancel()

	outcomes := <-done
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Succeeded())
	for _, o := range outcomes[1:] {
		assert.Equal(t, StagePending, o.Stage)
		assert.True(t, errors.Is(o.Err, context.Canceled))
	}
	assert.Equal(t, 1, runner.count())
}

func TestScheduler_OutcomeHandler(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	s := NewScheduler(newRecordingRunner(clock.WallClock),
		WithStagger(0),
		WithOutcomeHandler(func(o *Outcome) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, o.Host.Name)
		}),
	)

	s.Deploy(context.Background(), testHosts("a", "b"))
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

// One host's registration failure leaves the other host's run untouched.
func TestScheduler_IndependentHostFailures(t *testing.T) {
	hosts := testHosts("alpha", "beta")
	sessionA := &fakeSession{}
	sessionB := &fakeSession{}

	connector := &MockConnector{}
	connector.On("Connect", mock.Anything, forHost("alpha")).Return(sessionA, nil)
	connector.On("Connect", mock.Anything, forHost("beta")).Return(sessionB, nil)

	registrar := &MockRegistrar{}
	registrar.On("RegisterNode", mock.Anything, forNode("alpha")).
		Return(nil, &APIError{Endpoint: "nodes", Status: 500, Body: "internal error"})
	registrar.On("RegisterNode", mock.Anything, forNode("beta")).
		Return(&Registration{ID: 2}, nil)

	p := newTestProvisioner(t, connector, registrar)
	outcomes := NewScheduler(p, WithStagger(0)).Deploy(context.Background(), hosts)

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Succeeded())
	assert.Equal(t, StageAwaitingRegistration, outcomes[0].Stage)
	assert.True(t, outcomes[1].Succeeded())

	assert.Len(t, sessionA.Commands(), 5)
	assert.Len(t, sessionB.Commands(), 9)
	assert.Contains(t, sessionB.Commands()[5], "--node 2")
	assert.Equal(t, 1, sessionA.Closes())

	assert.Equal(t, Summary{Succeeded: 1, Failed: 1}, Summarize(outcomes))
}

func TestSummarize(t *testing.T) {
	outcomes := []*Outcome{
		{Stage: StageSucceeded},
		{Stage: StageLaunching, Err: errors.New("boom")},
		nil,
	}
	assert.Equal(t, Summary{Succeeded: 1, Failed: 2}, Summarize(outcomes))
}
