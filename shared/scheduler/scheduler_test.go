package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"rae-agent/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubMetrics struct{}

func (stubMetrics) GetSummary() string       { return "3 rows" }
func (stubMetrics) Outcomes() map[string]int { return map[string]int{"ok": 3} }

type stubAgent struct {
	err     error
	partial error
	calls   int
}

func (a *stubAgent) Name() string      { return "stub" }
func (a *stubAgent) Initialize() error { return nil }

func (a *stubAgent) RunOnce(ctx context.Context, events *AgentEvents) error {
	a.calls++
	if a.err != nil {
		events.OnCriticalFailure(a.err, time.Millisecond)
		return a.err
	}
	if a.partial != nil {
		events.OnPartialFailure(a.partial, time.Millisecond)
	}
	events.OnSuccess(stubMetrics{}, time.Millisecond)
	return nil
}

func TestRunOnceSuccess(t *testing.T) {
	agent := &stubAgent{}
	s := New(&config.Config{Schedule: "0 20 6 * * *"}, agent, zap.NewNop())

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, agent.calls)
	assert.True(t, s.Monitor().IsHealthy())
	assert.Contains(t, s.Monitor().GetStatusSummary(), "3 rows")
}

func TestRunOncePartialFailureStaysHealthy(t *testing.T) {
	agent := &stubAgent{partial: errors.New("email failed")}
	s := New(&config.Config{}, agent, zap.NewNop())

	require.NoError(t, s.RunOnce(context.Background()))
	assert.True(t, s.Monitor().IsHealthy())
}

func TestRunOnceFailure(t *testing.T) {
	agent := &stubAgent{err: errors.New("auth failed")}
	s := New(&config.Config{}, agent, zap.NewNop())

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.err)
	assert.False(t, s.Monitor().IsHealthy())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := &config.Config{Schedule: "not a schedule"}
	cfg.Monitoring.HealthPort = 0
	s := New(cfg, &stubAgent{}, zap.NewNop())

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add cron job")
}
