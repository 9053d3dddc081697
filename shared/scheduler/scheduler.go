package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"rae-agent/shared/config"
	"rae-agent/shared/logging"
	"rae-agent/shared/monitoring"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Metrics defines the common interface for agent metrics
type Metrics interface {
	// GetSummary returns a human-readable summary of the run
	GetSummary() string
	// Outcomes counts processed items by outcome label
	Outcomes() map[string]int
}

// AgentEvents provides callbacks for monitoring agent execution
type AgentEvents struct {
	OnSuccess         func(metrics Metrics, duration time.Duration)
	OnPartialFailure  func(err error, duration time.Duration)
	OnCriticalFailure func(err error, duration time.Duration)
}

// Agent defines the interface that all agents must implement
type Agent interface {
	Name() string
	RunOnce(ctx context.Context, events *AgentEvents) error
	Initialize() error
}

// Scheduler manages the execution of agents on a schedule
type Scheduler struct {
	config  *config.Config
	monitor *monitoring.Monitor
	agent   Agent
	cron    *cron.Cron
	logger  *zap.Logger
}

func New(cfg *config.Config, agent Agent, logger *zap.Logger) *Scheduler {
	m := monitoring.NewMonitor(agent.Name(), logger, monitoring.NewMetrics(nil))
	cronLogger := cron.PrintfLogger(logging.StdLogger(logger.Named("cron")))

	return &Scheduler{
		config:  cfg,
		monitor: m,
		agent:   agent,
		logger:  logger,
		// Prevent overlapping runs
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Monitor exposes the run monitor
func (s *Scheduler) Monitor() *monitoring.Monitor {
	return s.monitor
}

func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.agent.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Error running scheduled job", zap.String("agent", s.agent.Name()), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	// Start health check server (configurable via config, defaults to 8080)
	healthServer := monitoring.NewHealthServer(s.monitor, strconv.Itoa(s.config.Monitoring.HealthPort), s.logger)
	healthServer.Start()

	s.logger.Info("Scheduler started",
		zap.String("agent", s.agent.Name()),
		zap.String("schedule", s.config.Schedule),
	)
	s.cron.Start()

	// Keep the scheduler running indefinitely until context is cancelled
	<-ctx.Done()
	s.logger.Info("Scheduler stopped", zap.String("agent", s.agent.Name()))
	<-s.cron.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Health server shutdown failed", zap.Error(err))
	}
	return ctx.Err()
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	startTime := time.Now()
	agentName := s.agent.Name()

	s.logger.Info("Starting run", zap.String("agent", agentName))

	// Create event handlers for monitoring
	events := &AgentEvents{
		OnSuccess: func(metrics Metrics, duration time.Duration) {
			s.monitor.RecordSuccess(metrics.GetSummary(), metrics.Outcomes(), duration)
		},
		OnPartialFailure: func(err error, duration time.Duration) {
			s.monitor.RecordPartialFailure(fmt.Errorf("%s partial failure: %w", agentName, err), duration)
		},
		OnCriticalFailure: func(err error, duration time.Duration) {
			s.monitor.RecordCriticalFailure(fmt.Errorf("%s critical failure: %w", agentName, err), duration)
		},
	}

	if err := s.agent.RunOnce(ctx, events); err != nil {
		duration := time.Since(startTime)
		s.monitor.RecordCriticalFailure(fmt.Errorf("%s failed: %w", agentName, err), duration)
		return fmt.Errorf("%s run failed: %w", agentName, err)
	}

	return nil
}
