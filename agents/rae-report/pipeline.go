package raereport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rae-agent/agents/rae-report/welldata"
	"rae-agent/internal/models"
	"rae-agent/shared/config"
)

// WellDataAPI is the part of the WellData client a pipeline run drives
type WellDataAPI interface {
	Authenticate(ctx context.Context) error
	ListJobs(ctx context.Context, status string, take, maxPages int) ([]models.Job, error)
	RealTimeSupported(ctx context.Context, jobID string) (bool, error)
	ResolveChannels(ctx context.Context, jobID string) ([]models.ChannelSelection, error)
	FetchSnapshot(ctx context.Context, jobID string, selections []models.ChannelSelection, from, to time.Time, interval float64) (welldata.TimeData, error)
	FetchDailyReport(ctx context.Context, jobID string, run *models.RunResult) (models.DailyReport, error)
}

// Reasons recorded on degraded rows
const (
	DegradedNoChannels    = "no recognized channels"
	DegradedNoTimeRecords = "no time records"
)

// Pipeline turns the selected jobs into well rows, one job at a time
type Pipeline struct {
	api    WellDataAPI
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewPipeline(api WellDataAPI, cfg *config.Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		api:    api,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run authenticates, selects jobs and processes them in order. Errors before
// the job loop are returned. Inside the loop, request failures degrade the
// job's row and any other error stops the loop; RunResult.Aborted holds it
// and the rows gathered so far are kept.
func (p *Pipeline) Run(ctx context.Context) (*models.RunResult, error) {
	run := &models.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
	}
	logger := p.logger.With(zap.String("run_id", run.RunID))

	if err := p.api.Authenticate(ctx); err != nil {
		return run, fmt.Errorf("authenticate: %w", err)
	}

	from, to, err := p.cfg.Telemetry.Window(run.StartedAt)
	if err != nil {
		return run, fmt.Errorf("telemetry window: %w", err)
	}

	wd := p.cfg.WellData
	jobs, err := p.api.ListJobs(ctx, wd.JobStatus, wd.Take, wd.MaxPages)
	if err != nil {
		return run, fmt.Errorf("list jobs: %w", err)
	}

	sel := welldata.SelectJobs(jobs, p.cfg.RAE)
	run.SelectionMode = sel.Mode
	run.Jobs = sel.Jobs
	run.NotFound = sel.NotFound
	logger.Info("Selected jobs",
		zap.String("mode", sel.Mode),
		zap.Int("listed", len(jobs)),
		zap.Int("selected", len(sel.Jobs)),
		zap.Strings("not_found", sel.NotFound),
	)

	for i, job := range sel.Jobs {
		jobLogger := logger.With(
			zap.String("job_id", job.ID),
			zap.String("rig", job.LookupKey()),
			zap.Int("index", i),
		)

		row, err := p.processJob(ctx, job, from, to, run)
		if err == nil {
			run.Rows = append(run.Rows, row)
			continue
		}

		if errors.Is(err, welldata.ErrRequestFailed) {
			jobLogger.Warn("Job degraded after request failure", zap.Error(err))
			degraded := models.NewWellRow(job)
			degraded.RealTime = row.RealTime
			degraded.Degraded = true
			degraded.DegradedBy = err.Error()
			run.Rows = append(run.Rows, degraded)
			continue
		}

		jobLogger.Error("Aborting job loop", zap.Error(err))
		run.Aborted = fmt.Errorf("job %s: %w", job.ID, err)
		break
	}

	logger.Info("Pipeline finished",
		zap.Int("rows", len(run.Rows)),
		zap.Int("degraded", run.DegradedRows()),
		zap.Int("zero_report_jobs", len(run.ZeroReportJobs)),
		zap.Int("unrecognized_reports", len(run.UnrecognizedReports)),
		zap.Bool("aborted", run.Aborted != nil),
	)
	return run, nil
}

func (p *Pipeline) processJob(ctx context.Context, job models.Job, from, to time.Time, run *models.RunResult) (models.WellRow, error) {
	if err := ctx.Err(); err != nil {
		return models.WellRow{}, err
	}
	row := models.NewWellRow(job)

	realTime, err := p.api.RealTimeSupported(ctx, job.ID)
	switch {
	case err == nil:
		row.RealTime = realTime
	case errors.Is(err, welldata.ErrRequestFailed):
		p.logger.Debug("Capabilities unavailable", zap.String("job_id", job.ID), zap.Error(err))
	default:
		return row, err
	}

	selections, err := p.api.ResolveChannels(ctx, job.ID)
	if err != nil {
		return row, err
	}
	if len(selections) == 0 {
		row.Degraded = true
		row.DegradedBy = DegradedNoChannels
		return row, nil
	}

	data, err := p.api.FetchSnapshot(ctx, job.ID, selections, from, to, p.cfg.Telemetry.Interval)
	if err != nil {
		return row, err
	}
	run.TimeBasedPulls = append(run.TimeBasedPulls, models.TimeBasedPull{JobID: job.ID, Raw: string(data.Raw)})
	if data.Empty() {
		row.Degraded = true
		row.DegradedBy = DegradedNoTimeRecords
		return row, nil
	}
	row.Channels = Classify(data.Snapshot)

	report, err := p.api.FetchDailyReport(ctx, job.ID, run)
	if err != nil {
		return row, err
	}
	row.Report = report
	return row, nil
}
