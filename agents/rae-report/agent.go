package raereport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rae-agent/agents/rae-report/welldata"
	"rae-agent/internal/models"
	"rae-agent/shared/ai"
	"rae-agent/shared/config"
	"rae-agent/shared/email"
	"rae-agent/shared/scheduler"
	"rae-agent/shared/storage"
)

// Outcome labels reported to the metrics endpoint
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeNotFound = "not_found"
)

// RAEMetrics represents the metrics collected during one RAE run
type RAEMetrics struct {
	Rows       int    `json:"rows"`
	Degraded   int    `json:"degraded"`
	NoReport   int    `json:"no_report"`
	NotFound   int    `json:"not_found"`
	Aborted    bool   `json:"aborted"`
	EmailsSent bool   `json:"emails_sent"`
	Workbook   string `json:"workbook"`
}

// GetSummary implements the scheduler.Metrics interface
func (m RAEMetrics) GetSummary() string {
	summary := fmt.Sprintf("%d rows (%d degraded, %d without report)", m.Rows, m.Degraded, m.NoReport)
	if m.NotFound > 0 {
		summary += fmt.Sprintf(", %d filters not found", m.NotFound)
	}
	if m.Aborted {
		summary += ", stopped early"
	}
	if !m.EmailsSent {
		summary += ", no email sent"
	}
	return summary
}

// Outcomes implements the scheduler.Metrics interface
func (m RAEMetrics) Outcomes() map[string]int {
	return map[string]int{
		OutcomeOK:       m.Rows - m.Degraded,
		OutcomeDegraded: m.Degraded,
		OutcomeNotFound: m.NotFound,
	}
}

type mailer interface {
	SendToRecipients(subject string, body func(recipient string) string, attachment *email.Attachment) error
	SendError(subject string, cause error) error
}

type digester interface {
	Digest(ctx context.Context, run *models.RunResult) (string, error)
}

// RAEAgent implements the scheduler.Agent interface
type RAEAgent struct {
	config   *config.Config
	logger   *zap.Logger
	api      WellDataAPI
	pipeline *Pipeline
	mailer   mailer
	archive  *storage.Archive
	digester digester
}

func NewRAEAgent(cfg *config.Config, logger *zap.Logger) *RAEAgent {
	return &RAEAgent{
		config: cfg,
		logger: logger,
	}
}

func (a *RAEAgent) Name() string {
	return "RAE Report"
}

func (a *RAEAgent) Initialize() error {
	a.logger.Info("Initializing agent", zap.String("agent", a.Name()))

	if a.api == nil {
		a.api = welldata.NewClient(a.config.WellData, a.logger.Named("welldata"))
		a.logger.Info("WellData client initialized", zap.String("api_url", a.config.WellData.APIURL))
	}

	if a.pipeline == nil {
		a.pipeline = NewPipeline(a.api, a.config, a.logger.Named("pipeline"))
	}

	if a.mailer == nil {
		a.mailer = email.NewSender(&a.config.Email, a.logger.Named("email"))
		a.logger.Info("Email sender initialized", zap.Int("recipients", len(a.config.Email.Recipients)))
	}

	if a.archive == nil {
		archive, err := storage.NewArchive(a.config.RAE.OutputDir, a.config.RAE.ArchiveIndex, a.config.RAE.Retention)
		if err != nil {
			return fmt.Errorf("failed to create workbook archive: %w", err)
		}
		a.archive = archive
		a.cleanupArchive()
	}

	if a.digester == nil && a.config.AI.GeminiAPIKey != "" {
		d, err := ai.NewDigester(context.Background(), &a.config.AI)
		if err != nil {
			return fmt.Errorf("failed to create run digester: %w", err)
		}
		a.digester = d
		a.logger.Info("Run digest enabled", zap.String("model", a.config.AI.Model))
	}

	return nil
}

func (a *RAEAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()
	metrics := RAEMetrics{}

	critical := func(err error) error {
		if events != nil && events.OnCriticalFailure != nil {
			events.OnCriticalFailure(err, time.Since(startTime))
		}
		a.notifyError(err)
		return err
	}
	partial := func(err error) {
		a.logger.Warn("Partial failure", zap.Error(err))
		if events != nil && events.OnPartialFailure != nil {
			events.OnPartialFailure(err, time.Since(startTime))
		}
	}

	run, err := a.pipeline.Run(ctx)
	if err != nil {
		return critical(fmt.Errorf("pipeline failed: %w", err))
	}
	metrics.Rows = len(run.Rows)
	metrics.Degraded = run.DegradedRows()
	metrics.NotFound = len(run.NotFound)
	for _, row := range run.Rows {
		if row.Report.NoReport {
			metrics.NoReport++
		}
	}
	if run.Aborted != nil {
		metrics.Aborted = true
		partial(fmt.Errorf("job loop stopped early: %w", run.Aborted))
		a.notifyError(run.Aborted)
	}

	path, err := WriteWorkbook(run, a.config.RAE.OutputDir)
	if err != nil {
		return critical(fmt.Errorf("failed to write workbook: %w", err))
	}
	metrics.Workbook = path
	a.logger.Info("Workbook written", zap.String("path", path), zap.String("run_id", run.RunID))

	if err := a.archive.Record(storage.ArchiveEntry{
		RunID:     run.RunID,
		Path:      path,
		CreatedAt: run.StartedAt,
		Rows:      metrics.Rows,
		Degraded:  metrics.Degraded,
	}); err != nil {
		partial(fmt.Errorf("failed to record workbook in archive: %w", err))
	}
	a.cleanupArchive()

	digest := ""
	if a.digester != nil {
		digest, err = a.digester.Digest(ctx, run)
		if err != nil {
			partial(fmt.Errorf("run digest unavailable: %w", err))
			digest = ""
		}
	}

	attachment, err := email.FileAttachment(path, email.XLSXContentType)
	if err != nil {
		return critical(fmt.Errorf("failed to attach workbook: %w", err))
	}
	subject := fmt.Sprintf("RAE Data %s", run.StartedAt.Format("01-02-2006"))
	body := func(recipient string) string {
		return EmailBody(recipient, digest)
	}
	if err := a.mailer.SendToRecipients(subject, body, attachment); err != nil {
		return critical(fmt.Errorf("failed to send workbook: %w", err))
	}
	metrics.EmailsSent = true

	// Record successful completion
	duration := time.Since(startTime)
	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, duration)
	}
	a.logger.Info("Run complete", zap.String("summary", metrics.GetSummary()), zap.Duration("duration", duration))
	return nil
}

// EmailBody greets recipient and, when present, adds the run digest
func EmailBody(recipient, digest string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nPlease see the attached workbook for today's RAE Data.\n", recipient)
	if digest != "" {
		fmt.Fprintf(&b, "\nSummary:\n%s\n", digest)
	}
	return b.String()
}

func (a *RAEAgent) cleanupArchive() {
	removed, err := a.archive.Cleanup()
	for _, e := range removed {
		a.logger.Info("Removed expired workbook", zap.String("path", e.Path), zap.Time("created_at", e.CreatedAt))
	}
	if err != nil {
		a.logger.Warn("Archive cleanup incomplete", zap.Error(err))
	}
}

func (a *RAEAgent) notifyError(cause error) {
	if errors.Is(cause, context.Canceled) {
		return
	}
	if err := a.mailer.SendError("Error occurred in RAE agent", cause); err != nil {
		a.logger.Error("Failed to send error notification", zap.Error(err))
	}
}
