package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"rae-agent/internal/models"
	"rae-agent/shared/config"

	"google.golang.org/genai"
)

// ErrEmptyDigest is returned when the model produced no text
var ErrEmptyDigest = errors.New("empty digest response")

// maxListed caps how many rigs are named per category in the prompt
const maxListed = 25

type generateFunc func(ctx context.Context, prompt string) (string, error)

// Digester writes a short plain-text summary of a run for the email body
type Digester struct {
	model    string
	generate generateFunc
}

func NewDigester(ctx context.Context, cfg *config.AIConfig) (*Digester, error) {
	// Configure client with API key
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	d := &Digester{model: cfg.Model}
	d.generate = func(ctx context.Context, prompt string) (string, error) {
		contents := []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
		}
		result, err := client.Models.GenerateContent(ctx, d.model, contents, nil)
		if err != nil {
			return "", err
		}
		return result.Text(), nil
	}
	return d, nil
}

// Digest asks the model for a summary of run
func (d *Digester) Digest(ctx context.Context, run *models.RunResult) (string, error) {
	text, err := d.generate(ctx, BuildPrompt(run))
	if err != nil {
		return "", fmt.Errorf("failed to generate run digest: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDigest
	}
	return text, nil
}

// BuildPrompt renders the run statistics the digest is written from
func BuildPrompt(run *models.RunResult) string {
	counts := run.StatusCounts()

	var noReport, degraded []string
	for _, row := range run.Rows {
		label := row.Job.LookupKey()
		if row.Report.NoReport {
			noReport = append(noReport, label)
		}
		if row.Degraded {
			degraded = append(degraded, label)
		}
	}
	sort.Strings(noReport)
	sort.Strings(degraded)

	var b strings.Builder
	b.WriteString(`You are summarizing a daily rig telemetry health report for drilling operations staff.
Write 3 to 5 short plain-text sentences. No markdown, no bullet points.
Mention how many rigs were checked, the overall channel health, and which rigs need attention.

RUN STATISTICS:
`)
	fmt.Fprintf(&b, "Rigs checked: %d\n", len(run.Rows))
	fmt.Fprintf(&b, "Channel statuses: OK %d, WARN %d, MISSING %d\n",
		counts[models.StatusOK], counts[models.StatusWarn], counts[models.StatusMissing])
	fmt.Fprintf(&b, "Rigs without a morning report (%d): %s\n", len(noReport), listNames(noReport))
	fmt.Fprintf(&b, "Rigs with no usable telemetry (%d): %s\n", len(degraded), listNames(degraded))
	fmt.Fprintf(&b, "Requested rigs not found (%d): %s\n", len(run.NotFound), listNames(run.NotFound))
	if run.Aborted != nil {
		fmt.Fprintf(&b, "The run stopped early: %v\n", run.Aborted)
	}
	return b.String()
}

func listNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	if len(names) > maxListed {
		return strings.Join(names[:maxListed], ", ") + fmt.Sprintf(" and %d more", len(names)-maxListed)
	}
	return strings.Join(names, ", ")
}
