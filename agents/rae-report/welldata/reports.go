package welldata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"rae-agent/internal/models"
)

// Daily morning reports live in report group 2
const (
	reportClassification = "daily"
	reportGroup          = "2"
)

// Report schema markers, in dispatch priority order
const (
	SchemaGenericAmerican = "GenericAmericanMorningReportDW"
	SchemaHandP           = "HandPMorningReport"
	SchemaScan            = "ScanMorningReport"
	SchemaRapad           = "RapadMorningReport"
	SchemaPatterson       = "PattersonMorningReportRevB"
)

var errSchemaMismatch = errors.New("report does not match schema")

type reportDecoder struct {
	schema string
	decode func(body json.RawMessage) (models.DailyReport, error)
}

var reportDecoders = []reportDecoder{
	{SchemaGenericAmerican, decodeGenericAmerican},
	{SchemaHandP, decodeHandP},
	{SchemaScan, decodeScan},
	{SchemaRapad, decodeRapad},
	{SchemaPatterson, decodePatterson},
}

type reportAttributes struct {
	ReportID     flexString `json:"ReportID"`
	ReportStatus flexString `json:"ReportStatus"`
}

// AvailableReports lists a job's daily reports, most recent first.
func (c *Client) AvailableReports(ctx context.Context, jobID string) ([]models.AvailableReport, error) {
	var resp struct {
		AvailableReports []struct {
			ID   flexString `json:"id"`
			Date string     `json:"date"`
		} `json:"availableReports"`
	}
	path := jobPath(jobID, "/reports/", reportClassification, "/", reportGroup)
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	reports := make([]models.AvailableReport, 0, len(resp.AvailableReports))
	for _, r := range resp.AvailableReports {
		reports = append(reports, models.AvailableReport{ID: string(r.ID), Date: r.Date})
	}
	return reports, nil
}

// ReportContent fetches one report rendered as JSON.
func (c *Client) ReportContent(ctx context.Context, jobID, reportID string) ([]byte, error) {
	path := jobPath(jobID, "/reports/", reportClassification, "/", reportGroup, "/JSON")
	query := url.Values{}
	query.Set("reportIds.ids", reportID)
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// FetchDailyReport returns the normalized latest daily report of a job.
// Jobs without reports are recorded once in run and get the no-report
// sentinel. Payloads no decoder recognizes are recorded in run and leave
// the report at its defaults.
func (c *Client) FetchDailyReport(ctx context.Context, jobID string, run *models.RunResult) (models.DailyReport, error) {
	if run.HasZeroReport(jobID) {
		return models.NoDailyReport(), nil
	}

	available, err := c.AvailableReports(ctx, jobID)
	if err != nil {
		return models.DefaultDailyReport(), err
	}
	if len(available) == 0 {
		run.MarkZeroReport(jobID)
		c.logger.Info("No morning report", zap.String("job_id", jobID))
		return models.NoDailyReport(), nil
	}

	latest := available[0]
	payload, err := c.ReportContent(ctx, jobID, latest.ID)
	if err != nil {
		return models.DefaultDailyReport(), err
	}

	report, err := DecodeReport(payload)
	switch {
	case errors.Is(err, ErrNoReportContent):
		run.MarkZeroReport(jobID)
		return models.NoDailyReport(), nil
	case errors.Is(err, ErrUnrecognizedSchema):
		c.logger.Warn("Unrecognized report schema", zap.String("job_id", jobID), zap.String("report_id", latest.ID))
		run.UnrecognizedReports = append(run.UnrecognizedReports, models.UnrecognizedReport{
			JobID:   jobID,
			Payload: string(payload),
		})
		return models.DefaultDailyReport(), nil
	case err != nil:
		return models.DefaultDailyReport(), fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	for i := range report.Activities {
		report.Activities[i].JobID = jobID
		report.Activities[i].ReportID = latest.ID
		report.Activities[i].ReportDate = latest.Date
	}
	run.Activities = append(run.Activities, report.Activities...)
	return report, nil
}

var (
	// ErrNoReportContent is returned for a content payload with no reports in it
	ErrNoReportContent = errors.New("report payload is empty")
	// ErrUnrecognizedSchema is returned when none of the known schemas match
	ErrUnrecognizedSchema = errors.New("unrecognized report schema")
)

// DecodeReport tries each known schema in priority order against the first
// report of payload. The first schema whose marker is present and whose body
// decodes wins.
func DecodeReport(payload []byte) (models.DailyReport, error) {
	var envelope struct {
		Reports []map[string]json.RawMessage `json:"Reports"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return models.DefaultDailyReport(), fmt.Errorf("decode report envelope: %w", err)
	}
	if len(envelope.Reports) == 0 {
		return models.DefaultDailyReport(), ErrNoReportContent
	}

	first := envelope.Reports[0]
	for _, d := range reportDecoders {
		body, ok := first[d.schema]
		if !ok {
			continue
		}
		report, err := d.decode(body)
		if err != nil {
			continue
		}
		report.Schema = d.schema
		return report, nil
	}
	return models.DefaultDailyReport(), ErrUnrecognizedSchema
}

// decodeObject unmarshals body into out, rejecting anything but a JSON object.
func decodeObject(body json.RawMessage, out any) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil || probe == nil {
		return errSchemaMismatch
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", errSchemaMismatch, err)
	}
	return nil
}

func withAttributes(attrs reportAttributes) models.DailyReport {
	r := models.DefaultDailyReport()
	r.ReportID = string(attrs.ReportID)
	r.Status = string(attrs.ReportStatus)
	return r
}

func decodeGenericAmerican(body json.RawMessage) (models.DailyReport, error) {
	var doc struct {
		Header struct {
			Date            string      `json:"Date"`
			OpsAtReportTime string      `json:"OpsAtReportTime"`
			OpsNext24       *flexString `json:"OpsNext24"`
		} `json:"Header"`
		ReportAttributes reportAttributes `json:"ReportAttributes"`
		ActivityDetails  struct {
			Items []struct {
				ActCode           *flexString `json:"ActCode"`
				DescriptionOfWork flexString  `json:"DescriptionOfWork"`
			} `json:"Items"`
		} `json:"ActivityDetails"`
	}
	if err := decodeObject(body, &doc); err != nil {
		return models.DailyReport{}, err
	}

	r := withAttributes(doc.ReportAttributes)
	r.Date = doc.Header.Date
	r.Current = doc.Header.OpsAtReportTime
	if doc.Header.OpsNext24 != nil {
		r.Next24 = string(*doc.Header.OpsNext24)
	}
	for _, item := range doc.ActivityDetails.Items {
		if item.ActCode == nil {
			continue
		}
		r.Activities = append(r.Activities, models.ActivityRow{
			Code:        string(*item.ActCode),
			Description: string(item.DescriptionOfWork),
		})
	}
	return r, nil
}

type activityCodeItems struct {
	Items []struct {
		ActivityCode    *flexString `json:"ActivityCode"`
		ActivityDetails flexString  `json:"ActivityDetails"`
	} `json:"Items"`
}

func (a activityCodeItems) rows() []models.ActivityRow {
	var rows []models.ActivityRow
	for _, item := range a.Items {
		if item.ActivityCode == nil {
			continue
		}
		rows = append(rows, models.ActivityRow{
			Code:        string(*item.ActivityCode),
			Description: string(item.ActivityDetails),
		})
	}
	return rows
}

func decodeHandP(body json.RawMessage) (models.DailyReport, error) {
	var doc struct {
		Header struct {
			Date string `json:"Date"`
		} `json:"Header"`
		Operations struct {
			PresentOp string `json:"PresentOp"`
		} `json:"Operations"`
		ReportAttributes reportAttributes  `json:"ReportAttributes"`
		TimeSummary      activityCodeItems `json:"TimeSummary"`
	}
	if err := decodeObject(body, &doc); err != nil {
		return models.DailyReport{}, err
	}

	r := withAttributes(doc.ReportAttributes)
	r.Date = doc.Header.Date
	r.Current = doc.Operations.PresentOp
	r.Next24 = ""
	r.Activities = doc.TimeSummary.rows()
	return r, nil
}

func decodeScan(body json.RawMessage) (models.DailyReport, error) {
	var doc struct {
		Header struct {
			Date      string `json:"Date"`
			PresentOp string `json:"PresentOp"`
		} `json:"Header"`
		ReportAttributes reportAttributes  `json:"ReportAttributes"`
		TimeBreakDown    activityCodeItems `json:"TimeBreakDown"`
	}
	if err := decodeObject(body, &doc); err != nil {
		return models.DailyReport{}, err
	}

	r := withAttributes(doc.ReportAttributes)
	r.Date = doc.Header.Date
	r.Current = doc.Header.PresentOp
	r.Activities = doc.TimeBreakDown.rows()
	return r, nil
}

func decodeRapad(body json.RawMessage) (models.DailyReport, error) {
	var doc struct {
		Header struct {
			ReportDate                    string `json:"ReportDate"`
			OperationsActivityCurrent     string `json:"OperationsActivityCurrent"`
			OperationsActivityNext24Hours string `json:"OperationsActivityNext24Hours"`
		} `json:"Header"`
		ReportAttributes reportAttributes `json:"ReportAttributes"`
		ActivityDetails  struct {
			Items []struct {
				Code        *flexString `json:"OperationsActivityCode"`
				Description flexString  `json:"OperationsActivityDescription"`
			} `json:"Items"`
		} `json:"ActivityDetails"`
	}
	if err := decodeObject(body, &doc); err != nil {
		return models.DailyReport{}, err
	}

	r := withAttributes(doc.ReportAttributes)
	r.Date = doc.Header.ReportDate
	r.Current = doc.Header.OperationsActivityCurrent
	r.Next24 = doc.Header.OperationsActivityNext24Hours
	for _, item := range doc.ActivityDetails.Items {
		if item.Code == nil {
			continue
		}
		r.Activities = append(r.Activities, models.ActivityRow{
			Code:        string(*item.Code),
			Description: string(item.Description),
		})
	}
	return r, nil
}

func decodePatterson(body json.RawMessage) (models.DailyReport, error) {
	var doc struct {
		Header struct {
			ReportDate string `json:"ReportDate"`
		} `json:"Header"`
		OperationsCasingDetails struct {
			OperationsAtReportTime string      `json:"operations_at_report_time"`
			OperationsNext24Hours  *flexString `json:"operations_next_24_hours"`
		} `json:"OperationsCasingDetails"`
		ReportAttributes reportAttributes `json:"ReportAttributes"`
		ActivityDetails  struct {
			Items []struct {
				Code    flexString  `json:"code"`
				Details *flexString `json:"details"`
			} `json:"Items"`
		} `json:"ActivityDetails"`
	}
	if err := decodeObject(body, &doc); err != nil {
		return models.DailyReport{}, err
	}

	r := withAttributes(doc.ReportAttributes)
	r.Date = doc.Header.ReportDate
	r.Current = doc.OperationsCasingDetails.OperationsAtReportTime
	if next := doc.OperationsCasingDetails.OperationsNext24Hours; next != nil {
		r.Next24 = string(*next)
	}
	for _, item := range doc.ActivityDetails.Items {
		if item.Details == nil {
			continue
		}
		r.Activities = append(r.Activities, models.ActivityRow{
			Code:        string(item.Code),
			Description: string(*item.Details),
		})
	}
	return r, nil
}
