package models

// Default texts of the report columns
const (
	DefaultComment  = "NA"
	NoReportComment = "no morning report"
)

// DailyReport is the normalized morning report of a job
type DailyReport struct {
	Schema     string        `json:"schema"`
	ReportID   string        `json:"report_id"`
	Status     string        `json:"status"`
	Date       string        `json:"date"`
	Current    string        `json:"current"`
	Next24     string        `json:"next_24"`
	Activities []ActivityRow `json:"activities"`
	NoReport   bool          `json:"no_report"`
}

// DefaultDailyReport is what a row carries when no report fields were populated.
func DefaultDailyReport() DailyReport {
	return DailyReport{
		Current: DefaultComment,
		Next24:  DefaultComment,
	}
}

// NoDailyReport is the sentinel for a job without any daily report.
func NoDailyReport() DailyReport {
	r := DefaultDailyReport()
	r.Current = NoReportComment
	r.NoReport = true
	return r
}

// AvailableReport is one entry of a job's report listing
type AvailableReport struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

// ActivityRow is one activity line of a daily report. ReportID and ReportDate
// come from the listing entry, not from the report body.
type ActivityRow struct {
	JobID       string `json:"job_id"`
	ReportID    string `json:"report_id"`
	ReportDate  string `json:"report_date"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// UnrecognizedReport keeps the raw payload of a report no decoder matched
type UnrecognizedReport struct {
	JobID   string
	Payload string
}
