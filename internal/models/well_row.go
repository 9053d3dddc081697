package models

import "time"

// WellRow is the output record of one processed job
type WellRow struct {
	Job        Job
	Channels   ChannelReport
	Report     DailyReport
	RealTime   bool
	Degraded   bool
	DegradedBy string
}

// NewWellRow returns a row with every channel and report field at its default.
func NewWellRow(job Job) WellRow {
	return WellRow{
		Job:      job,
		Channels: DefaultChannelReport(),
		Report:   DefaultDailyReport(),
	}
}

// RAEHeader is the header of the main report sheet.
var RAEHeader = []string{
	"Contractor", "Rig Number", "Operator", "Well name", "IADC", "IADC 2", "IADC3",
	"HookLoad", "PumpPressure", "BlockHeight", "PumpSpm", "PumpSpm2", "PumpSpm3", "RotaryTorque",
	"TopDrive RPM", "TopDrive Torque", "WOB", "ROP-F", "T-HL", "BitPosition", "BitStatus", "SlipStatus",
	"Comments", "Next 24 Hr Comments", "Report Id", "Report Date",
}

// Cells renders the row in RAEHeader order.
func (r WellRow) Cells() []any {
	cells := []any{
		r.Job.Contractor, r.Job.RigName, r.Job.Operator, r.Job.Name,
		r.Channels.IadcRigActivity, r.Channels.IadcRigActivity2, r.Channels.RigActivity,
	}
	for _, s := range r.Channels.Statuses() {
		cells = append(cells, int(s))
	}
	return append(cells,
		r.Channels.BitStatus, r.Channels.SlipStatus,
		r.Report.Current, r.Report.Next24, r.Report.ReportID, r.Report.Date,
	)
}

// TimeBasedPull is the raw telemetry response of one job
type TimeBasedPull struct {
	JobID string
	Raw   string
}

// RunResult accumulates everything one pipeline pass produced.
type RunResult struct {
	RunID               string
	StartedAt           time.Time
	SelectionMode       string
	Jobs                []Job
	NotFound            []string
	Rows                []WellRow
	Activities          []ActivityRow
	ZeroReportJobs      []string
	UnrecognizedReports []UnrecognizedReport
	TimeBasedPulls      []TimeBasedPull
	Aborted             error

	zeroReports map[string]struct{}
}

// MarkZeroReport records a job without reports. It returns false if the job
// was already recorded during this run.
func (r *RunResult) MarkZeroReport(jobID string) bool {
	if r.zeroReports == nil {
		r.zeroReports = make(map[string]struct{})
	}
	if _, ok := r.zeroReports[jobID]; ok {
		return false
	}
	r.zeroReports[jobID] = struct{}{}
	r.ZeroReportJobs = append(r.ZeroReportJobs, jobID)
	return true
}

// HasZeroReport reports whether the job is already known to have no reports.
func (r *RunResult) HasZeroReport(jobID string) bool {
	_, ok := r.zeroReports[jobID]
	return ok
}

// DegradedRows counts rows that fell back to defaults.
func (r *RunResult) DegradedRows() int {
	n := 0
	for _, row := range r.Rows {
		if row.Degraded {
			n++
		}
	}
	return n
}

// StatusCounts tallies the numeric channel statuses across all rows.
func (r *RunResult) StatusCounts() map[ChannelStatus]int {
	counts := make(map[ChannelStatus]int)
	for _, row := range r.Rows {
		for _, s := range row.Channels.Statuses() {
			counts[s]++
		}
	}
	return counts
}
