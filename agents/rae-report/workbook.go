package raereport

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"rae-agent/internal/models"
)

// Sheet names of the RAE workbook
const (
	SheetRAEReport     = "RAE Report"
	SheetReportComment = "Report_Comment"
	SheetJobsProcessed = "Jobs Processed"
	SheetJobsNotFound  = "Jobs not found"
	SheetNoReportList  = "No Report List"
	SheetTimeBasedPull = "Time Based Pull"
)

// statusFills colors a status cell by its exact code. Blank cells would
// compare equal to 0, so the rules only span rows that hold data.
var statusFills = []struct {
	status models.ChannelStatus
	color  string
}{
	{models.StatusMissing, "F8696B"},
	{models.StatusWarn, "FFEB84"},
	{models.StatusOK, "63BE7B"},
}

// statusRuleRange is the status block (HookLoad..BitPosition) of the first
// n data rows.
func statusRuleRange(n int) string {
	return fmt.Sprintf("H2:T%d", n+1)
}

var hiddenSheets = []string{
	SheetReportComment,
	SheetJobsProcessed,
	SheetJobsNotFound,
	SheetNoReportList,
	SheetTimeBasedPull,
}

var (
	reportCommentHeader = []string{"JobID", "Report Id", "Report Date", "Activity Code", "Details of Operation"}
	jobsProcessedHeader = []string{"JobID", "Contractor", "Rig Number", "Operator", "Well name", "Real Time", "Degraded", "Reason"}
	jobsNotFoundHeader  = []string{"JobID", "Filter", "Report Payload"}
	noReportHeader      = []string{"JobID"}
	timeBasedPullHeader = []string{"JobID", "Response"}
)

// WorkbookName is the file name of the workbook produced on day.
func WorkbookName(day time.Time) string {
	return fmt.Sprintf("RAEJobsList %s.xlsx", day.Format("01-02-2006"))
}

// WriteWorkbook renders run into dir and returns the path of the file.
func WriteWorkbook(run *models.RunResult, dir string) (string, error) {
	f, err := BuildWorkbook(run)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, WorkbookName(run.StartedAt))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return path, nil
}

// BuildWorkbook lays out every sheet of the RAE workbook in memory.
func BuildWorkbook(run *models.RunResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := buildWorkbook(f, run); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func buildWorkbook(f *excelize.File, run *models.RunResult) error {
	if err := f.SetSheetName("Sheet1", SheetRAEReport); err != nil {
		return fmt.Errorf("failed to rename main sheet: %w", err)
	}
	for _, name := range hiddenSheets {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	if err := writeMainSheet(f, run.Rows); err != nil {
		return err
	}

	activities := make([]models.ActivityRow, len(run.Activities))
	copy(activities, run.Activities)
	sort.SliceStable(activities, func(i, j int) bool { return activities[i].JobID < activities[j].JobID })
	rows := make([][]any, 0, len(activities))
	for _, a := range activities {
		rows = append(rows, []any{a.JobID, a.ReportID, a.ReportDate, a.Code, a.Description})
	}
	if err := writeTable(f, SheetReportComment, reportCommentHeader, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, r := range run.Rows {
		rows = append(rows, []any{
			r.Job.ID, r.Job.Contractor, r.Job.RigName, r.Job.Operator, r.Job.Name,
			strconv.FormatBool(r.RealTime), strconv.FormatBool(r.Degraded), r.DegradedBy,
		})
	}
	if err := writeTable(f, SheetJobsProcessed, jobsProcessedHeader, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, u := range run.UnrecognizedReports {
		rows = append(rows, []any{u.JobID, "", u.Payload})
	}
	for _, token := range run.NotFound {
		rows = append(rows, []any{"", token, ""})
	}
	if err := writeTable(f, SheetJobsNotFound, jobsNotFoundHeader, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, id := range run.ZeroReportJobs {
		rows = append(rows, []any{id})
	}
	if err := writeTable(f, SheetNoReportList, noReportHeader, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, p := range run.TimeBasedPulls {
		rows = append(rows, []any{p.JobID, p.Raw})
	}
	if err := writeTable(f, SheetTimeBasedPull, timeBasedPullHeader, rows); err != nil {
		return err
	}

	for _, name := range hiddenSheets {
		if err := f.SetSheetVisible(name, false); err != nil {
			return fmt.Errorf("failed to hide sheet %s: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return nil
}

func writeMainSheet(f *excelize.File, wellRows []models.WellRow) error {
	sorted := make([]models.WellRow, len(wellRows))
	copy(sorted, wellRows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Job.Contractor < sorted[j].Job.Contractor })

	rows := make([][]any, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, r.Cells())
	}
	if err := writeTable(f, SheetRAEReport, models.RAEHeader, rows); err != nil {
		return err
	}

	// White text hides the status codes so only the fills show.
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "FFFFFF"}})
	if err != nil {
		return fmt.Errorf("failed to create status style: %w", err)
	}
	if err := f.SetCellStyle(SheetRAEReport, "H2", "T150", style); err != nil {
		return fmt.Errorf("failed to style status cells: %w", err)
	}
	if len(rows) > 0 {
		if err := setStatusRules(f, statusRuleRange(len(rows))); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetRAEReport, "A", "D", 18); err != nil {
		return fmt.Errorf("failed to size identity columns: %w", err)
	}
	if err := f.SetColWidth(SheetRAEReport, "W", "X", 60); err != nil {
		return fmt.Errorf("failed to size comment columns: %w", err)
	}
	return nil
}

// setStatusRules adds one cell-value rule per status code, compared against
// the absolute code rather than the range of values present.
func setStatusRules(f *excelize.File, rangeRef string) error {
	rules := make([]excelize.ConditionalFormatOptions, 0, len(statusFills))
	for _, sf := range statusFills {
		format, err := f.NewConditionalStyle(&excelize.Style{
			Font: &excelize.Font{Color: sf.color},
			Fill: excelize.Fill{Type: "pattern", Color: []string{sf.color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("failed to create %s status style: %w", sf.status, err)
		}
		rules = append(rules, excelize.ConditionalFormatOptions{
			Type:     "cell",
			Criteria: "==",
			Value:    strconv.Itoa(int(sf.status)),
			Format:   &format,
		})
	}
	if err := f.SetConditionalFormat(SheetRAEReport, rangeRef, rules); err != nil {
		return fmt.Errorf("failed to add status rules: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []string, rows [][]any) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	for i, row := range rows {
		for j, v := range row {
			if text, ok := v.(string); ok {
				row[j] = cellText(text)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// cellText trims s to what a single cell can hold.
func cellText(s string) string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:excelize.TotalCellChars])
}
