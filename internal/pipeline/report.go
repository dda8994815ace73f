package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/xuri/excelize/v2"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	changedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// RenderSummary writes a human-readable run summary to w.
func RenderSummary(w io.Writer, s *Summary) error {
	title := "Enrichment run"
	if s.DryRun {
		title += " (dry run)"
	}

	counts := []string{
		labelStyle.Render("visited") + fmt.Sprint(s.Visited),
		labelStyle.Render("changed") + changedStyle.Render(fmt.Sprint(s.Changed)),
		labelStyle.Render("skipped") + skippedStyle.Render(fmt.Sprint(s.Skipped)),
		labelStyle.Render("failed") + failedStyle.Render(fmt.Sprint(s.Failed)),
	}

	sections := []string{
		titleStyle.Render(title),
		fmt.Sprintf("run %s  mode %s  root %s", s.RunID, s.Mode, s.Root),
		panelStyle.Render(strings.Join(counts, "\n")),
	}

	if len(s.Reasons) > 0 {
		keys := make([]string, 0, len(s.Reasons))
		for k := range s.Reasons {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, labelStyle.Width(16).Render(k)+fmt.Sprint(s.Reasons[k]))
		}
		sections = append(sections, panelStyle.Render(strings.Join(lines, "\n")))
	}

	var failures []string
	for _, f := range s.Files {
		if f.Status == StatusFailed {
			failures = append(failures, failedStyle.Render("failed")+" "+f.Error)
		}
	}
	if len(failures) > 0 {
		sections = append(sections, panelStyle.Render(strings.Join(failures, "\n")))
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, sections...))
	return err
}

const (
	summarySheet = "Summary"
	filesSheet   = "Files"
)

// WriteReport exports the summary as an XLSX workbook with a summary sheet
// and one row per visited file.
func WriteReport(path string, s *Summary) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	rows := [][]any{
		{"Run ID", s.RunID},
		{"Root", s.Root},
		{"Mode", string(s.Mode)},
		{"Dry run", s.DryRun},
		{"Started", s.StartedAt.Format("2006-01-02 15:04:05")},
		{"Finished", s.FinishedAt.Format("2006-01-02 15:04:05")},
		{"Visited", s.Visited},
		{"Changed", s.Changed},
		{"Skipped", s.Skipped},
		{"Failed", s.Failed},
	}
	keys := make([]string, 0, len(s.Reasons))
	for k := range s.Reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []any{"Reason: " + k, s.Reasons[k]})
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(filesSheet); err != nil {
		return fmt.Errorf("create files sheet: %w", err)
	}
	fileRows := [][]any{{"Path", "Subject", "Level", "Bucket", "Status", "Repair", "Reasons", "Before", "After", "Error"}}
	for _, fr := range s.Files {
		fileRows = append(fileRows, []any{
			fr.Path,
			fr.Subject,
			fr.Level,
			fr.Bucket,
			fr.Status,
			fr.Repair,
			strings.Join(fr.Reasons, ", "),
			fr.BeforeDigest,
			fr.AfterDigest,
			fr.Error,
		})
	}
	if err := writeRows(f, filesSheet, fileRows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
