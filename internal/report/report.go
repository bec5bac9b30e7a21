// Package report renders a learner's progress record as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rmf-academy/course-server/internal/progress"
)

const (
	sheetOverview  = "Overview"
	sheetModules   = "Modules"
	sheetScenarios = "Scenarios"
	sheetBadges    = "Badges"
)

// WriteWorkbook writes rec as an xlsx workbook. titles maps module IDs to
// display titles; missing entries fall back to the raw ID.
func WriteWorkbook(w io.Writer, rec *progress.Record, titles map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetOverview)
	if err := writeOverview(f, rec); err != nil {
		return err
	}
	if err := writeModules(f, rec, titles); err != nil {
		return err
	}
	if err := writeScenarios(f, rec); err != nil {
		return err
	}
	if err := writeBadges(f, rec); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeOverview(f *excelize.File, rec *progress.Record) error {
	completed := 0
	for _, mp := range rec.Modules {
		if mp.Status == progress.StatusCompleted {
			completed++
		}
	}

	rows := [][]any{
		{"Exported", time.Now().UTC().Format(time.RFC3339)},
		{"Difficulty", rec.User.Difficulty},
		{"Started", formatTime(rec.User.StartedAt)},
		{"Last active", formatTime(rec.User.LastActiveAt)},
		{"Modules completed", completed},
		{"Scenarios attempted", len(rec.Scenarios)},
		{"Badges earned", len(rec.Badges)},
		{"Total time (minutes)", rec.TotalTimeMinutes},
	}
	if err := setRows(f, sheetOverview, rows); err != nil {
		return err
	}
	return f.SetColWidth(sheetOverview, "A", "B", 24)
}

func writeModules(f *excelize.File, rec *progress.Record, titles map[string]string) error {
	if _, err := f.NewSheet(sheetModules); err != nil {
		return err
	}

	ids := make([]string, 0, len(rec.Modules))
	for id := range rec.Modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := [][]any{
		{"Module", "Status", "Lessons completed", "Quiz score", "Quiz passed", "Quiz attempts", "Badge earned", "Completed at"},
	}
	for _, id := range ids {
		mp := rec.Modules[id]
		title := titles[id]
		if title == "" {
			title = id
		}
		score := any("")
		if mp.QuizScore != nil {
			score = *mp.QuizScore
		}
		rows = append(rows, []any{
			title,
			mp.Status,
			len(mp.LessonsCompleted),
			score,
			mp.QuizPassed,
			mp.QuizAttempts,
			mp.BadgeEarned,
			formatTime(mp.CompletedAt),
		})
	}
	if err := setRows(f, sheetModules, rows); err != nil {
		return err
	}
	return f.SetColWidth(sheetModules, "A", "H", 18)
}

func writeScenarios(f *excelize.File, rec *progress.Record) error {
	if _, err := f.NewSheet(sheetScenarios); err != nil {
		return err
	}

	ids := make([]string, 0, len(rec.Scenarios))
	for id := range rec.Scenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := [][]any{{"Scenario", "Score", "Max score"}}
	for _, id := range ids {
		sr := rec.Scenarios[id]
		rows = append(rows, []any{id, sr.Score, sr.MaxScore})
	}
	if err := setRows(f, sheetScenarios, rows); err != nil {
		return err
	}
	return f.SetColWidth(sheetScenarios, "A", "C", 18)
}

func writeBadges(f *excelize.File, rec *progress.Record) error {
	if _, err := f.NewSheet(sheetBadges); err != nil {
		return err
	}

	rows := [][]any{{"Badge"}}
	for _, b := range rec.Badges {
		rows = append(rows, []any{b})
	}
	if err := setRows(f, sheetBadges, rows); err != nil {
		return err
	}
	return f.SetColWidth(sheetBadges, "A", "A", 24)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
