// Package export writes task lists as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"taskflow/internal/models"
)

const sheetName = "Tasks"

var header = []string{
	"ID", "Title", "Priority", "Status", "Assignment", "Assigned role", "Assigned to",
	"Fields filled", "Next reminder", "Created", "Updated",
}

// TasksXLSX writes one row per task. names resolves user ids for the
// "Assigned to" column; unknown ids are written as #id.
func TasksXLSX(w io.Writer, tasks []models.Task, names map[int64]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i := range tasks {
		t := &tasks[i]
		row := []any{
			t.ID,
			t.Title,
			string(t.Priority),
			string(t.Status),
			string(t.AssignmentStatus),
			t.AssignedRole,
			assigneeNames(t.AssignedTo, names),
			fmt.Sprintf("%d/%d", filledFields(t.Fields), len(t.Fields)),
			formatTime(t.NextNotification),
			t.CreatedAt.Format("2006-01-02 15:04"),
			t.UpdatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "B", "B", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "G", "G", 30); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func assigneeNames(ids []int64, names map[int64]string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := names[id]; ok {
			parts = append(parts, n)
			continue
		}
		parts = append(parts, "#"+strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ", ")
}

func filledFields(fields []models.Field) int {
	n := 0
	for _, f := range fields {
		if !f.IsEmpty() {
			n++
		}
	}
	return n
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
