package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/xuri/excelize/v2"
)

const (
	ScheduleSheet = "Schedule"
	TotalsSheet   = "Totals"
)

// ScheduleHeader is the column layout of the schedule sheet
var ScheduleHeader = []string{
	"Date",
	"Weekday",
	"Shift",
	"Station",
	"Required",
	"Assigned",
	"Status",
	"Staff",
	"Hours",
	"Labor Cost",
}

var columnWidths = []float64{12, 12, 12, 20, 10, 10, 10, 40, 10, 12}

var statusFill = map[models.Color]string{
	models.ColorRed:    "#F8CBAD",
	models.ColorYellow: "#FFE699",
	models.ColorGreen:  "#C6EFCE",
}

// Workbook renders a schedule, one row per station, with a totals sheet.
func Workbook(s *models.Schedule, totals models.Totals) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(ScheduleSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	statusStyles := make(map[models.Color]int, len(statusFill))
	for color, fill := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create status style: %w", err)
		}
		statusStyles[color] = id
	}

	if err := writeHeader(f, ScheduleSheet, ScheduleHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(ScheduleSheet, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	row := 2
	for i := range s.Days {
		day := &s.Days[i]
		weekday := day.Time().Weekday().String()
		for _, sh := range day.Shifts {
			for _, st := range sh.Stations {
				names := make([]string, 0, len(st.Assigned))
				cost := 0.0
				for _, a := range st.Assigned {
					names = append(names, a.Name)
					cost += a.HourlyWage * sh.DurationHours
				}
				values := []interface{}{
					day.Date,
					weekday,
					sh.Name,
					st.Name,
					st.Required,
					len(st.Assigned),
					string(st.Status),
					strings.Join(names, ", "),
					sh.DurationHours * float64(len(st.Assigned)),
					cost,
				}
				for col, v := range values {
					if err := setCellValue(f, ScheduleSheet, col+1, row, v); err != nil {
						f.Close()
						return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
					}
				}
				if style, ok := statusStyles[st.Status]; ok {
					cell, _ := excelize.CoordinatesToCellName(7, row)
					if err := f.SetCellStyle(ScheduleSheet, cell, cell, style); err != nil {
						f.Close()
						return nil, fmt.Errorf("failed to set status style: %w", err)
					}
				}
				row++
			}
		}
	}

	if err := f.SetPanes(ScheduleSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	if err := writeTotals(f, s, totals, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTotals(f *excelize.File, s *models.Schedule, totals models.Totals, headerStyle int) error {
	if _, err := f.NewSheet(TotalsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, TotalsSheet, []string{"Field", "Value"}, headerStyle); err != nil {
		return err
	}
	rows := [][]interface{}{
		{"Schedule", s.ID},
		{"Start", s.Start},
		{"End", s.End},
		{"Comment", s.Comment},
		{"Total Hours", totals.TotalHours},
		{"Total Labor Cost", totals.TotalLaborCost},
	}
	for i, r := range rows {
		for col, v := range r {
			if err := setCellValue(f, TotalsSheet, col+1, i+2, v); err != nil {
				return fmt.Errorf("failed to set totals cell: %w", err)
			}
		}
	}
	return f.SetColWidth(TotalsSheet, "A", "B", 20)
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

func setCellValue(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
