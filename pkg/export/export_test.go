package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/arnavshah/rota-api-go/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbook(t *testing.T) {
	tpl := []models.ShiftTemplate{
		{Name: "Lunch", DurationHours: 4, Stations: []models.StationTemplate{{ID: "kitchen", Name: "Kitchen", Required: 2}}},
		{Name: "Dinner", DurationHours: 5, Stations: []models.StationTemplate{{ID: "kitchen", Name: "Kitchen", Required: 1}}},
	}
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, err := scheduler.NewSchedule("org-1", monday, monday, tpl)
	require.NoError(t, err)
	sched.Comment = "opening week"

	cook := models.Staff{ID: "c1", Name: "Cal Cook", HourlyWage: 20, Stations: []string{"Kitchen"}, Availability: models.FullAvailability()}
	require.NoError(t, scheduler.Assign(sched, cook, models.Slot{Date: "2024-01-01", Shift: "Lunch", StationID: "kitchen"}))

	data, err := Workbook(sched, scheduler.ComputeTotals(sched))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ScheduleSheet, TotalsSheet}, f.GetSheetList())

	rows, err := f.GetRows(ScheduleSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ScheduleHeader, rows[0])
	assert.Equal(t, []string{"2024-01-01", "Monday", "Lunch", "Kitchen", "2", "1", "yellow", "Cal Cook", "4", "80"}, rows[1])
	assert.Equal(t, "red", rows[2][6])

	totals, err := f.GetRows(TotalsSheet)
	require.NoError(t, err)
	assert.Contains(t, totals, []string{"Comment", "opening week"})
	assert.Contains(t, totals, []string{"Total Labor Cost", "80"})
}
