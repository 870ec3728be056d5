package scheduler

import (
	"testing"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	s := newTestSchedule(t, 2)
	assert.Equal(t, models.Totals{}, ComputeTotals(s))

	require.NoError(t, Assign(s, newStaff("a", "Ann Lee", 15, 70, "Kitchen"), lunchKitchen("2024-01-01")))
	require.NoError(t, Assign(s, newStaff("b", "Bo Park", 20, 70, "Bar"), models.Slot{Date: "2024-01-02", Shift: "Dinner", StationID: "st-bar"}))

	totals := ComputeTotals(s)
	assert.InDelta(t, 15*4+20*5, totals.TotalLaborCost, 1e-9)
	assert.InDelta(t, 9.0, totals.TotalHours, 1e-9)
}

func TestComputeTotals_Additive(t *testing.T) {
	left := newTestSchedule(t, 3)
	right := left.Clone()
	union := left.Clone()

	leftSlots := []struct {
		staff models.Staff
		slot  models.Slot
	}{
		{newStaff("a", "Ann Lee", 15, 70, "Kitchen"), lunchKitchen("2024-01-01")},
		{newStaff("b", "Bo Park", 17.5, 70, "Bar"), models.Slot{Date: "2024-01-02", Shift: "Dinner", StationID: "st-bar"}},
	}
	rightSlots := []struct {
		staff models.Staff
		slot  models.Slot
	}{
		{newStaff("c", "Cy Diaz", 21, 70, "Kitchen"), models.Slot{Date: "2024-01-01", Shift: "Dinner", StationID: "st-kitchen"}},
		{newStaff("d", "Di Wu", 13.25, 70, "Kitchen"), lunchKitchen("2024-01-03")},
	}
	for _, a := range leftSlots {
		require.NoError(t, Assign(left, a.staff, a.slot))
		require.NoError(t, Assign(union, a.staff, a.slot))
	}
	for _, a := range rightSlots {
		require.NoError(t, Assign(right, a.staff, a.slot))
		require.NoError(t, Assign(union, a.staff, a.slot))
	}

	sum := ComputeTotals(left).Add(ComputeTotals(right))
	got := ComputeTotals(union)
	assert.InDelta(t, sum.TotalLaborCost, got.TotalLaborCost, 1e-9)
	assert.InDelta(t, sum.TotalHours, got.TotalHours, 1e-9)
}

func TestCoverage(t *testing.T) {
	s := newTestSchedule(t, 1)
	require.NoError(t, Assign(s, newStaff("a", "Ann Lee", 15, 70, "Bar"), models.Slot{Date: "2024-01-01", Shift: "Lunch", StationID: "st-bar"}))

	cov := Coverage(s)
	require.Len(t, cov, 4)
	assert.Equal(t, models.ColorRed, cov[0].Status)
	assert.Equal(t, models.ColorGreen, cov[1].Status)
	assert.Equal(t, "Bar", cov[1].Station)
	assert.Len(t, UnderCovered(s), 3)
}

func TestFairnessScore(t *testing.T) {
	s := newTestSchedule(t, 2)
	ann := newStaff("a", "Ann Lee", 15, 70, "Kitchen")
	bo := newStaff("b", "Bo Park", 15, 70, "Kitchen")
	roster := []models.Staff{ann, bo}

	assert.Equal(t, 100.0, FairnessScore(roster, s))

	require.NoError(t, Assign(s, ann, lunchKitchen("2024-01-01")))
	assert.InDelta(t, 0.0, FairnessScore(roster, s), 1e-9)

	require.NoError(t, Assign(s, bo, lunchKitchen("2024-01-02")))
	assert.InDelta(t, 100.0, FairnessScore(roster, s), 1e-9)
}
