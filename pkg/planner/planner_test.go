package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/database"
	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/arnavshah/rota-api-go/pkg/optimizer"
	"github.com/arnavshah/rota-api-go/pkg/scheduler"
	"github.com/arnavshah/rota-api-go/pkg/store"
	"github.com/arnavshah/rota-api-go/pkg/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 2024-01-01 is a Monday
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeWeather struct {
	forecast models.Forecast
	err      error
	entered  chan struct{}
	release  chan struct{}
}

func (f *fakeWeather) Forecast(ctx context.Context, start, end time.Time) (models.Forecast, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	return f.forecast, f.err
}

type fakeOptimizer struct {
	proposal *models.Proposal
	err      error
	got      optimizer.Request
}

func (f *fakeOptimizer) Optimize(ctx context.Context, req optimizer.Request) (*models.Proposal, error) {
	f.got = req
	return f.proposal, f.err
}

func template() []models.ShiftTemplate {
	return []models.ShiftTemplate{
		{Name: "Lunch", DurationHours: 4, Stations: []models.StationTemplate{{ID: "kitchen", Name: "Kitchen", Required: 2}}},
		{Name: "Dinner", DurationHours: 5, Stations: []models.StationTemplate{{ID: "kitchen", Name: "Kitchen", Required: 2}}},
	}
}

func newTestPlanner(t *testing.T, w weather.Forecaster, o optimizer.Optimizer) (*Planner, store.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	st := store.NewGormStore(db)
	return New(st, w, o, template(), zap.NewNop()), st
}

func seedRoster(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	for i, score := range []int{60, 90, 75, 85} {
		_, err := st.SaveStaff(ctx, "org-1", models.Staff{
			ID:               fmt.Sprintf("s%d", i+1),
			Name:             fmt.Sprintf("Cook %d", i+1),
			HourlyWage:       20,
			PerformanceScore: score,
			Stations:         []string{"Kitchen"},
			Availability:     models.FullAvailability(),
		})
		require.NoError(t, err)
	}
}

func TestPlanner_GenerateAndAssign(t *testing.T) {
	p, st := newTestPlanner(t, nil, nil)
	seedRoster(t, st)
	ctx := context.Background()

	resp, err := p.Generate(ctx, "org-1", monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	id := resp.Schedule.ID
	assert.Len(t, resp.Schedule.Days, 2)
	assert.Len(t, resp.Unassigned, 4)
	assert.Len(t, resp.UnderCovered, 4)

	slot := models.Slot{Date: "2024-01-01", Shift: "Lunch", StationID: "kitchen"}
	resp, err = p.Assign(ctx, "org-1", id, 0, "s1", slot)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Schedule.Revision)
	assert.InDelta(t, 80.0, resp.Totals.TotalLaborCost, 1e-9)
	assert.Len(t, resp.Unassigned, 3)

	// same person, same day
	_, err = p.Assign(ctx, "org-1", id, 1, "s1", models.Slot{Date: "2024-01-01", Shift: "Dinner", StationID: "kitchen"})
	assert.ErrorIs(t, err, scheduler.ErrDoubleBooking)

	_, err = p.Assign(ctx, "org-1", id, 0, "s2", slot)
	assert.ErrorIs(t, err, ErrStaleRevision)

	_, err = p.Assign(ctx, "org-1", id, 1, "nobody", slot)
	assert.ErrorIs(t, err, store.ErrNotFound)

	conflicts, err := p.CheckConflicts(ctx, "org-1", id, "s1", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictDoubleBooking, conflicts[0].Kind)

	resp, err = p.Unassign(ctx, "org-1", id, 1, "s1", slot)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Schedule.Revision)
	assert.Zero(t, resp.Totals.TotalLaborCost)

	_, err = p.Unassign(ctx, "org-1", id, 2, "s1", slot)
	assert.ErrorIs(t, err, scheduler.ErrNotAssigned)

	totals, err := p.Totals(ctx, "org-1", id)
	require.NoError(t, err)
	assert.Zero(t, totals.TotalHours)
}

func TestPlanner_CommentAndRange(t *testing.T) {
	p, st := newTestPlanner(t, nil, nil)
	seedRoster(t, st)
	ctx := context.Background()

	resp, err := p.Generate(ctx, "org-1", monday, monday)
	require.NoError(t, err)
	id := resp.Schedule.ID

	resp, err = p.SetComment(ctx, "org-1", id, 0, "short week")
	require.NoError(t, err)
	assert.Equal(t, "short week", resp.Schedule.Comment)

	_, err = p.Assign(ctx, "org-1", id, 1, "s1", models.Slot{Date: "2024-01-01", Shift: "Lunch", StationID: "kitchen"})
	require.NoError(t, err)

	resp, err = p.ChangeRange(ctx, "org-1", id, 2, monday.AddDate(0, 0, 2), monday.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, id, resp.Schedule.ID)
	assert.Equal(t, "2024-01-03", resp.Schedule.Start)
	assert.Len(t, resp.Schedule.Days, 3)
	assert.Empty(t, resp.Schedule.Comment)
	assert.Zero(t, resp.Totals.TotalLaborCost)

	_, err = p.ChangeRange(ctx, "org-1", id, 3, monday, monday.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, scheduler.ErrInvalidRange)

	got, err := p.Get(ctx, "org-1", id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Schedule.Revision)
}

func TestPlanner_AutoAssignWeather(t *testing.T) {
	w := &fakeWeather{forecast: models.Forecast{{Day: "monday", StaffingImpact: models.ImpactHigh}}}
	p, st := newTestPlanner(t, w, nil)
	seedRoster(t, st)
	ctx := context.Background()

	resp, err := p.Generate(ctx, "org-1", monday, monday)
	require.NoError(t, err)

	auto, err := p.AutoAssign(ctx, "org-1", resp.Schedule.ID, 0, true)
	require.NoError(t, err)
	assert.True(t, auto.WeatherAdjusted)
	assert.Empty(t, auto.WeatherError)

	lunch := auto.Schedule.Days[0].Shifts[0].Stations[0]
	// high impact keeps round(2*0.7)=1 slot and picks the best performer
	require.Len(t, lunch.Assigned, 1)
	assert.Equal(t, "s2", lunch.Assigned[0].ID)
	assert.Equal(t, 1, auto.Schedule.Revision)
}

func TestPlanner_AutoAssignWeatherUnavailable(t *testing.T) {
	w := &fakeWeather{err: fmt.Errorf("%w: timeout", weather.ErrUnavailable)}
	p, st := newTestPlanner(t, w, nil)
	seedRoster(t, st)
	ctx := context.Background()

	resp, err := p.Generate(ctx, "org-1", monday, monday)
	require.NoError(t, err)

	auto, err := p.AutoAssign(ctx, "org-1", resp.Schedule.ID, 0, true)
	require.NoError(t, err)
	assert.False(t, auto.WeatherAdjusted)
	assert.NotEmpty(t, auto.WeatherError)

	lunch := auto.Schedule.Days[0].Shifts[0].Stations[0]
	require.Len(t, lunch.Assigned, 2)
	assert.Equal(t, "s1", lunch.Assigned[0].ID)
	assert.Equal(t, "s2", lunch.Assigned[1].ID)
	assert.Empty(t, auto.Unassigned)
}

func TestPlanner_Busy(t *testing.T) {
	w := &fakeWeather{entered: make(chan struct{}), release: make(chan struct{})}
	p, st := newTestPlanner(t, w, nil)
	seedRoster(t, st)
	ctx := context.Background()

	resp, err := p.Generate(ctx, "org-1", monday, monday)
	require.NoError(t, err)
	id := resp.Schedule.ID

	done := make(chan error, 1)
	go func() {
		_, err := p.AutoAssign(ctx, "org-1", id, 0, true)
		done <- err
	}()
	<-w.entered

	_, err = p.AutoAssign(ctx, "org-1", id, 0, true)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = p.Optimize(ctx, "org-1", id, 0, false)
	assert.Error(t, err)

	close(w.release)
	require.NoError(t, <-done)

	_, err = p.AutoAssign(ctx, "org-1", id, 1, false)
	assert.NoError(t, err)
}

func TestPlanner_Optimize(t *testing.T) {
	o := &fakeOptimizer{proposal: &models.Proposal{
		Schedule: models.ProposalGrid{
			"monday": {"Lunch": {"kitchen": {{Name: "Cook 3"}, {Name: "Unknown Person", HourlyWage: 18}}}},
		},
		Reasoning: "cheapest cover",
	}}
	p, st := newTestPlanner(t, nil, o)
	seedRoster(t, st)
	ctx := context.Background()

	resp, err := p.Generate(ctx, "org-1", monday, monday)
	require.NoError(t, err)
	id := resp.Schedule.ID

	out, err := p.Optimize(ctx, "org-1", id, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "org-1", o.got.OrganizationID)
	assert.Len(t, o.got.Staff, 4)
	assert.Equal(t, "cheapest cover", out.Reasoning)

	lunch := out.Schedule.Days[0].Shifts[0].Stations[0]
	require.Len(t, lunch.Assigned, 2)
	assert.Equal(t, "s3", lunch.Assigned[0].ID)
	assert.True(t, lunch.Assigned[1].Synthetic)
	assert.InDelta(t, 4*20+4*18, out.Totals.TotalLaborCost, 1e-9)
	assert.Len(t, out.Unassigned, 3)

	stored, err := p.Get(ctx, "org-1", id)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Schedule.Revision)
	assert.Equal(t, out.Totals, stored.Totals)
}

func TestPlanner_OptimizeFailureLeavesSchedule(t *testing.T) {
	o := &fakeOptimizer{err: fmt.Errorf("%w: status 502", optimizer.ErrUnavailable)}
	p, st := newTestPlanner(t, nil, o)
	seedRoster(t, st)
	ctx := context.Background()

	resp, err := p.Generate(ctx, "org-1", monday, monday)
	require.NoError(t, err)
	id := resp.Schedule.ID
	_, err = p.Assign(ctx, "org-1", id, 0, "s1", models.Slot{Date: "2024-01-01", Shift: "Lunch", StationID: "kitchen"})
	require.NoError(t, err)

	_, err = p.Optimize(ctx, "org-1", id, 1, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimizer.ErrUnavailable))

	stored, err := p.Get(ctx, "org-1", id)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Schedule.Revision)
	assert.Equal(t, "s1", stored.Schedule.Days[0].Shifts[0].Stations[0].Assigned[0].ID)
}

func TestPlanner_OptimizeNotConfigured(t *testing.T) {
	p, st := newTestPlanner(t, nil, nil)
	seedRoster(t, st)

	resp, err := p.Generate(context.Background(), "org-1", monday, monday)
	require.NoError(t, err)

	_, err = p.Optimize(context.Background(), "org-1", resp.Schedule.ID, 0, false)
	assert.ErrorIs(t, err, optimizer.ErrUnavailable)
}
