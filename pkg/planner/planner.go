package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/export"
	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/arnavshah/rota-api-go/pkg/optimizer"
	"github.com/arnavshah/rota-api-go/pkg/scheduler"
	"github.com/arnavshah/rota-api-go/pkg/store"
	"github.com/arnavshah/rota-api-go/pkg/weather"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned while a collaborator call for the same schedule is outstanding
	ErrBusy = errors.New("schedule has a pending weather or optimizer request")
	// ErrStaleRevision is returned when the caller's revision is behind the stored one
	ErrStaleRevision = store.ErrStaleRevision
)

// Planner runs the assignment engine against stored schedules. All network
// and database I/O happens here; the engine functions stay pure.
type Planner struct {
	store     store.Store
	weather   weather.Forecaster
	optimizer optimizer.Optimizer
	template  []models.ShiftTemplate
	logger    *zap.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a planner
func New(st store.Store, forecaster weather.Forecaster, opt optimizer.Optimizer, template []models.ShiftTemplate, logger *zap.Logger) *Planner {
	return &Planner{
		store:     st,
		weather:   forecaster,
		optimizer: opt,
		template:  template,
		logger:    logger,
		inflight:  make(map[string]bool),
	}
}

// AutoResponse is the schedule view plus what the allocation pass observed
type AutoResponse struct {
	models.ScheduleResponse
	WeatherAdjusted bool            `json:"weather_adjusted"`
	Forecast        models.Forecast `json:"forecast,omitempty"`
	WeatherError    string          `json:"weather_error,omitempty"`
}

// OptimizeResponse is the reconciled schedule plus identity resolutions
type OptimizeResponse struct {
	scheduler.ReconcileResult
	Unassigned    []models.Staff `json:"unassigned"`
	FairnessScore float64        `json:"fairness_score"`
}

// Template returns the shift template new schedules are built from
func (p *Planner) Template() []models.ShiftTemplate {
	return p.template
}

// Roster lists the organization's staff
func (p *Planner) Roster(ctx context.Context, orgID string) ([]models.Staff, error) {
	return p.store.ListStaff(ctx, orgID)
}

// Staff fetches one roster entry
func (p *Planner) Staff(ctx context.Context, orgID, id string) (models.Staff, error) {
	return p.store.GetStaff(ctx, orgID, id)
}

// SaveStaff creates or updates a roster entry
func (p *Planner) SaveStaff(ctx context.Context, orgID string, staff models.Staff) (models.Staff, error) {
	return p.store.SaveStaff(ctx, orgID, staff)
}

// ImportStaff saves a whole roster or none of it
func (p *Planner) ImportStaff(ctx context.Context, orgID string, roster []models.Staff) ([]models.Staff, error) {
	return p.store.SaveStaffBatch(ctx, orgID, roster)
}

// Generate creates and stores an empty schedule for the date range
func (p *Planner) Generate(ctx context.Context, orgID string, start, end time.Time) (*models.ScheduleResponse, error) {
	sched, err := scheduler.NewSchedule(orgID, start, end, p.template)
	if err != nil {
		return nil, err
	}
	if err := p.store.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	p.logger.Info("schedule generated",
		zap.String("organization_id", orgID),
		zap.String("schedule_id", sched.ID),
		zap.String("start", sched.Start),
		zap.String("end", sched.End),
	)
	roster, err := p.store.ListStaff(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return p.view(sched, roster, scheduler.ComputeTotals(sched)), nil
}

// Get loads a schedule with its derived figures
func (p *Planner) Get(ctx context.Context, orgID, id string) (*models.ScheduleResponse, error) {
	sched, roster, err := p.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return p.view(sched, roster, scheduler.ComputeTotals(sched)), nil
}

// Totals computes labor cost and hours of a stored schedule
func (p *Planner) Totals(ctx context.Context, orgID, id string) (models.Totals, error) {
	sched, err := p.store.GetSchedule(ctx, orgID, id)
	if err != nil {
		return models.Totals{}, err
	}
	return scheduler.ComputeTotals(sched), nil
}

// Unassigned lists roster members with no slot in the schedule
func (p *Planner) Unassigned(ctx context.Context, orgID, id string) ([]models.Staff, error) {
	sched, roster, err := p.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return scheduler.Unassigned(roster, sched), nil
}

// CheckConflicts reports why a staff member could not work on a date
func (p *Planner) CheckConflicts(ctx context.Context, orgID, id, staffID, date string) ([]models.Conflict, error) {
	sched, err := p.store.GetSchedule(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	day := sched.Day(date)
	if day == nil {
		return nil, fmt.Errorf("%w: no day %s", scheduler.ErrSlotNotFound, date)
	}
	staff, err := p.store.GetStaff(ctx, orgID, staffID)
	if err != nil {
		return nil, err
	}
	return scheduler.CheckConflicts(day, staff), nil
}

// ChangeRange re-derives the schedule for a new date range
func (p *Planner) ChangeRange(ctx context.Context, orgID, id string, revision int, start, end time.Time) (*models.ScheduleResponse, error) {
	return p.mutate(ctx, orgID, id, revision, func(s *models.Schedule, _ []models.Staff) error {
		return scheduler.Rederive(s, start, end, p.template)
	})
}

// SetComment replaces the schedule comment
func (p *Planner) SetComment(ctx context.Context, orgID, id string, revision int, comment string) (*models.ScheduleResponse, error) {
	return p.mutate(ctx, orgID, id, revision, func(s *models.Schedule, _ []models.Staff) error {
		s.Comment = comment
		return nil
	})
}

// Assign places a roster member into a slot
func (p *Planner) Assign(ctx context.Context, orgID, id string, revision int, staffID string, slot models.Slot) (*models.ScheduleResponse, error) {
	return p.mutate(ctx, orgID, id, revision, func(s *models.Schedule, roster []models.Staff) error {
		staff, ok := findStaff(roster, staffID)
		if !ok {
			return fmt.Errorf("staff %s: %w", staffID, store.ErrNotFound)
		}
		return scheduler.Assign(s, staff, slot)
	})
}

// Unassign removes a staff member from a slot
func (p *Planner) Unassign(ctx context.Context, orgID, id string, revision int, staffID string, slot models.Slot) (*models.ScheduleResponse, error) {
	return p.mutate(ctx, orgID, id, revision, func(s *models.Schedule, _ []models.Staff) error {
		return scheduler.Unassign(s, staffID, slot)
	})
}

// AutoAssign fills the schedule automatically. When useWeather is set the
// forecast is fetched first; a failed fetch falls back to plain staffing.
func (p *Planner) AutoAssign(ctx context.Context, orgID, id string, revision int, useWeather bool) (*AutoResponse, error) {
	if !p.begin(id) {
		return nil, ErrBusy
	}
	defer p.end(id)

	sched, roster, err := p.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if sched.Revision != revision {
		return nil, fmt.Errorf("schedule %s at revision %d: %w", id, revision, ErrStaleRevision)
	}

	resp := &AutoResponse{}
	var forecast models.Forecast
	if useWeather && p.weather != nil {
		forecast, err = p.weather.Forecast(ctx, sched.Days[0].Time(), sched.Days[len(sched.Days)-1].Time())
		if err != nil {
			p.logger.Warn("weather unavailable, allocating without adjustment",
				zap.String("schedule_id", id),
				zap.Error(err),
			)
			resp.WeatherError = err.Error()
			forecast = nil
		}
	}

	result := scheduler.AutoAssign(sched, roster, forecast)
	totals, err := p.store.SaveSchedule(ctx, sched)
	if err != nil {
		return nil, err
	}

	p.logger.Info("auto-assign complete",
		zap.String("schedule_id", id),
		zap.Bool("weather_adjusted", result.WeatherAdjusted),
		zap.Int("unassigned", len(result.Unassigned)),
	)
	resp.ScheduleResponse = *p.view(sched, roster, totals)
	resp.WeatherAdjusted = result.WeatherAdjusted
	resp.Forecast = forecast
	return resp, nil
}

// Optimize asks the external optimizer for a proposal and reconciles it onto
// the schedule. The stored schedule is untouched if the optimizer fails.
func (p *Planner) Optimize(ctx context.Context, orgID, id string, revision int, useWeather bool) (*OptimizeResponse, error) {
	if p.optimizer == nil {
		return nil, fmt.Errorf("%w: not configured", optimizer.ErrUnavailable)
	}
	if !p.begin(id) {
		return nil, ErrBusy
	}
	defer p.end(id)

	sched, roster, err := p.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if sched.Revision != revision {
		return nil, fmt.Errorf("schedule %s at revision %d: %w", id, revision, ErrStaleRevision)
	}

	req := optimizer.Request{
		OrganizationID: orgID,
		StartDate:      sched.Start,
		EndDate:        sched.End,
		Staff:          roster,
		Shifts:         p.template,
	}
	if useWeather && p.weather != nil {
		if forecast, err := p.weather.Forecast(ctx, sched.Days[0].Time(), sched.Days[len(sched.Days)-1].Time()); err == nil {
			req.Weather = forecast
		} else {
			p.logger.Warn("weather unavailable, optimizing without it", zap.String("schedule_id", id), zap.Error(err))
		}
	}

	proposal, err := p.optimizer.Optimize(ctx, req)
	if err != nil {
		return nil, err
	}

	result := scheduler.Reconcile(sched, roster, *proposal)
	for _, r := range result.Resolutions {
		if r.Method == scheduler.ResolvedSynthetic || r.Ambiguous {
			p.logger.Warn("optimizer staff reference resolved loosely",
				zap.String("schedule_id", id),
				zap.String("proposed_name", r.Proposed.Name),
				zap.String("method", string(r.Method)),
				zap.Bool("ambiguous", r.Ambiguous),
			)
		}
	}

	totals, err := p.store.SaveSchedule(ctx, sched)
	if err != nil {
		return nil, err
	}
	result.Totals = totals
	return &OptimizeResponse{
		ReconcileResult: result,
		Unassigned:      scheduler.Unassigned(roster, sched),
		FairnessScore:   scheduler.FairnessScore(roster, sched),
	}, nil
}

// Export renders the schedule as a spreadsheet
func (p *Planner) Export(ctx context.Context, orgID, id string) ([]byte, error) {
	sched, err := p.store.GetSchedule(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return export.Workbook(sched, scheduler.ComputeTotals(sched))
}

// mutate loads a schedule, applies fn and saves it. A failing fn leaves the
// stored schedule as it was.
func (p *Planner) mutate(ctx context.Context, orgID, id string, revision int, fn func(*models.Schedule, []models.Staff) error) (*models.ScheduleResponse, error) {
	sched, roster, err := p.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if sched.Revision != revision {
		return nil, fmt.Errorf("schedule %s at revision %d: %w", id, revision, ErrStaleRevision)
	}
	if err := fn(sched, roster); err != nil {
		return nil, err
	}
	totals, err := p.store.SaveSchedule(ctx, sched)
	if err != nil {
		return nil, err
	}
	return p.view(sched, roster, totals), nil
}

func (p *Planner) load(ctx context.Context, orgID, id string) (*models.Schedule, []models.Staff, error) {
	sched, err := p.store.GetSchedule(ctx, orgID, id)
	if err != nil {
		return nil, nil, err
	}
	roster, err := p.store.ListStaff(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	return sched, roster, nil
}

func (p *Planner) view(sched *models.Schedule, roster []models.Staff, totals models.Totals) *models.ScheduleResponse {
	return &models.ScheduleResponse{
		Schedule:      sched,
		Totals:        totals,
		Unassigned:    scheduler.Unassigned(roster, sched),
		UnderCovered:  scheduler.UnderCovered(sched),
		FairnessScore: scheduler.FairnessScore(roster, sched),
	}
}

func (p *Planner) begin(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[id] {
		return false
	}
	p.inflight[id] = true
	return true
}

func (p *Planner) end(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

func findStaff(roster []models.Staff, id string) (models.Staff, bool) {
	for _, st := range roster {
		if st.ID == id {
			return st, true
		}
	}
	return models.Staff{}, false
}
