package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/google/uuid"
)

// MaxScheduleDays caps the length of a generated schedule
const MaxScheduleDays = 31

// ShiftsPerDay is the number of shifts every schedule day carries
const ShiftsPerDay = 2

var (
	ErrDoubleBooking   = errors.New("staff already assigned on this day")
	ErrUnavailable     = errors.New("staff not available on this weekday")
	ErrNotQualified    = errors.New("staff not qualified for station")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrNotAssigned     = errors.New("staff not assigned to slot")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrInvalidTemplate = errors.New("invalid shift template")
)

var kindErrors = map[models.ConflictKind]error{
	models.ConflictDoubleBooking: ErrDoubleBooking,
	models.ConflictUnavailable:   ErrUnavailable,
	models.ConflictNotQualified:  ErrNotQualified,
}

// RejectionError is returned when an assignment is refused. The schedule is
// left untouched.
type RejectionError struct {
	Conflicts []models.Conflict
}

func (e *RejectionError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s: %s", c.Kind, c.Detail))
	}
	return "assignment rejected: " + strings.Join(parts, "; ")
}

// Is matches the sentinel of any contained conflict kind
func (e *RejectionError) Is(target error) bool {
	for _, c := range e.Conflicts {
		if kindErrors[c.Kind] == target {
			return true
		}
	}
	return false
}

// ValidateTemplate checks the shift template used to build schedule days
func ValidateTemplate(template []models.ShiftTemplate) error {
	if len(template) != ShiftsPerDay {
		return fmt.Errorf("%w: need %d shifts, got %d", ErrInvalidTemplate, ShiftsPerDay, len(template))
	}
	ids := make(map[string]bool)
	for _, sh := range template {
		if strings.TrimSpace(sh.Name) == "" || sh.DurationHours <= 0 {
			return fmt.Errorf("%w: shift %q needs a name and a positive duration", ErrInvalidTemplate, sh.Name)
		}
		for _, st := range sh.Stations {
			if st.ID == "" || st.Name == "" {
				return fmt.Errorf("%w: station in shift %q needs an id and a name", ErrInvalidTemplate, sh.Name)
			}
			if st.Required < 1 {
				return fmt.Errorf("%w: station %q must require at least one staff member", ErrInvalidTemplate, st.Name)
			}
			key := sh.Name + "/" + st.ID
			if ids[key] {
				return fmt.Errorf("%w: duplicate station id %q in shift %q", ErrInvalidTemplate, st.ID, sh.Name)
			}
			ids[key] = true
		}
	}
	return nil
}

// NewSchedule builds an empty schedule for the inclusive date range
func NewSchedule(orgID string, start, end time.Time, template []models.ShiftTemplate) (*models.Schedule, error) {
	days, err := buildDays(start, end, template)
	if err != nil {
		return nil, err
	}
	return &models.Schedule{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Start:          days[0].Date,
		End:            days[len(days)-1].Date,
		Days:           days,
	}, nil
}

// Rederive resets a schedule to a new date range. Comment and assignments are
// cleared; identity and revision are kept.
func Rederive(s *models.Schedule, start, end time.Time, template []models.ShiftTemplate) error {
	days, err := buildDays(start, end, template)
	if err != nil {
		return err
	}
	s.Days = days
	s.Start = days[0].Date
	s.End = days[len(days)-1].Date
	s.Comment = ""
	return nil
}

func buildDays(start, end time.Time, template []models.ShiftTemplate) ([]models.ScheduleDay, error) {
	if err := ValidateTemplate(template); err != nil {
		return nil, err
	}
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, end.Format(models.DateLayout), start.Format(models.DateLayout))
	}
	count := int(end.Sub(start).Hours()/24) + 1
	if count > MaxScheduleDays {
		return nil, fmt.Errorf("%w: %d days exceeds the limit of %d", ErrInvalidRange, count, MaxScheduleDays)
	}

	days := make([]models.ScheduleDay, 0, count)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := models.ScheduleDay{Date: d.Format(models.DateLayout)}
		for _, tpl := range template {
			shift := models.Shift{Name: tpl.Name, DurationHours: tpl.DurationHours}
			for _, st := range tpl.Stations {
				req := models.StationRequirement{ID: st.ID, Name: st.Name, Required: st.Required}
				req.Recolor()
				shift.Stations = append(shift.Stations, req)
			}
			day.Shifts = append(day.Shifts, shift)
		}
		days = append(days, day)
	}
	return days, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckConflicts reports why the staff member could not take a slot on the
// given day. Qualification is not considered here.
func CheckConflicts(day *models.ScheduleDay, staff models.Staff) []models.Conflict {
	var conflicts []models.Conflict
	if day.Has(staff.ID) {
		conflicts = append(conflicts, models.Conflict{
			Kind:    models.ConflictDoubleBooking,
			StaffID: staff.ID,
			Date:    day.Date,
			Detail:  fmt.Sprintf("%s is already assigned on %s", staff.Name, day.Date),
		})
	}
	if !staff.AvailableOn(day.Time()) {
		conflicts = append(conflicts, models.Conflict{
			Kind:    models.ConflictUnavailable,
			StaffID: staff.ID,
			Date:    day.Date,
			Detail:  fmt.Sprintf("%s is not available on %s", staff.Name, models.WeekdayKey(day.Time())),
		})
	}
	return conflicts
}

// Assign places a staff member into a slot after checking conflicts and
// qualification. Nothing is changed when an error is returned.
func Assign(s *models.Schedule, staff models.Staff, slot models.Slot) error {
	day, _, station, ok := s.Locate(slot)
	if !ok {
		return fmt.Errorf("%w: %s/%s/%s", ErrSlotNotFound, slot.Date, slot.Shift, slot.StationID)
	}

	if conflicts := CheckConflicts(day, staff); len(conflicts) > 0 {
		return &RejectionError{Conflicts: conflicts}
	}
	if !staff.QualifiedFor(station.Name) {
		return &RejectionError{Conflicts: []models.Conflict{{
			Kind:    models.ConflictNotQualified,
			StaffID: staff.ID,
			Date:    day.Date,
			Detail:  fmt.Sprintf("%s is not qualified for %s", staff.Name, station.Name),
		}}}
	}

	station.Assigned = append(station.Assigned, staff)
	station.Recolor()
	return nil
}

// Unassign removes a staff member from a slot, returning them to the pool
func Unassign(s *models.Schedule, staffID string, slot models.Slot) error {
	_, _, station, ok := s.Locate(slot)
	if !ok {
		return fmt.Errorf("%w: %s/%s/%s", ErrSlotNotFound, slot.Date, slot.Shift, slot.StationID)
	}
	for i, a := range station.Assigned {
		if a.ID == staffID {
			station.Assigned = append(station.Assigned[:i:i], station.Assigned[i+1:]...)
			station.Recolor()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotAssigned, staffID)
}

// Unassigned returns the roster members that occupy no slot in the schedule,
// in roster order
func Unassigned(roster []models.Staff, s *models.Schedule) []models.Staff {
	placed := assignedIDs(s)
	out := make([]models.Staff, 0, len(roster))
	for _, st := range roster {
		if !placed[st.ID] {
			out = append(out, st)
		}
	}
	return out
}

func assignedIDs(s *models.Schedule) map[string]bool {
	ids := make(map[string]bool)
	for i := range s.Days {
		for _, sh := range s.Days[i].Shifts {
			for _, st := range sh.Stations {
				for _, a := range st.Assigned {
					ids[a.ID] = true
				}
			}
		}
	}
	return ids
}
