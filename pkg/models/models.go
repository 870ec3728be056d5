package models

import (
	"slices"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar days
const DateLayout = "2006-01-02"

// Weekdays lists the availability keys in calendar order
var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// WeekdayKey returns the lowercase weekday name used as availability key
func WeekdayKey(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// DayAvailability is one weekday entry of a staff member's availability
type DayAvailability struct {
	Available bool `json:"available"`
	Preferred bool `json:"preferred"`
}

// FullAvailability marks every weekday as available
func FullAvailability() map[string]DayAvailability {
	avail := make(map[string]DayAvailability, len(Weekdays))
	for _, d := range Weekdays {
		avail[d] = DayAvailability{Available: true}
	}
	return avail
}

// Staff represents a person on the restaurant roster
type Staff struct {
	ID               string                     `json:"id"`
	Name             string                     `json:"name"`
	Role             string                     `json:"role,omitempty"`
	HourlyWage       float64                    `json:"hourly_wage"`
	PerformanceScore int                        `json:"performance_score"`
	Stations         []string                   `json:"stations"`
	Availability     map[string]DayAvailability `json:"availability"`
	Synthetic        bool                       `json:"synthetic,omitempty"`
}

// QualifiedFor reports whether the station name is in the staff member's station list
func (s Staff) QualifiedFor(station string) bool {
	return slices.Contains(s.Stations, station)
}

// AvailableOn reports whether the weekday of date is marked available
func (s Staff) AvailableOn(date time.Time) bool {
	a, ok := s.Availability[WeekdayKey(date)]
	return ok && a.Available
}

// Color is the derived coverage status of a station
type Color string

const (
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
)

// DeriveColor maps an assigned count against the requirement.
// Requirements are at least one, so an empty station is always red.
func DeriveColor(assigned, required int) Color {
	switch {
	case assigned == 0:
		return ColorRed
	case assigned >= required:
		return ColorGreen
	default:
		return ColorYellow
	}
}

// StationRequirement is a staffed work area inside a shift
type StationRequirement struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Required int     `json:"required"`
	Assigned []Staff `json:"assigned"`
	Status   Color   `json:"status"`
}

// Recolor recomputes Status from the current assignments
func (st *StationRequirement) Recolor() {
	st.Status = DeriveColor(len(st.Assigned), st.Required)
}

// Has reports whether the staff member occupies this station
func (st *StationRequirement) Has(staffID string) bool {
	for _, a := range st.Assigned {
		if a.ID == staffID {
			return true
		}
	}
	return false
}

// Shift is a service period of a day, e.g. Lunch or Dinner
type Shift struct {
	Name          string               `json:"name"`
	DurationHours float64              `json:"duration_hours"`
	Stations      []StationRequirement `json:"stations"`
}

// Station finds a station requirement by id
func (sh *Shift) Station(id string) *StationRequirement {
	for i := range sh.Stations {
		if sh.Stations[i].ID == id {
			return &sh.Stations[i]
		}
	}
	return nil
}

// ScheduleDay holds the two shifts of one calendar date
type ScheduleDay struct {
	Date   string  `json:"date"`
	Shifts []Shift `json:"shifts"`
}

// Time parses the day's date. Dates are validated when the schedule is built.
func (d *ScheduleDay) Time() time.Time {
	t, _ := time.Parse(DateLayout, d.Date)
	return t
}

// Shift finds a shift by name, ignoring case
func (d *ScheduleDay) Shift(name string) *Shift {
	for i := range d.Shifts {
		if strings.EqualFold(d.Shifts[i].Name, strings.TrimSpace(name)) {
			return &d.Shifts[i]
		}
	}
	return nil
}

// Has reports whether the staff member occupies any slot of the day
func (d *ScheduleDay) Has(staffID string) bool {
	for i := range d.Shifts {
		for j := range d.Shifts[i].Stations {
			if d.Shifts[i].Stations[j].Has(staffID) {
				return true
			}
		}
	}
	return false
}

// Slot addresses one station of one shift of one day
type Slot struct {
	Date      string `json:"date" binding:"required"`
	Shift     string `json:"shift" binding:"required"`
	StationID string `json:"station_id" binding:"required"`
}

// Schedule is a contiguous, inclusive range of schedule days
type Schedule struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Start          string        `json:"start"`
	End            string        `json:"end"`
	Comment        string        `json:"comment"`
	Revision       int           `json:"revision"`
	Days           []ScheduleDay `json:"days"`
}

// Day finds a schedule day by ISO date
func (s *Schedule) Day(date string) *ScheduleDay {
	for i := range s.Days {
		if s.Days[i].Date == date {
			return &s.Days[i]
		}
	}
	return nil
}

// Locate resolves a slot to its day, shift and station
func (s *Schedule) Locate(slot Slot) (*ScheduleDay, *Shift, *StationRequirement, bool) {
	day := s.Day(slot.Date)
	if day == nil {
		return nil, nil, nil, false
	}
	shift := day.Shift(slot.Shift)
	if shift == nil {
		return day, nil, nil, false
	}
	station := shift.Station(slot.StationID)
	if station == nil {
		return day, shift, nil, false
	}
	return day, shift, station, true
}

// ClearAssignments empties every slot and resets colors
func (s *Schedule) ClearAssignments() {
	for i := range s.Days {
		for j := range s.Days[i].Shifts {
			for k := range s.Days[i].Shifts[j].Stations {
				st := &s.Days[i].Shifts[j].Stations[k]
				st.Assigned = nil
				st.Recolor()
			}
		}
	}
}

// Clone returns a deep copy of the schedule
func (s *Schedule) Clone() *Schedule {
	out := *s
	out.Days = make([]ScheduleDay, len(s.Days))
	for i, d := range s.Days {
		nd := ScheduleDay{Date: d.Date, Shifts: make([]Shift, len(d.Shifts))}
		for j, sh := range d.Shifts {
			nsh := Shift{Name: sh.Name, DurationHours: sh.DurationHours, Stations: make([]StationRequirement, len(sh.Stations))}
			for k, st := range sh.Stations {
				nst := st
				nst.Assigned = append([]Staff(nil), st.Assigned...)
				nsh.Stations[k] = nst
			}
			nd.Shifts[j] = nsh
		}
		out.Days[i] = nd
	}
	return &out
}

// StationTemplate describes a station created for every shift instance
type StationTemplate struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Required int    `json:"required" yaml:"required"`
}

// ShiftTemplate describes a shift created for every schedule day
type ShiftTemplate struct {
	Name          string            `json:"name" yaml:"name"`
	DurationHours float64           `json:"duration_hours" yaml:"duration_hours"`
	Stations      []StationTemplate `json:"stations" yaml:"stations"`
}

// ConflictKind names why an assignment would be invalid
type ConflictKind string

const (
	ConflictDoubleBooking ConflictKind = "DoubleBooking"
	ConflictUnavailable   ConflictKind = "Unavailable"
	ConflictNotQualified  ConflictKind = "NotQualified"
)

// Conflict represents one reason a staff member cannot take a slot
type Conflict struct {
	Kind    ConflictKind `json:"kind"`
	StaffID string       `json:"staff_id"`
	Date    string       `json:"date"`
	Detail  string       `json:"detail"`
}

// Totals is the labor cost and hours derived from assignments
type Totals struct {
	TotalLaborCost float64 `json:"total_labor_cost"`
	TotalHours     float64 `json:"total_hours"`
}

// Add returns the sum of two totals
func (t Totals) Add(o Totals) Totals {
	return Totals{TotalLaborCost: t.TotalLaborCost + o.TotalLaborCost, TotalHours: t.TotalHours + o.TotalHours}
}

// StationCoverage is one row of the coverage summary
type StationCoverage struct {
	Date      string `json:"date"`
	Shift     string `json:"shift"`
	StationID string `json:"station_id"`
	Station   string `json:"station"`
	Required  int    `json:"required"`
	Assigned  int    `json:"assigned"`
	Status    Color  `json:"status"`
}

// ScheduleResponse is the data structure returned by schedule endpoints
type ScheduleResponse struct {
	Schedule      *Schedule         `json:"schedule"`
	Totals        Totals            `json:"totals"`
	Unassigned    []Staff           `json:"unassigned"`
	UnderCovered  []StationCoverage `json:"under_covered"`
	FairnessScore float64           `json:"fairness_score"`
}
