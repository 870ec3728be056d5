package scheduler

import (
	"sort"
	"strings"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/google/uuid"
)

// SyntheticPerformanceScore is given to staff records made up during reconciliation
const SyntheticPerformanceScore = 80

// ResolutionMethod records how a proposed staff reference was matched
type ResolutionMethod string

const (
	ResolvedByID        ResolutionMethod = "id"
	ResolvedByFullName  ResolutionMethod = "full_name"
	ResolvedByFirstName ResolutionMethod = "first_name"
	ResolvedByLastName  ResolutionMethod = "last_name"
	ResolvedSynthetic   ResolutionMethod = "synthetic"
)

// Resolution describes one proposed reference and the staff it became
type Resolution struct {
	Date      string               `json:"date"`
	Shift     string               `json:"shift"`
	StationID string               `json:"station_id"`
	Proposed  models.ProposedStaff `json:"proposed"`
	StaffID   string               `json:"staff_id"`
	Method    ResolutionMethod     `json:"method"`
	Ambiguous bool                 `json:"ambiguous,omitempty"`
}

// ReconcileResult is the merged schedule plus what was learned merging it
type ReconcileResult struct {
	Schedule     *models.Schedule         `json:"schedule"`
	Totals       models.Totals            `json:"totals"`
	Resolutions  []Resolution             `json:"resolutions"`
	UnderCovered []models.StationCoverage `json:"under_covered"`
	Unmatched    []string                 `json:"unmatched,omitempty"`
	Reasoning    string                   `json:"reasoning"`
	Efficiency   float64                  `json:"efficiency"`
	CostSavings  float64                  `json:"cost_savings"`
}

// ResolveStaff matches a proposed reference against the roster: id first,
// then trimmed full name, then first name, then last name. The first roster
// match wins; ambiguous reports whether another roster member matched at the
// same stage. ok is false when nothing matched.
func ResolveStaff(ref models.ProposedStaff, roster []models.Staff) (staff models.Staff, method ResolutionMethod, ambiguous, ok bool) {
	if ref.ID != "" {
		for _, st := range roster {
			if st.ID == ref.ID {
				return st, ResolvedByID, false, true
			}
		}
	}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return models.Staff{}, "", false, false
	}
	stages := []struct {
		method ResolutionMethod
		match  func(models.Staff) bool
	}{
		{ResolvedByFullName, func(st models.Staff) bool { return strings.TrimSpace(st.Name) == name }},
		{ResolvedByFirstName, func(st models.Staff) bool { return firstName(st.Name) == firstName(name) }},
		{ResolvedByLastName, func(st models.Staff) bool { return lastName(st.Name) != "" && lastName(st.Name) == lastToken(name) }},
	}
	for _, stage := range stages {
		var found []models.Staff
		for _, st := range roster {
			if stage.match(st) {
				found = append(found, st)
			}
		}
		if len(found) > 0 {
			return found[0], stage.method, len(found) > 1, true
		}
	}
	return models.Staff{}, "", false, false
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// lastName is empty for single-token names, which the first-name stage covers
func lastName(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return ""
	}
	return fields[len(fields)-1]
}

func lastToken(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// synthesize builds a transient staff record from a proposal's own fields
func synthesize(ref models.ProposedStaff) models.Staff {
	id := ref.ID
	if id == "" {
		id = "synthetic-" + uuid.NewString()
	}
	return models.Staff{
		ID:               id,
		Name:             strings.TrimSpace(ref.Name),
		Role:             ref.Role,
		HourlyWage:       ref.HourlyWage,
		PerformanceScore: SyntheticPerformanceScore,
		Availability:     models.FullAvailability(),
		Synthetic:        true,
	}
}

// proposalIndex normalizes the proposal's outer keys for lookup
type proposalIndex struct {
	grid models.ProposalGrid
	days map[string]string
	used map[string]bool
}

func newProposalIndex(grid models.ProposalGrid) *proposalIndex {
	idx := &proposalIndex{grid: grid, days: make(map[string]string), used: make(map[string]bool)}
	for key := range grid {
		idx.days[strings.ToLower(strings.TrimSpace(key))] = key
	}
	return idx
}

// shifts finds the proposal entry for a day by ISO date, weekday or short weekday
func (p *proposalIndex) shifts(day *models.ScheduleDay) (string, map[string]map[string][]models.ProposedStaff) {
	long := models.WeekdayKey(day.Time())
	for _, k := range []string{day.Date, long, long[:3]} {
		if key, ok := p.days[k]; ok {
			return key, p.grid[key]
		}
	}
	return "", nil
}

func lookupFold[V any](m map[string]V, name string) (string, V, bool) {
	if v, ok := m[name]; ok {
		return name, v, true
	}
	for k, v := range m {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(name)) {
			return k, v, true
		}
	}
	var zero V
	return "", zero, false
}

// Reconcile overwrites the schedule with an externally produced proposal.
// Proposed staff are resolved against the roster or replaced by synthetic
// records, so a proposed slot is never left empty. Qualification and
// availability are not enforced. Totals are computed from the merged schedule.
func Reconcile(s *models.Schedule, roster []models.Staff, proposal models.Proposal) ReconcileResult {
	s.ClearAssignments()
	idx := newProposalIndex(proposal.Schedule)
	synthetic := make(map[string]models.Staff)
	var resolutions []Resolution

	for i := range s.Days {
		day := &s.Days[i]
		dayKey, shifts := idx.shifts(day)
		if shifts == nil {
			continue
		}
		for j := range day.Shifts {
			shift := &day.Shifts[j]
			shiftKey, stations, ok := lookupFold(shifts, shift.Name)
			if !ok {
				continue
			}
			for k := range shift.Stations {
				station := &shift.Stations[k]
				stationKey, refs, ok := lookupFold(stations, station.Name)
				if !ok {
					continue
				}
				idx.used[dayKey+"/"+shiftKey+"/"+stationKey] = true

				for _, ref := range refs {
					staff, method, ambiguous, found := ResolveStaff(ref, roster)
					if !found {
						name := strings.TrimSpace(ref.Name)
						if cached, seen := synthetic[name]; seen {
							staff = cached
						} else {
							staff = synthesize(ref)
							synthetic[name] = staff
						}
						method = ResolvedSynthetic
					}
					if station.Has(staff.ID) {
						continue
					}
					station.Assigned = append(station.Assigned, staff)
					resolutions = append(resolutions, Resolution{
						Date:      day.Date,
						Shift:     shift.Name,
						StationID: station.ID,
						Proposed:  ref,
						StaffID:   staff.ID,
						Method:    method,
						Ambiguous: ambiguous,
					})
				}
				station.Recolor()
			}
		}
	}

	var unmatched []string
	for dayKey, shifts := range proposal.Schedule {
		for shiftKey, stations := range shifts {
			for stationKey := range stations {
				key := dayKey + "/" + shiftKey + "/" + stationKey
				if !idx.used[key] {
					unmatched = append(unmatched, key)
				}
			}
		}
	}
	sort.Strings(unmatched)

	return ReconcileResult{
		Schedule:     s,
		Totals:       ComputeTotals(s),
		Resolutions:  resolutions,
		UnderCovered: UnderCovered(s),
		Unmatched:    unmatched,
		Reasoning:    proposal.Reasoning,
		Efficiency:   proposal.Efficiency,
		CostSavings:  proposal.CostSavings,
	}
}
