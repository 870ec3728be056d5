package scheduler

import (
	"cmp"
	"math"
	"slices"

	"github.com/arnavshah/rota-api-go/pkg/models"
)

// AutoResult is the outcome of an automatic allocation pass
type AutoResult struct {
	Schedule        *models.Schedule `json:"schedule"`
	Unassigned      []models.Staff   `json:"unassigned"`
	WeatherAdjusted bool             `json:"weather_adjusted"`
}

// CapacityMultiplier maps a weather impact to a staffing multiplier
func CapacityMultiplier(impact models.Impact) float64 {
	switch impact {
	case models.ImpactHigh:
		return 0.7
	case models.ImpactMedium:
		return 0.85
	default:
		return 1.0
	}
}

// AdjustedCapacity scales a station requirement by the weather impact and
// never drops below one
func AdjustedCapacity(required int, impact models.Impact) int {
	return max(1, int(math.Round(float64(required)*CapacityMultiplier(impact))))
}

// AutoAssign fills the schedule in one pass over days, shifts and stations.
// Each roster member is placed at most once across the whole pass. A nil
// forecast, or a day without a forecast entry, uses the plain requirement and
// roster order. Existing assignments are replaced.
func AutoAssign(s *models.Schedule, roster []models.Staff, forecast models.Forecast) AutoResult {
	s.ClearAssignments()
	pool := slices.Clone(roster)
	adjusted := false

	for i := range s.Days {
		day := &s.Days[i]
		weather, hasWeather := forecast.For(day.Time())

		for j := range day.Shifts {
			for k := range day.Shifts[j].Stations {
				station := &day.Shifts[j].Stations[k]

				var candidates []models.Staff
				for _, st := range pool {
					if st.QualifiedFor(station.Name) && len(CheckConflicts(day, st)) == 0 {
						candidates = append(candidates, st)
					}
				}

				capacity := station.Required
				if hasWeather {
					adjusted = true
					capacity = AdjustedCapacity(station.Required, weather.StaffingImpact)
					// Stronger performers first when conditions are adverse
					if weather.StaffingImpact == models.ImpactHigh || weather.StaffingImpact == models.ImpactMedium {
						slices.SortStableFunc(candidates, func(a, b models.Staff) int {
							return cmp.Compare(b.PerformanceScore, a.PerformanceScore)
						})
					}
				}

				chosen := candidates[:min(capacity, len(candidates))]
				if len(chosen) == 0 {
					continue
				}
				station.Assigned = append(station.Assigned, chosen...)
				station.Recolor()

				taken := make(map[string]bool, len(chosen))
				for _, c := range chosen {
					taken[c.ID] = true
				}
				pool = slices.DeleteFunc(pool, func(st models.Staff) bool { return taken[st.ID] })
			}
		}
	}

	return AutoResult{Schedule: s, Unassigned: pool, WeatherAdjusted: adjusted}
}
