package scheduler

import (
	"math"

	"github.com/arnavshah/rota-api-go/pkg/models"
)

// ComputeTotals sums labor cost and hours over every assignment. Safe on a
// partially filled schedule.
func ComputeTotals(s *models.Schedule) models.Totals {
	var t models.Totals
	for _, day := range s.Days {
		for _, sh := range day.Shifts {
			for _, st := range sh.Stations {
				for _, staff := range st.Assigned {
					t.TotalLaborCost += staff.HourlyWage * sh.DurationHours
					t.TotalHours += sh.DurationHours
				}
			}
		}
	}
	return t
}

// Coverage lists every station of the schedule with its derived status
func Coverage(s *models.Schedule) []models.StationCoverage {
	var out []models.StationCoverage
	for _, day := range s.Days {
		for _, sh := range day.Shifts {
			for _, st := range sh.Stations {
				out = append(out, models.StationCoverage{
					Date:      day.Date,
					Shift:     sh.Name,
					StationID: st.ID,
					Station:   st.Name,
					Required:  st.Required,
					Assigned:  len(st.Assigned),
					Status:    models.DeriveColor(len(st.Assigned), st.Required),
				})
			}
		}
	}
	return out
}

// UnderCovered lists stations short of their requirement
func UnderCovered(s *models.Schedule) []models.StationCoverage {
	var out []models.StationCoverage
	for _, c := range Coverage(s) {
		if c.Status != models.ColorGreen {
			out = append(out, c)
		}
	}
	return out
}

// HoursByStaff returns assigned hours keyed by staff id
func HoursByStaff(s *models.Schedule) map[string]float64 {
	hours := make(map[string]float64)
	for _, day := range s.Days {
		for _, sh := range day.Shifts {
			for _, st := range sh.Stations {
				for _, staff := range st.Assigned {
					hours[staff.ID] += sh.DurationHours
				}
			}
		}
	}
	return hours
}

// FairnessScore returns a percentage (0-100) representing how evenly hours
// are spread over the roster. 100% is perfectly fair (Standard Deviation = 0).
func FairnessScore(roster []models.Staff, s *models.Schedule) float64 {
	if len(roster) == 0 {
		return 100.0
	}

	hours := HoursByStaff(s)
	var sum float64
	for _, st := range roster {
		sum += hours[st.ID]
	}
	if sum == 0 {
		return 100.0
	}

	mean := sum / float64(len(roster))
	var varianceSum float64
	for _, st := range roster {
		diff := hours[st.ID] - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(roster)))

	// 100% means SD is 0. 0% means SD is >= mean.
	score := (1.0 - (stdDev / mean)) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}
