package models

import (
	"strings"
	"time"
)

// Impact is the staffing impact the weather provider assigns to a day
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// ForecastDay is one day of the weather provider's staffing forecast.
// Day is an ISO date; weekday names are accepted from older providers.
type ForecastDay struct {
	Day                    string `json:"day"`
	StaffingImpact         Impact `json:"staffingImpact"`
	StaffingRecommendation string `json:"staffingRecommendation"`
}

// Forecast is the ordered weekly forecast
type Forecast []ForecastDay

// For returns the forecast entry for a date, if any
func (f Forecast) For(date time.Time) (ForecastDay, bool) {
	iso := date.Format(DateLayout)
	for _, d := range f {
		if d.Day == iso {
			return d, true
		}
	}
	long := WeekdayKey(date)
	for _, d := range f {
		day := strings.ToLower(strings.TrimSpace(d.Day))
		if day == long || (len(day) == 3 && strings.HasPrefix(long, day)) {
			return d, true
		}
	}
	return ForecastDay{}, false
}

// ProposedStaff is a staff reference inside an optimizer proposal
type ProposedStaff struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name"`
	Role       string  `json:"role,omitempty"`
	HourlyWage float64 `json:"hourlyWage,omitempty"`
}

// ProposalGrid is day name -> shift name -> station display name -> staff
type ProposalGrid map[string]map[string]map[string][]ProposedStaff

// Proposal is the optimizer's suggested schedule. Everything except the grid
// is advisory; self-reported totals are never used as cost data.
type Proposal struct {
	Schedule    ProposalGrid `json:"schedule"`
	Reasoning   string       `json:"reasoning"`
	Efficiency  float64      `json:"efficiency"`
	CostSavings float64      `json:"costSavings"`
	TotalCost   float64      `json:"totalCost,omitempty"`
	TotalHours  float64      `json:"totalHours,omitempty"`
}
