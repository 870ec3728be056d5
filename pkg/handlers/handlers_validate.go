package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// validateStaff lists everything wrong with a roster entry. stations holds
// the station names the shift template knows about.
func validateStaff(st models.Staff, stations map[string]bool) []string {
	var problems []string
	if strings.TrimSpace(st.Name) == "" {
		problems = append(problems, "name is required")
	}
	if st.HourlyWage < 0 {
		problems = append(problems, "hourly_wage must not be negative")
	}
	if st.PerformanceScore < 0 || st.PerformanceScore > 100 {
		problems = append(problems, "performance_score must be between 0 and 100")
	}
	for _, name := range st.Stations {
		if !stations[name] {
			problems = append(problems, fmt.Sprintf("unknown station %q", name))
		}
	}
	for day := range st.Availability {
		if !slices.Contains(models.Weekdays, day) {
			problems = append(problems, fmt.Sprintf("unknown availability day %q", day))
		}
	}
	slices.Sort(problems)
	return problems
}

func (h *Handler) stationNames() map[string]bool {
	names := make(map[string]bool)
	for _, sh := range h.Planner.Template() {
		for _, st := range sh.Stations {
			names[st.Name] = true
		}
	}
	return names
}

// ValidateRoster checks a roster without saving it
func (h *Handler) ValidateRoster(c *gin.Context) {
	var input struct {
		Staff []models.Staff `json:"staff"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	if len(input.Staff) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": "At least one staff member is required",
		})
		return
	}

	stations := h.stationNames()
	ids := make(map[string]bool)
	problems := make(map[string][]string)
	for i, st := range input.Staff {
		ref := st.ID
		if ref == "" {
			ref = fmt.Sprintf("#%d", i)
		} else if ids[st.ID] {
			problems[ref] = append(problems[ref], "duplicate staff id")
		}
		ids[st.ID] = true
		if p := validateStaff(st, stations); len(p) > 0 {
			problems[ref] = append(problems[ref], p...)
		}
	}

	if len(problems) > 0 {
		c.JSON(http.StatusOK, gin.H{"valid": false, "problems": problems})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"stats": gin.H{
			"staff_count":   len(input.Staff),
			"station_count": len(stations),
		},
	})
}
