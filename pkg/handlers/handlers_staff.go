package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// ListStaff returns the organization's roster
func (h *Handler) ListStaff(c *gin.Context) {
	roster, err := h.Planner.Roster(c.Request.Context(), c.GetString("organization_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": roster})
}

// CreateStaff adds a roster entry. A client-chosen id is kept.
func (h *Handler) CreateStaff(c *gin.Context) {
	var st models.Staff
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.saveStaff(c, st, http.StatusCreated)
}

// UpdateStaff replaces a roster entry
func (h *Handler) UpdateStaff(c *gin.Context) {
	orgID := c.GetString("organization_id")
	id := c.Param("id")
	if _, err := h.Planner.Staff(c.Request.Context(), orgID, id); err != nil {
		h.writeError(c, err)
		return
	}

	var st models.Staff
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st.ID = id
	h.saveStaff(c, st, http.StatusOK)
}

func (h *Handler) saveStaff(c *gin.Context, st models.Staff, status int) {
	st.Name = strings.TrimSpace(st.Name)
	st.Synthetic = false
	if problems := validateStaff(st, h.stationNames()); len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid staff", "problems": problems})
		return
	}
	saved, err := h.Planner.SaveStaff(c.Request.Context(), c.GetString("organization_id"), st)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, saved)
}

// ImportStaffCSV handles a roster CSV upload. Columns: id, name, role,
// hourly_wage, performance_score, stations, available_days, preferred_days.
// Lists are '|' separated. Without an available_days column every day is
// available. Nothing is saved unless every row is valid.
func (h *Handler) ImportStaffCSV(c *gin.Context) {
	file, _ := c.FormFile("staff_file")
	if file == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "staff_file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open staff file"})
		return
	}
	defer f.Close()

	roster, problems, err := parseStaffCSV(f, h.stationNames())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rows", "problems": problems})
		return
	}

	saved, err := h.Planner.ImportStaff(c.Request.Context(), c.GetString("organization_id"), roster)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": len(saved), "staff": saved})
}

func parseStaffCSV(r io.Reader, stations map[string]bool) ([]models.Staff, map[int][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, nil, errors.New("failed to read staff header")
	}
	cols := make(map[string]int)
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, nil, errors.New("name column is required")
	}

	get := func(record []string, col string) string {
		if i, ok := cols[col]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var roster []models.Staff
	problems := make(map[int][]string)
	seen := make(map[string]int)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			problems[line] = append(problems[line], err.Error())
			continue
		}

		st := models.Staff{
			ID:       get(record, "id"),
			Name:     get(record, "name"),
			Role:     get(record, "role"),
			Stations: splitList(get(record, "stations")),
		}
		if v := get(record, "hourly_wage"); v != "" {
			wage, err := strconv.ParseFloat(v, 64)
			if err != nil {
				problems[line] = append(problems[line], fmt.Sprintf("invalid hourly_wage %q", v))
			}
			st.HourlyWage = wage
		}
		if v := get(record, "performance_score"); v != "" {
			score, err := strconv.Atoi(v)
			if err != nil {
				problems[line] = append(problems[line], fmt.Sprintf("invalid performance_score %q", v))
			}
			st.PerformanceScore = score
		}

		if _, ok := cols["available_days"]; ok {
			st.Availability = make(map[string]models.DayAvailability)
			for _, d := range splitList(get(record, "available_days")) {
				st.Availability[strings.ToLower(d)] = models.DayAvailability{Available: true}
			}
		} else {
			st.Availability = models.FullAvailability()
		}
		for _, d := range splitList(get(record, "preferred_days")) {
			day := strings.ToLower(d)
			a := st.Availability[day]
			a.Preferred = true
			st.Availability[day] = a
		}

		problems[line] = append(problems[line], validateStaff(st, stations)...)
		if st.ID != "" {
			if first, ok := seen[st.ID]; ok {
				problems[line] = append(problems[line], fmt.Sprintf("duplicate staff id %q (first on line %d)", st.ID, first))
			} else {
				seen[st.ID] = line
			}
		}
		if len(problems[line]) == 0 {
			delete(problems, line)
		}
		roster = append(roster, st)
	}
	return roster, problems, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
