package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type rangeRequest struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

func (r rangeRequest) parse() (time.Time, time.Time, error) {
	start, err := time.Parse(models.DateLayout, r.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", r.Start)
	}
	end, err := time.Parse(models.DateLayout, r.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", r.End)
	}
	return start, end, nil
}

// revisioned is embedded by every mutating request. A pointer so that
// revision 0 still counts as present.
type revisioned struct {
	Revision *int `json:"revision" binding:"required"`
}

type slotRequest struct {
	revisioned
	models.Slot
	StaffID string `json:"staff_id" binding:"required"`
}

type fillRequest struct {
	revisioned
	UseWeather *bool `json:"use_weather"`
}

func (r fillRequest) weather() bool {
	return r.UseWeather == nil || *r.UseWeather
}

// CreateSchedule generates an empty schedule for a date range
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, err := req.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Planner.Generate(c.Request.Context(), c.GetString("organization_id"), start, end)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.recordPlacement(c, 1, 0)
	c.JSON(http.StatusCreated, resp)
}

// GetSchedule returns a schedule with totals, coverage and unassigned staff
func (h *Handler) GetSchedule(c *gin.Context) {
	resp, err := h.Planner.Get(c.Request.Context(), c.GetString("organization_id"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ChangeRange re-derives a schedule for a new date range
func (h *Handler) ChangeRange(c *gin.Context) {
	var req struct {
		revisioned
		rangeRequest
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, err := req.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Planner.ChangeRange(c.Request.Context(), c.GetString("organization_id"), c.Param("id"), *req.Revision, start, end)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SetComment replaces a schedule's comment
func (h *Handler) SetComment(c *gin.Context) {
	var req struct {
		revisioned
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Planner.SetComment(c.Request.Context(), c.GetString("organization_id"), c.Param("id"), *req.Revision, req.Comment)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Assign places a staff member into a slot
func (h *Handler) Assign(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Planner.Assign(c.Request.Context(), c.GetString("organization_id"), c.Param("id"), *req.Revision, req.StaffID, req.Slot)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.recordPlacement(c, 0, 1)
	c.JSON(http.StatusOK, resp)
}

// Unassign removes a staff member from a slot
func (h *Handler) Unassign(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Planner.Unassign(c.Request.Context(), c.GetString("organization_id"), c.Param("id"), *req.Revision, req.StaffID, req.Slot)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckConflicts reports whether a staff member could work on a date
func (h *Handler) CheckConflicts(c *gin.Context) {
	var req struct {
		StaffID string `json:"staff_id" binding:"required"`
		Date    string `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conflicts, err := h.Planner.CheckConflicts(c.Request.Context(), c.GetString("organization_id"), c.Param("id"), req.StaffID, req.Date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": len(conflicts) == 0, "conflicts": conflicts})
}

// AutoAssign fills the schedule, adjusted for weather unless disabled
func (h *Handler) AutoAssign(c *gin.Context) {
	var req fillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Planner.AutoAssign(c.Request.Context(), c.GetString("organization_id"), c.Param("id"), *req.Revision, req.weather())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.recordPlacement(c, 0, placed(resp.Schedule))
	c.JSON(http.StatusOK, resp)
}

// Optimize replaces the schedule with the external optimizer's proposal
func (h *Handler) Optimize(c *gin.Context) {
	var req fillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Planner.Optimize(c.Request.Context(), c.GetString("organization_id"), c.Param("id"), *req.Revision, req.weather())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.recordPlacement(c, 0, placed(resp.Schedule))
	c.JSON(http.StatusOK, resp)
}

// Totals returns labor cost and hours
func (h *Handler) Totals(c *gin.Context) {
	totals, err := h.Planner.Totals(c.Request.Context(), c.GetString("organization_id"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// Unassigned lists roster members without a slot
func (h *Handler) Unassigned(c *gin.Context) {
	staff, err := h.Planner.Unassigned(c.Request.Context(), c.GetString("organization_id"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if staff == nil {
		staff = []models.Staff{}
	}
	c.JSON(http.StatusOK, gin.H{"unassigned": staff})
}

// ExportXLSX downloads the schedule as a spreadsheet
func (h *Handler) ExportXLSX(c *gin.Context) {
	id := c.Param("id")
	data, err := h.Planner.Export(c.Request.Context(), c.GetString("organization_id"), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=schedule-%s.xlsx", id))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ExportCSV downloads one row per assignment
func (h *Handler) ExportCSV(c *gin.Context) {
	resp, err := h.Planner.Get(c.Request.Context(), c.GetString("organization_id"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	data, err := scheduleCSV(resp.Schedule)
	if err != nil {
		h.Logger.Error("failed to write schedule csv", zap.String("schedule_id", resp.Schedule.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export schedule"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=schedule-%s.csv", resp.Schedule.ID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// scheduleCSV renders one row per assignment
func scheduleCSV(s *models.Schedule) ([]byte, error) {
	var out bytes.Buffer
	if err := writeScheduleCSV(&out, s); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeScheduleCSV(w io.Writer, s *models.Schedule) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "shift", "station_id", "station", "staff_id", "staff_name", "duration_hours", "labor_cost"}); err != nil {
		return err
	}
	for _, day := range s.Days {
		for _, sh := range day.Shifts {
			for _, st := range sh.Stations {
				for _, a := range st.Assigned {
					err := writer.Write([]string{
						day.Date,
						sh.Name,
						st.ID,
						st.Name,
						a.ID,
						a.Name,
						fmt.Sprintf("%.2f", sh.DurationHours),
						fmt.Sprintf("%.2f", sh.DurationHours*a.HourlyWage),
					})
					if err != nil {
						return err
					}
				}
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func placed(s *models.Schedule) int {
	n := 0
	for _, day := range s.Days {
		for _, sh := range day.Shifts {
			for _, st := range sh.Stations {
				n += len(st.Assigned)
			}
		}
	}
	return n
}
