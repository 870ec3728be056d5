package handlers

import (
	"net/http"

	"github.com/arnavshah/rota-api-go/pkg/database"
	"github.com/gin-gonic/gin"
)

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "API Key context missing"})
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", apiKey.ID).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch usage details"})
		return
	}

	var totalRequests, totalSchedules, totalPlaced int64
	for _, u := range usage {
		totalRequests += int64(u.RequestCount)
		totalSchedules += int64(u.SchedulesGenerated)
		totalPlaced += int64(u.StaffPlaced)
	}

	c.JSON(http.StatusOK, gin.H{
		"organization_id": apiKey.Name,
		"rate_limit":      apiKey.RateLimit,
		"usage_history":   usage,
		"totals": gin.H{
			"requests":            totalRequests,
			"schedules_generated": totalSchedules,
			"staff_placed":        totalPlaced,
		},
	})
}
