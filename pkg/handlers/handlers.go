package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/auth"
	"github.com/arnavshah/rota-api-go/pkg/database"
	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/arnavshah/rota-api-go/pkg/mw"
	"github.com/arnavshah/rota-api-go/pkg/optimizer"
	"github.com/arnavshah/rota-api-go/pkg/planner"
	"github.com/arnavshah/rota-api-go/pkg/scheduler"
	"github.com/arnavshah/rota-api-go/pkg/store"
	"github.com/arnavshah/rota-api-go/pkg/weather"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	DB      *gorm.DB
	Planner *planner.Planner
	Auth    *auth.Service
	Logger  *zap.Logger
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("username", claims.Username)
		c.Set(mw.ClientKey, "admin:"+claims.Username)
		c.Next()
	}
}

// APIKeyMiddleware verifies the HMAC-signed organization key and enforces
// the key's daily request quota.
func (h *Handler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bearer(c.GetHeader("Authorization"))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API Key required"})
			return
		}

		orgID, err := h.Auth.VerifyHMACKey(key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key signature"})
			return
		}

		// Fetch or create API key record to track usage
		var apiKey database.APIKey
		if err := h.DB.Where(database.APIKey{Key: key}).FirstOrCreate(&apiKey, database.APIKey{
			Key:        key,
			Name:       orgID,
			KeyPreview: auth.KeyPreview(key),
			RateLimit:  10000,
		}).Error; err != nil {
			h.Logger.Error("failed to load api key", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not load API key"})
			return
		}

		if apiKey.Revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API Key revoked"})
			return
		}

		var today database.APIUsage
		if err := h.DB.Where("key_id = ? AND date = ?", apiKey.ID, time.Now().Format(models.DateLayout)).Limit(1).Find(&today).Error; err != nil {
			h.Logger.Warn("failed to load daily usage", zap.Uint("key_id", apiKey.ID), zap.Error(err))
		}
		if apiKey.RateLimit > 0 && today.RequestCount >= apiKey.RateLimit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Daily request limit reached"})
			return
		}

		if err := h.DB.Model(&apiKey).Update("last_used", time.Now()).Error; err != nil {
			h.Logger.Warn("failed to update last_used", zap.Uint("key_id", apiKey.ID), zap.Error(err))
		}

		c.Set("apiKey", &apiKey)
		c.Set("organization_id", orgID)
		c.Set(mw.ClientKey, "key:"+orgID)
		c.Next()
	}
}

// RecordUsage records API usage in the database using an upsert
func (h *Handler) RecordUsage(c *gin.Context, schedules, staffPlaced int) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	today := time.Now().Format(models.DateLayout)

	// OnConflict upsert works on both postgres and sqlite
	err := h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":       gorm.Expr("request_count + ?", 1),
			"schedules_generated": gorm.Expr("schedules_generated + ?", schedules),
			"staff_placed":        gorm.Expr("staff_placed + ?", staffPlaced),
		}),
	}).Create(&database.APIUsage{
		KeyID:              apiKey.ID,
		Date:               today,
		RequestCount:       1,
		SchedulesGenerated: schedules,
		StaffPlaced:        staffPlaced,
	}).Error
	if err != nil {
		h.Logger.Warn("failed to record usage", zap.Uint("key_id", apiKey.ID), zap.Error(err))
	}
}

// usage counts every authenticated API request
func (h *Handler) usage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if !c.GetBool("usage_recorded") {
			h.RecordUsage(c, 0, 0)
		}
	}
}

// recordPlacement counts a successful operation together with how many
// assignments it produced.
func (h *Handler) recordPlacement(c *gin.Context, schedules, staffPlaced int) {
	h.RecordUsage(c, schedules, staffPlaced)
	c.Set("usage_recorded", true)
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.MasterUser
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Auth.CreateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// GenerateKey creates a new organization API key using the HMAC strategy
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if req.RateLimit == 0 {
		req.RateLimit = 10000
	}

	key := h.Auth.GenerateHMACKey(req.Name)

	apiKey := database.APIKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: auth.KeyPreview(key),
		RateLimit:  req.RateLimit,
	}

	if err := h.DB.Where(database.APIKey{Key: key}).Assign(map[string]interface{}{"rate_limit": req.RateLimit, "revoked": false}).FirstOrCreate(&apiKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create key record"})
		return
	}

	h.Logger.Info("api key issued", zap.String("organization_id", req.Name), zap.Uint("key_id", apiKey.ID))
	c.JSON(http.StatusOK, gin.H{
		"id":   apiKey.ID,
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	if err := h.DB.Order("id").Find(&keys).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey disables an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	id := c.Param("id")
	res := h.DB.Model(&database.APIKey{}).Where("id = ?", id).Update("revoked", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not revoke key"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the daily request limit for a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit is required"})
			return
		}
	}

	if req.RateLimit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate limit"})
		return
	}

	res := h.DB.Model(&database.APIKey{}).Where("id = ?", id).Update("rate_limit", req.RateLimit)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update key limit"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rate limit updated successfully"})
}

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	id := c.Param("id")
	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", id).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch usage details"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// writeError maps domain errors onto HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var rejection *scheduler.RejectionError
	switch {
	case errors.As(err, &rejection):
		status := http.StatusConflict
		if onlyKind(rejection.Conflicts, models.ConflictNotQualified) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error(), "conflicts": rejection.Conflicts})
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, scheduler.ErrSlotNotFound),
		errors.Is(err, scheduler.ErrNotAssigned):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrStaleRevision):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "stale": true})
	case errors.Is(err, planner.ErrBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrInvalidRange),
		errors.Is(err, scheduler.ErrInvalidTemplate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, optimizer.ErrUnavailable),
		errors.Is(err, optimizer.ErrInvalidProposal),
		errors.Is(err, weather.ErrUnavailable):
		h.Logger.Warn("collaborator failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func onlyKind(conflicts []models.Conflict, kind models.ConflictKind) bool {
	if len(conflicts) == 0 {
		return false
	}
	for _, c := range conflicts {
		if c.Kind != kind {
			return false
		}
	}
	return true
}

func bearer(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return header
}
