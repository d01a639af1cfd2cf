package controllers

import (
	"errors"
	"net/http"

	"marketgist_backend/models"
	"marketgist_backend/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertController handles alert CRUD requests
type AlertController struct {
	store *services.AlertStore
}

// NewAlertController creates a new alert controller
func NewAlertController(store *services.AlertStore) *AlertController {
	return &AlertController{store: store}
}

// requestUserID resolves the caller's user id. Session handling lives in the
// front-end gateway; it forwards the authenticated id in a header.
func requestUserID(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	return userID, true
}

// CreateAlertRequest is the payload for creating an alert
type CreateAlertRequest struct {
	Symbol    string  `json:"symbol" binding:"required"`
	Company   string  `json:"company"`
	AlertName string  `json:"alert_name"`
	AlertType string  `json:"alert_type" binding:"required"`
	Threshold float64 `json:"threshold" binding:"required"`
	Frequency string  `json:"frequency"`
}

// CreateAlert creates a new price alert
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert := &models.Alert{
		UserID:    userID,
		Symbol:    req.Symbol,
		Company:   req.Company,
		AlertName: req.AlertName,
		AlertType: req.AlertType,
		Threshold: req.Threshold,
		Frequency: req.Frequency,
	}

	if err := ac.store.CreateAlert(c.Request.Context(), alert); err != nil {
		if errors.Is(err, services.ErrDuplicateAlert) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// GetAlerts returns the caller's active alerts
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	alerts, err := ac.store.ListAlertsByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alerts, "count": len(alerts)})
}

// UpdateAlert updates an existing alert
// PUT /api/v1/alerts/:id
func (ac *AlertController) UpdateAlert(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	alertID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	var updates services.AlertUpdate
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := ac.store.UpdateAlert(c.Request.Context(), alertID, userID, updates); err != nil {
		switch {
		case errors.Is(err, services.ErrAlertNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		case errors.Is(err, services.ErrDuplicateAlert):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RemoveAlert retires an alert (soft delete)
// DELETE /api/v1/alerts/:id
func (ac *AlertController) RemoveAlert(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	alertID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := ac.store.RemoveAlert(c.Request.Context(), alertID, userID); err != nil {
		if errors.Is(err, services.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
