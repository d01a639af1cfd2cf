package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketgist_backend/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationController handles in-app notification requests
type NotificationController struct {
	store *services.AlertStore
}

// NewNotificationController creates a new notification controller
func NewNotificationController(store *services.AlertStore) *NotificationController {
	return &NotificationController{store: store}
}

// GetNotifications returns the caller's notifications, newest first
// GET /api/v1/notifications?isRead=false&limit=10&since=2026-01-02T15:04:05Z
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("isRead") == "false"
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "10"), 10, 64)

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since timestamp"})
			return
		}
		since = &t
	}

	notifications, unreadCount, err := nc.store.ListNotifications(c.Request.Context(), userID, unreadOnly, since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unreadCount,
	})
}

// MarkRead marks a single notification as read
// PATCH /api/v1/notifications/:id/read
func (nc *NotificationController) MarkRead(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	notificationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	if err := nc.store.MarkNotificationRead(c.Request.Context(), notificationID, userID); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllRead marks every unread notification of the caller as read
// POST /api/v1/notifications/read-all
func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	updated, err := nc.store.MarkAllNotificationsRead(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}
